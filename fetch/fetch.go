/*
Copyright © 2020 the xoce authors.
This file is part of xoce.

xoce is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xoce is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xoce.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package fetch makes remote model output available as local files.
// Paths may be local, http(s) URLs, or blob storage locations starting
// with gs://, s3:// or file://.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// IsBlob returns whether the given path represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// IsRemote returns whether path has to be downloaded before it can be
// opened.
func IsRemote(path string) bool {
	return IsBlob(path) || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Downloader copies remote files into a temporary directory, which is
// created on first use. It is not safe for concurrent use.
type Downloader struct {
	dir string
	n   int
}

// Dir returns the download directory, or "" if nothing has been
// downloaded.
func (d *Downloader) Dir() string { return d.dir }

// Cleanup removes everything that has been downloaded.
func (d *Downloader) Cleanup() error {
	if d.dir == "" {
		return nil
	}
	err := os.RemoveAll(d.dir)
	d.dir = ""
	return err
}

// MaybeDownload returns path unchanged if it exists locally or is not a
// remote location. Otherwise it downloads the file and returns the path
// to the local copy.
func (d *Downloader) MaybeDownload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return d.downloadHTTP(ctx, path)
	}
	if IsBlob(path) {
		return d.downloadBlob(ctx, path)
	}
	return path, nil
}

// MaybeDownloadAll calls MaybeDownload for each of paths.
func (d *Downloader) MaybeDownloadAll(ctx context.Context, paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		var err error
		if out[i], err = d.MaybeDownload(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Downloader) create(name string) (*os.File, error) {
	if d.dir == "" {
		dir, err := os.MkdirTemp("", "xoce")
		if err != nil {
			return nil, fmt.Errorf("fetch: failed creating temporary download directory: %v", err)
		}
		d.dir = dir
	}
	// Each file gets its own subdirectory so that inputs sharing a base
	// name do not overwrite each other. The base name is kept because
	// CMIP6 file names carry metadata.
	sub := filepath.Join(d.dir, strconv.Itoa(d.n))
	d.n++
	if err := os.MkdirAll(sub, 0755); err != nil {
		return nil, fmt.Errorf("fetch: failed creating download directory: %v", err)
	}
	w, err := os.Create(filepath.Join(sub, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("fetch: failed creating file for download: %v", err)
	}
	return w, nil
}

func (d *Downloader) downloadHTTP(ctx context.Context, path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("fetch: %v", err)
	}
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: %v", err)
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch: downloading %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: downloading %s: %s", path, resp.Status)
	}
	return d.save(u.Path, resp.Body)
}

func (d *Downloader) downloadBlob(ctx context.Context, path string) (string, error) {
	bucket, key, err := OpenBlob(ctx, path)
	if err != nil {
		return "", err
	}
	defer bucket.Close()
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: reading blob %s: %v", path, err)
	}
	defer r.Close()
	return d.save(key, r)
}

func (d *Downloader) save(name string, r io.Reader) (string, error) {
	w, err := d.create(name)
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("fetch: copying %s: %v", name, err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("fetch: writing %s: %v", name, err)
	}
	return w.Name(), nil
}

// OpenBlob opens the bucket holding the blob at path and returns it along
// with the blob's key. For gs:// and s3:// the host is the bucket name
// and the rest of the path is the key. For file:// the bucket is the
// directory holding the file.
func OpenBlob(ctx context.Context, path string) (*blob.Bucket, string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %v", err)
	}
	var b *blob.Bucket
	key := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "file":
		p := filepath.Join(u.Host, filepath.FromSlash(u.Path))
		key = filepath.Base(p)
		b, err = fileblob.OpenBucket(filepath.Dir(p), nil)
	case "gs":
		b, err = gsBucket(ctx, u.Hostname())
	case "s3":
		b, err = s3Bucket(ctx, u.Hostname())
	default:
		return nil, "", fmt.Errorf("fetch: invalid blob provider %s", u.Scheme)
	}
	if err != nil {
		return nil, "", fmt.Errorf("fetch: opening bucket for %s: %v", path, err)
	}
	return b, key, nil
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
