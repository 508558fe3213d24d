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

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testFile(t *testing.T) (dir, path string) {
	dir = t.TempDir()
	path = filepath.Join(dir, "thetao.nc")
	if err := os.WriteFile(path, []byte("netcdf"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func checkContent(t *testing.T, path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "netcdf" {
		t.Errorf("content: %q", b)
	}
}

func TestMaybeDownloadLocal(t *testing.T) {
	var d Downloader
	for _, p := range []string{"/dev/null", "/blah/test/"} {
		k, err := d.MaybeDownload(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		if k != p {
			t.Errorf("expected %s, got %s", p, k)
		}
	}
	if d.Dir() != "" {
		t.Error("nothing should have been downloaded")
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	var d Downloader
	defer d.Cleanup()
	if _, err := d.MaybeDownload(context.Background(), srv.URL+"/thetao.nc"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir, _ := testFile(t)
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()
	var d Downloader
	k, err := d.MaybeDownload(context.Background(), srv.URL+"/thetao.nc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "thetao.nc") || !strings.HasPrefix(k, d.Dir()) {
		t.Errorf("expected tempDir/thetao.nc, got %s", k)
	}
	checkContent(t, k)
	if err := d.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(k); !os.IsNotExist(err) {
		t.Error("download not removed")
	}
}

func TestMaybeDownloadBlob(t *testing.T) {
	_, path := testFile(t)
	var d Downloader
	defer d.Cleanup()
	files, err := d.MaybeDownloadAll(context.Background(), []string{"file://" + path})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(files[0]) != "thetao.nc" || files[0] == path {
		t.Errorf("download path: %s", files[0])
	}
	checkContent(t, files[0])
}

func TestMaybeDownloadSameName(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for _, sub := range []string{"r1", "r2"} {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		p := filepath.Join(dir, "thetao.nc")
		if err := os.WriteFile(p, []byte(sub), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, "file://"+p)
	}
	var d Downloader
	defer d.Cleanup()
	files, err := d.MaybeDownloadAll(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}
	if files[0] == files[1] {
		t.Fatalf("both downloads written to %s", files[0])
	}
	for i, want := range []string{"r1", "r2"} {
		if filepath.Base(files[i]) != "thetao.nc" {
			t.Errorf("download name: %s", files[i])
		}
		b, err := os.ReadFile(files[i])
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != want {
			t.Errorf("file %d: got %q, want %q", i, b, want)
		}
	}
}

func TestUpload(t *testing.T) {
	dir, path := testFile(t)
	dest := "file://" + filepath.Join(dir, "copy.nc")
	o, err := NewOutput(dest)
	if err != nil {
		t.Fatal(err)
	}
	if o.Local == dest {
		t.Fatal("blob output should be written locally first")
	}
	b, _ := os.ReadFile(path)
	if err := os.WriteFile(o.Local, b, 0644); err != nil {
		t.Fatal(err)
	}
	if err := o.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}
	checkContent(t, filepath.Join(dir, "copy.nc"))

	local, err := NewOutput(path)
	if err != nil {
		t.Fatal(err)
	}
	if local.Local != path {
		t.Errorf("local output: %s", local.Local)
	}
	if err := local.Finish(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestIsBlob(t *testing.T) {
	for p, want := range map[string]bool{
		"gs://bucket/x.nc": true, "s3://bucket/x.nc": true, "file:///tmp/x.nc": true,
		"http://host/x.nc": false, "/tmp/x.nc": false,
	} {
		if IsBlob(p) != want {
			t.Errorf("%s: want %v", p, want)
		}
	}
	if !IsRemote("https://host/x.nc") || IsRemote("x.nc") {
		t.Error("IsRemote")
	}
}
