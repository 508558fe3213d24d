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
	"fmt"
	"io"
	"os"
	"path"

	"gocloud.dev/blob"
)

// Upload copies the local file at src to the blob storage location dest.
func Upload(ctx context.Context, src, dest string) error {
	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("fetch: opening file '%s' for upload: %s", src, err)
	}
	defer r.Close()
	bucket, key, err := OpenBlob(ctx, dest)
	if err != nil {
		return err
	}
	defer bucket.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("fetch: opening writer to upload file '%s': %s", dest, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("fetch: uploading file '%s' to '%s': %s", src, dest, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("fetch: uploading file '%s' to '%s': %s", src, dest, err)
	}
	return nil
}

// Output holds the local path an output file is written to before
// being uploaded to its destination, if the destination is a blob.
type Output struct {
	Dest  string
	Local string
	tmp   string
}

// NewOutput prepares an output destination. If dest is a blob location
// a temporary local path with the same extension is used instead.
func NewOutput(dest string) (*Output, error) {
	if !IsBlob(dest) {
		return &Output{Dest: dest, Local: dest}, nil
	}
	f, err := os.CreateTemp("", "xoce-*"+path.Ext(dest))
	if err != nil {
		return nil, fmt.Errorf("fetch: creating temporary output file: %v", err)
	}
	f.Close()
	return &Output{Dest: dest, Local: f.Name(), tmp: f.Name()}, nil
}

// Finish uploads the local file if needed and removes the temporary copy.
func (o *Output) Finish(ctx context.Context) error {
	if o.tmp == "" {
		return nil
	}
	defer os.Remove(o.tmp)
	return Upload(ctx, o.Local, o.Dest)
}
