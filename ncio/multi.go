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

package ncio

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/oceandiag/xoce/array"
)

// Options control how files are opened.
type Options struct {
	// DecodeTimes requests decoding of time coordinates with DecodeTimes.
	DecodeTimes bool

	// ConcatDim is the dimension along which multiple files are joined.
	// If empty, the record dimension of the first file is used, or
	// "time_counter" or "time" if the file has no record dimension.
	ConcatDim string
}

// Glob expands the glob patterns in paths, returning the sorted, unique
// matching file names. Patterns that match nothing are an error.
func Glob(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		m, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("ncio: %v", err)
		}
		if len(m) == 0 {
			return nil, fmt.Errorf("ncio: no files match %s", p)
		}
		sort.Strings(m)
		for _, f := range m {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// OpenMulti opens the files matching paths as one dataset. Variables
// holding the concatenation dimension are joined in file order; all other
// variables are taken from the first file that holds them.
func OpenMulti(paths []string, opts Options) (*array.Dataset, error) {
	files, err := Glob(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("ncio: no files to open")
	}
	parts := make([]*array.Dataset, len(files))
	for i, f := range files {
		if parts[i], err = Open(f); err != nil {
			return nil, err
		}
	}
	ds := parts[0]
	if len(parts) > 1 {
		if ds, err = concat(parts, concatDim(parts[0], opts.ConcatDim)); err != nil {
			return nil, err
		}
	}
	if opts.DecodeTimes {
		if _, err := DecodeTimes(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func concatDim(ds *array.Dataset, dim string) string {
	if dim != "" {
		return dim
	}
	if d, ok := ds.Attrs[RecordDimAttr].(string); ok {
		return d
	}
	for _, d := range []string{"time_counter", "time"} {
		if _, ok := ds.DimSize(d); ok {
			return d
		}
	}
	return ""
}

func concat(parts []*array.Dataset, dim string) (*array.Dataset, error) {
	out := array.NewDataset()
	for k, v := range parts[0].Attrs {
		out.Attrs[k] = v
	}
	joined := func(get func(*array.Dataset) (*array.DataArray, bool)) (*array.DataArray, error) {
		var pieces []*array.DataArray
		for _, p := range parts {
			if a, ok := get(p); ok {
				pieces = append(pieces, a)
			}
		}
		if dim == "" || !pieces[0].HasDim(dim) {
			return pieces[0], nil
		}
		return array.Concat(pieces, dim)
	}
	names := make(map[string]bool)
	for _, p := range parts {
		for _, n := range p.CoordNames() {
			names[n] = true
		}
	}
	coords := make(map[string]*array.DataArray)
	for _, n := range sortedSet(names) {
		c, err := joined(func(d *array.Dataset) (*array.DataArray, bool) { return d.Coord(n) })
		if err != nil {
			return nil, err
		}
		coords[n] = c
		if err := out.SetCoord(n, c); err != nil {
			return nil, err
		}
	}
	names = make(map[string]bool)
	for _, p := range parts {
		for _, n := range p.VarNames() {
			names[n] = true
		}
	}
	for _, n := range sortedSet(names) {
		v, err := joined(func(d *array.Dataset) (*array.DataArray, bool) { return d.Var(n) })
		if err != nil {
			return nil, err
		}
		for cn, c := range coords {
			if !subset(c.Dims(), v.Dims()) {
				continue
			}
			if v, err = v.WithCoord(cn, c); err != nil {
				return nil, err
			}
		}
		if err := out.SetVar(n, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
