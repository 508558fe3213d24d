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
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/oceandiag/xoce/array"
)

// WriteOptions control how datasets are written.
type WriteOptions struct {
	// RecordDim, if set, is written as the unlimited dimension.
	RecordDim string
}

// Write writes the variables and coordinates of ds to w as single
// precision NetCDF data.
func Write(w *os.File, ds *array.Dataset, opts WriteOptions) error {
	dims := ds.Dims()
	if opts.RecordDim != "" {
		// The record dimension must be the outermost dimension of
		// every variable that uses it; put it first in the header.
		sort.SliceStable(dims, func(i, j int) bool { return dims[i] == opts.RecordDim && dims[j] != opts.RecordDim })
	}
	lengths := make([]int, len(dims))
	for i, d := range dims {
		if d == opts.RecordDim {
			continue
		}
		lengths[i], _ = ds.DimSize(d)
	}
	h := cdf.NewHeader(dims, lengths)
	for _, k := range sortedAttrNames(ds.Attrs) {
		if k == RecordDimAttr {
			continue
		}
		if v := ncAttr(ds.Attrs[k]); v != nil {
			h.AddAttribute("", k, v)
		}
	}

	// Sort the names so they write in the same order every time.
	names := ds.Names()
	for _, name := range names {
		a, _ := ds.Get(name)
		if opts.RecordDim != "" {
			if ax := a.Axis(opts.RecordDim); ax > 0 {
				return fmt.Errorf("ncio: %s: record dimension %s must be the first dimension", name, opts.RecordDim)
			}
		}
		h.AddVariable(name, a.Dims(), []float32{0})
		for _, k := range sortedAttrNames(a.Attrs) {
			if k == "coordinates" {
				continue
			}
			if v := ncAttr(a.Attrs[k]); v != nil {
				h.AddAttribute(name, k, v)
			}
		}
		var aux []string
		for _, cn := range a.CoordNames() {
			c, _ := a.Coord(cn)
			if ds.Has(cn) && !(c.NDim() == 1 && c.Dims()[0] == cn) {
				aux = append(aux, cn)
			}
		}
		if len(aux) > 0 {
			h.AddAttribute(name, "coordinates", strings.Join(aux, " "))
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	for _, name := range names {
		a, _ := ds.Get(name)
		if err := writeVar(f, name, a); err != nil {
			return fmt.Errorf("ncio: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeVar(f *cdf.File, name string, a *array.DataArray) error {
	vals, err := a.Float64s()
	if err != nil {
		return err
	}
	if len(vals) == 0 {
		return nil
	}
	data32 := make([]float32, len(vals))
	for i, e := range vals {
		data32[i] = float32(e)
	}
	var begin []int
	end := f.Header.Lengths(name)
	if len(end) > 0 && end[0] == 0 {
		// Record variables extend the record dimension as they are written.
		end = nil
	} else {
		begin = make([]int, len(end))
	}
	n, err := f.Writer(name, begin, end).Write(data32)
	if err == io.EOF && n == len(data32) {
		return nil
	}
	return err
}

// ncAttr converts an attribute value to a type the NetCDF writer
// accepts, or nil if it cannot be stored.
func ncAttr(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return t
	case float64:
		return []float64{t}
	case []float64:
		return t
	case float32:
		return []float32{t}
	case int:
		return []int32{int32(t)}
	case int32:
		return []int32{t}
	}
	return nil
}

func sortedAttrNames(m map[string]interface{}) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
