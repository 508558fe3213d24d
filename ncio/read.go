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

// Package ncio reads and writes NetCDF files as labeled array datasets.
package ncio

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/oceandiag/xoce/array"
)

// RecordDimAttr is the dataset attribute holding the name of the
// record (unlimited) dimension, if the file has one.
const RecordDimAttr = "record_dimension"

// Open returns the contents of the NetCDF file at path as a dataset of
// lazy arrays. Values are read from the file the first time they are
// used. Character variables are skipped. One-dimensional variables named
// after their dimension, and variables listed in a "coordinates"
// attribute, become coordinates.
func Open(path string) (*array.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("ncio: opening %s: %v", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	numRecs := int(nc.Header.NumRecs(fi.Size()))

	ds := array.NewDataset()
	for _, a := range nc.Header.Attributes("") {
		ds.Attrs[a] = attrValue(nc.Header.GetAttribute("", a))
	}

	vars := make(map[string]*array.DataArray)
	var order []string
	coordNames := make(map[string]bool)
	for _, v := range nc.Header.Variables() {
		if _, ok := nc.Header.ZeroValue(v, 0).(string); ok {
			continue
		}
		dims := nc.Header.Dimensions(v)
		shape := append([]int{}, nc.Header.Lengths(v)...)
		if nc.Header.IsRecordVariable(v) {
			shape[0] = numRecs
			ds.Attrs[RecordDimAttr] = dims[0]
		}
		a := array.NewLazy(v, dims, shape, readVar(path, v, shape))
		for _, at := range nc.Header.Attributes(v) {
			a.Attrs[at] = attrValue(nc.Header.GetAttribute(v, at))
		}
		vars[v] = a
		order = append(order, v)
		if len(dims) == 1 && dims[0] == v {
			coordNames[v] = true
		}
		if c, ok := a.Attrs["coordinates"].(string); ok {
			for _, name := range strings.Fields(c) {
				coordNames[name] = true
			}
		}
	}

	for _, v := range order {
		a := vars[v]
		if coordNames[v] {
			continue
		}
		for _, name := range sortedSet(coordNames) {
			c, ok := vars[name]
			if !ok || !subset(c.Dims(), a.Dims()) {
				continue
			}
			if err := a.SetCoord(name, c); err != nil {
				return nil, fmt.Errorf("ncio: %s: %v", path, err)
			}
		}
		if err := ds.SetVar(v, a); err != nil {
			return nil, fmt.Errorf("ncio: %s: %v", path, err)
		}
	}
	for _, name := range sortedSet(coordNames) {
		c, ok := vars[name]
		if !ok {
			continue
		}
		if err := ds.SetCoord(name, c); err != nil {
			return nil, fmt.Errorf("ncio: %s: %v", path, err)
		}
	}
	return ds, nil
}

// readVar returns a loader for variable v of the file at path.
func readVar(path, v string, shape []int) array.LoadFunc {
	return func() (*sparse.DenseArray, error) {
		out := sparse.ZerosDense(append([]int{}, shape...)...)
		if len(out.Elements) == 0 {
			return out, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		nc, err := cdf.Open(f)
		if err != nil {
			return nil, fmt.Errorf("ncio: opening %s: %v", path, err)
		}
		var end []int
		if nc.Header.IsRecordVariable(v) {
			end = make([]int, len(shape))
			for i, n := range shape {
				end[i] = n - 1
			}
		}
		r := nc.Reader(v, nil, end)
		buf := r.Zero(len(out.Elements))
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("ncio: reading %s from %s: %v", v, path, err)
		}
		if err := toFloat64(buf, out.Elements); err != nil {
			return nil, fmt.Errorf("ncio: reading %s from %s: %v", v, path, err)
		}
		for _, a := range []string{"_FillValue", "missing_value"} {
			fill, ok := attrValue(nc.Header.GetAttribute(v, a)).(float64)
			if !ok {
				continue
			}
			// Float variables may carry a double precision fill value.
			fill32 := float64(float32(fill))
			for i, x := range out.Elements {
				if x == fill || x == fill32 {
					out.Elements[i] = math.NaN()
				}
			}
		}
		return out, nil
	}
}

func toFloat64(buf interface{}, out []float64) error {
	switch d := buf.(type) {
	case []float64:
		copy(out, d)
	case []float32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int16:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint8:
		for i, v := range d {
			out[i] = float64(int8(v))
		}
	default:
		return fmt.Errorf("unsupported data type %T", buf)
	}
	return nil
}

// attrValue converts a NetCDF attribute to a string, a float64 for
// single numbers, or a []float64.
func attrValue(v interface{}) interface{} {
	var f []float64
	switch d := v.(type) {
	case string:
		return strings.TrimRight(d, "\x00")
	case []uint8:
		return strings.TrimRight(string(d), "\x00")
	case []float64:
		f = d
	case []float32:
		f = make([]float64, len(d))
		for i, x := range d {
			f[i] = float64(x)
		}
	case []int32:
		f = make([]float64, len(d))
		for i, x := range d {
			f[i] = float64(x)
		}
	case []int16:
		f = make([]float64, len(d))
		for i, x := range d {
			f[i] = float64(x)
		}
	default:
		return v
	}
	if len(f) == 1 {
		return f[0]
	}
	return f
}

func subset(a, b []string) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
