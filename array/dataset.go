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

package array

import (
	"fmt"
	"sort"
)

// Dataset is a collection of data variables and coordinates sharing a
// set of named dimensions.
type Dataset struct {
	Attrs map[string]interface{}

	dimOrder []string
	sizes    map[string]int
	coords   map[string]*DataArray
	vars     map[string]*DataArray
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Attrs:  make(map[string]interface{}),
		sizes:  make(map[string]int),
		coords: make(map[string]*DataArray),
		vars:   make(map[string]*DataArray),
	}
}

// Dims returns the dimension names in the order they were added.
func (ds *Dataset) Dims() []string { return copyStrings(ds.dimOrder) }

// Sizes returns a copy of the dimension sizes.
func (ds *Dataset) Sizes() map[string]int {
	o := make(map[string]int, len(ds.sizes))
	for k, v := range ds.sizes {
		o[k] = v
	}
	return o
}

// DimSize returns the size of dimension d.
func (ds *Dataset) DimSize(d string) (int, bool) {
	n, ok := ds.sizes[d]
	return n, ok
}

// addDims records the dimensions of v, checking that their sizes agree
// with dimensions already in the dataset.
func (ds *Dataset) addDims(v *DataArray) error {
	for i, d := range v.dims {
		if n, ok := ds.sizes[d]; ok && n != v.shape[i] {
			return fmt.Errorf("array: %s has size %d along %s but the dataset has size %d",
				v.Name, v.shape[i], d, n)
		}
	}
	for i, d := range v.dims {
		if _, ok := ds.sizes[d]; !ok {
			ds.sizes[d] = v.shape[i]
			ds.dimOrder = append(ds.dimOrder, d)
		}
	}
	return nil
}

// SetVar adds or replaces data variable v under name.
func (ds *Dataset) SetVar(name string, v *DataArray) error {
	if err := ds.addDims(v); err != nil {
		return err
	}
	ds.vars[name] = v
	return nil
}

// SetCoord adds or replaces coordinate c under name.
func (ds *Dataset) SetCoord(name string, c *DataArray) error {
	if err := ds.addDims(c); err != nil {
		return err
	}
	ds.coords[name] = c
	return nil
}

// Var returns the named data variable.
func (ds *Dataset) Var(name string) (*DataArray, bool) {
	v, ok := ds.vars[name]
	return v, ok
}

// Coord returns the named coordinate.
func (ds *Dataset) Coord(name string) (*DataArray, bool) {
	c, ok := ds.coords[name]
	return c, ok
}

// Get returns the named data variable or coordinate.
func (ds *Dataset) Get(name string) (*DataArray, bool) {
	if v, ok := ds.vars[name]; ok {
		return v, true
	}
	return ds.Coord(name)
}

// Has reports whether name is a data variable or coordinate.
func (ds *Dataset) Has(name string) bool {
	_, ok := ds.Get(name)
	return ok
}

// Delete removes name from the data variables and coordinates.
func (ds *Dataset) Delete(name string) {
	delete(ds.vars, name)
	delete(ds.coords, name)
}

// VarNames returns the sorted data variable names.
func (ds *Dataset) VarNames() []string { return sortedKeys(ds.vars) }

// CoordNames returns the sorted coordinate names.
func (ds *Dataset) CoordNames() []string { return sortedKeys(ds.coords) }

// Names returns the sorted names of all data variables and coordinates.
func (ds *Dataset) Names() []string {
	names := append(ds.VarNames(), ds.CoordNames()...)
	sort.Strings(names)
	return dedup(names)
}

// Rename renames variables, coordinates and dimensions according to m.
// Every array in the dataset is relabeled.
func (ds *Dataset) Rename(m map[string]string) *Dataset {
	o := NewDataset()
	for k, v := range ds.Attrs {
		o.Attrs[k] = v
	}
	for _, d := range ds.dimOrder {
		n := d
		if r, ok := m[d]; ok {
			n = r
		}
		if _, ok := o.sizes[n]; !ok {
			o.dimOrder = append(o.dimOrder, n)
		}
		o.sizes[n] = ds.sizes[d]
	}
	for k, v := range ds.vars {
		if r, ok := m[k]; ok {
			k = r
		}
		o.vars[k] = v.Rename(m)
	}
	for k, c := range ds.coords {
		if r, ok := m[k]; ok {
			k = r
		}
		o.coords[k] = c.Rename(m)
	}
	return o
}

// RenameDims renames dimensions according to m, relabeling every array
// that uses them. Variable and coordinate names are kept.
func (ds *Dataset) RenameDims(m map[string]string) *Dataset {
	o := NewDataset()
	for k, v := range ds.Attrs {
		o.Attrs[k] = v
	}
	for _, d := range ds.dimOrder {
		n := d
		if r, ok := m[d]; ok {
			n = r
		}
		if _, ok := o.sizes[n]; !ok {
			o.dimOrder = append(o.dimOrder, n)
		}
		o.sizes[n] = ds.sizes[d]
	}
	for k, v := range ds.vars {
		o.vars[k] = v.RenameDims(m)
	}
	for k, c := range ds.coords {
		o.coords[k] = c.RenameDims(m)
	}
	return o
}

// Copy returns a shallow copy of ds. Array values are shared.
func (ds *Dataset) Copy() *Dataset {
	return ds.Rename(nil)
}

func sortedKeys(m map[string]*DataArray) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func dedup(s []string) []string {
	if len(s) == 0 {
		return s
	}
	o := s[:1]
	for _, v := range s[1:] {
		if v != o[len(o)-1] {
			o = append(o, v)
		}
	}
	return o
}
