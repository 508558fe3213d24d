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

// Package array provides labeled n-dimensional arrays with named
// dimensions, coordinates and lazily loaded values.
package array

import (
	"fmt"
	"sort"

	"github.com/ctessum/sparse"
)

// LoadFunc returns the values of a lazy array.
type LoadFunc func() (*sparse.DenseArray, error)

// DataArray is an n-dimensional array of float64 values with named
// dimensions and coordinates. The values are held in a row-major
// sparse.DenseArray. Arrays created with NewLazy do not read their
// values until Values is called.
//
// DataArray values are never modified in place by the functions in this
// package, so arrays may share their underlying data.
type DataArray struct {
	// Name is the variable name of the array.
	Name string

	// Attrs holds metadata such as "units" and "long_name".
	Attrs map[string]interface{}

	dims   []string
	shape  []int
	coords map[string]*DataArray

	data *sparse.DenseArray
	load LoadFunc
}

// New returns a new array holding data, with the given dimension
// names. The length of dims must match the number of dimensions of data.
func New(name string, dims []string, data *sparse.DenseArray, coords map[string]*DataArray) (*DataArray, error) {
	if len(dims) != len(data.Shape) {
		return nil, fmt.Errorf("array: %s has %d dimension names but %d dimensions", name, len(dims), len(data.Shape))
	}
	if err := checkDims(dims); err != nil {
		return nil, fmt.Errorf("array: %s: %v", name, err)
	}
	a := &DataArray{
		Name:   name,
		Attrs:  make(map[string]interface{}),
		dims:   copyStrings(dims),
		shape:  copyInts(data.Shape),
		coords: make(map[string]*DataArray),
		data:   data,
	}
	for k, c := range coords {
		if err := a.SetCoord(k, c); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewLazy returns an array whose values are read by load the first time
// they are needed. load must return an array of the given shape.
func NewLazy(name string, dims []string, shape []int, load LoadFunc) *DataArray {
	return &DataArray{
		Name:   name,
		Attrs:  make(map[string]interface{}),
		dims:   copyStrings(dims),
		shape:  copyInts(shape),
		coords: make(map[string]*DataArray),
		load:   load,
	}
}

// FromValues returns an array of the given shape holding a copy of vals.
func FromValues(name string, dims []string, shape []int, vals []float64) (*DataArray, error) {
	d := sparse.ZerosDense(copyInts(shape)...)
	if len(d.Elements) != len(vals) {
		return nil, fmt.Errorf("array: %s has shape %v but %d values", name, shape, len(vals))
	}
	copy(d.Elements, vals)
	return New(name, dims, d, nil)
}

// FromSlice returns a one-dimensional coordinate array named after its
// only dimension.
func FromSlice(name string, vals []float64) *DataArray {
	d := sparse.ZerosDense(len(vals))
	copy(d.Elements, vals)
	return &DataArray{
		Name:   name,
		Attrs:  make(map[string]interface{}),
		dims:   []string{name},
		shape:  []int{len(vals)},
		coords: make(map[string]*DataArray),
		data:   d,
	}
}

// Values returns the values of the array, loading them if necessary.
// Loaded values are kept for the lifetime of the array.
func (a *DataArray) Values() (*sparse.DenseArray, error) {
	if a.data != nil {
		return a.data, nil
	}
	if a.load == nil {
		return nil, fmt.Errorf("array: %s has no values", a.Name)
	}
	d, err := a.load()
	if err != nil {
		return nil, err
	}
	if !sameInts(d.Shape, a.shape) {
		return nil, fmt.Errorf("array: %s loaded shape %v but expected %v", a.Name, d.Shape, a.shape)
	}
	a.data = d
	a.load = nil
	return d, nil
}

// Float64s returns the flattened row-major values of the array.
func (a *DataArray) Float64s() ([]float64, error) {
	d, err := a.Values()
	if err != nil {
		return nil, err
	}
	return d.Elements, nil
}

// Loaded reports whether the values of the array are in memory.
func (a *DataArray) Loaded() bool { return a.data != nil }

// Dims returns the dimension names of the array.
func (a *DataArray) Dims() []string { return copyStrings(a.dims) }

// Shape returns the size of each dimension.
func (a *DataArray) Shape() []int { return copyInts(a.shape) }

// NDim returns the number of dimensions.
func (a *DataArray) NDim() int { return len(a.dims) }

// Size returns the total number of elements.
func (a *DataArray) Size() int { return product(a.shape) }

// Axis returns the position of dim in the array's dimensions, or -1.
func (a *DataArray) Axis(dim string) int {
	for i, d := range a.dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// HasDim reports whether the array has the named dimension.
func (a *DataArray) HasDim(dim string) bool { return a.Axis(dim) >= 0 }

// DimSize returns the size of the named dimension.
func (a *DataArray) DimSize(dim string) (int, bool) {
	i := a.Axis(dim)
	if i < 0 {
		return 0, false
	}
	return a.shape[i], true
}

// CoordNames returns the sorted names of the array's coordinates.
func (a *DataArray) CoordNames() []string {
	names := make([]string, 0, len(a.coords))
	for k := range a.coords {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Coord returns the named coordinate.
func (a *DataArray) Coord(name string) (*DataArray, bool) {
	c, ok := a.coords[name]
	return c, ok
}

// Coords returns a copy of the coordinate map.
func (a *DataArray) Coords() map[string]*DataArray {
	o := make(map[string]*DataArray, len(a.coords))
	for k, v := range a.coords {
		o[k] = v
	}
	return o
}

// SetCoord attaches coordinate c to the array under name. Every dimension
// of c must be a dimension of a with the same size.
func (a *DataArray) SetCoord(name string, c *DataArray) error {
	for i, d := range c.dims {
		n, ok := a.DimSize(d)
		if !ok {
			return fmt.Errorf("array: coordinate %s dimension %s is not a dimension of %s", name, d, a.Name)
		}
		if n != c.shape[i] {
			return fmt.Errorf("array: coordinate %s has size %d along %s but %s has size %d",
				name, c.shape[i], d, a.Name, n)
		}
	}
	a.coords[name] = c
	return nil
}

// DimCoord returns the one-dimensional coordinate that labels dim: the
// coordinate named dim if there is one, otherwise the first (by name)
// one-dimensional coordinate along dim. A one-dimensional array named
// after its own dimension is its own coordinate.
func (a *DataArray) DimCoord(dim string) (*DataArray, bool) {
	if c, ok := a.coords[dim]; ok && len(c.dims) == 1 && c.dims[0] == dim {
		return c, true
	}
	for _, name := range a.CoordNames() {
		c := a.coords[name]
		if len(c.dims) == 1 && c.dims[0] == dim {
			return c, true
		}
	}
	if len(a.dims) == 1 && a.dims[0] == dim && a.Name == dim {
		return a, true
	}
	return nil, false
}

// CoordValues returns the values of the coordinate that labels dim.
func (a *DataArray) CoordValues(dim string) ([]float64, bool, error) {
	c, ok := a.DimCoord(dim)
	if !ok {
		return nil, false, nil
	}
	v, err := c.Float64s()
	return v, true, err
}

// String returns a short summary of the array.
func (a *DataArray) String() string {
	return fmt.Sprintf("<DataArray %s %v %v>", a.Name, a.dims, a.shape)
}

// shallow returns a copy of a sharing its values.
func (a *DataArray) shallow() *DataArray {
	o := &DataArray{
		Name:   a.Name,
		Attrs:  make(map[string]interface{}, len(a.Attrs)),
		dims:   copyStrings(a.dims),
		shape:  copyInts(a.shape),
		coords: a.Coords(),
		data:   a.data,
		load:   a.load,
	}
	for k, v := range a.Attrs {
		o.Attrs[k] = v
	}
	if a.data == nil && a.load != nil {
		// Share loading with the parent so values are read only once.
		o.load = a.Values
	}
	return o
}

// Copy returns a copy of a that shares its values but not its metadata.
func (a *DataArray) Copy() *DataArray { return a.shallow() }

func checkDims(dims []string) error {
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if seen[d] {
			return fmt.Errorf("repeated dimension %s", d)
		}
		seen[d] = true
	}
	return nil
}

func copyStrings(s []string) []string {
	o := make([]string, len(s))
	copy(o, s)
	return o
}

func copyInts(s []int) []int {
	o := make([]int, len(s))
	copy(o, s)
	return o
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func product(s []int) int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}
