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

	"github.com/ctessum/sparse"
)

// Concat joins arrays along dim. All pieces must have the same
// dimensions in the same order, and all dimensions but dim must have the
// same sizes. The result keeps the name, attributes and the coordinates
// of the first piece that do not depend on dim.
func Concat(pieces []*DataArray, dim string) (*DataArray, error) {
	if len(pieces) == 0 {
		return nil, fmt.Errorf("array: nothing to join")
	}
	first := pieces[0]
	ax := first.Axis(dim)
	if ax < 0 {
		return nil, fmt.Errorf("array: %s has no dimension %s", first.Name, dim)
	}
	shape := first.Shape()
	shape[ax] = 0
	for _, p := range pieces {
		if len(p.dims) != len(first.dims) {
			return nil, fmt.Errorf("array: cannot join %s: dimensions differ", first.Name)
		}
		for i := range p.dims {
			if p.dims[i] != first.dims[i] {
				return nil, fmt.Errorf("array: cannot join %s: dimensions differ", first.Name)
			}
			if i != ax && p.shape[i] != shape[i] {
				return nil, fmt.Errorf("array: cannot join %s: dimension %s differs", first.Name, p.dims[i])
			}
		}
		shape[ax] += p.shape[ax]
	}
	coords := make(map[string]*DataArray)
	for k, c := range first.coords {
		if !c.HasDim(dim) {
			coords[k] = c
		}
	}
	inner := product(shape[ax+1:])
	outer := product(shape[:ax])
	return first.derive(first.Dims(), copyInts(shape), coords, func(*sparse.DenseArray) (*sparse.DenseArray, error) {
		o := sparse.ZerosDense(copyInts(shape)...)
		offset := 0
		for _, p := range pieces {
			d, err := p.Values()
			if err != nil {
				return nil, err
			}
			n := p.shape[ax] * inner
			for i := 0; i < outer; i++ {
				dst := i*shape[ax]*inner + offset
				copy(o.Elements[dst:dst+n], d.Elements[i*n:(i+1)*n])
			}
			offset += n
		}
		return o, nil
	}), nil
}

// DropCoords returns a copy of a without the named coordinates.
func (a *DataArray) DropCoords(names ...string) *DataArray {
	o := a.shallow()
	for _, n := range names {
		delete(o.coords, n)
	}
	return o
}

// DropCoordsAlong returns a copy of a without the coordinates that depend
// on dim.
func (a *DataArray) DropCoordsAlong(dim string) *DataArray {
	o := a.shallow()
	for k, c := range o.coords {
		if c.HasDim(dim) {
			delete(o.coords, k)
		}
	}
	return o
}
