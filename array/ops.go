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
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// derive returns a lazy array with the metadata of a and the given
// dims, shape and coordinates, whose values are computed by f from the
// values of a.
func (a *DataArray) derive(dims []string, shape []int, coords map[string]*DataArray,
	f func(src *sparse.DenseArray) (*sparse.DenseArray, error)) *DataArray {
	o := &DataArray{
		Name:   a.Name,
		Attrs:  make(map[string]interface{}, len(a.Attrs)),
		dims:   dims,
		shape:  shape,
		coords: coords,
	}
	for k, v := range a.Attrs {
		o.Attrs[k] = v
	}
	o.load = func() (*sparse.DenseArray, error) {
		src, err := a.Values()
		if err != nil {
			return nil, err
		}
		return f(src)
	}
	return o
}

// Isel selects index i along dim, removing the dimension. Coordinates
// that only depend on dim are dropped.
func (a *DataArray) Isel(dim string, i int) (*DataArray, error) {
	return a.take(dim, []int{i}, true)
}

// Slice selects indices [start, end) along dim.
func (a *DataArray) Slice(dim string, start, end int) (*DataArray, error) {
	if end < start {
		return nil, fmt.Errorf("array: invalid slice [%d:%d] of %s", start, end, a.Name)
	}
	idx := make([]int, end-start)
	for i := range idx {
		idx[i] = start + i
	}
	return a.take(dim, idx, false)
}

// Take selects the listed indices along dim.
func (a *DataArray) Take(dim string, idx []int) (*DataArray, error) {
	return a.take(dim, idx, false)
}

func (a *DataArray) take(dim string, idx []int, squeeze bool) (*DataArray, error) {
	ax := a.Axis(dim)
	if ax < 0 {
		return nil, fmt.Errorf("array: %s has no dimension %s", a.Name, dim)
	}
	for _, i := range idx {
		if i < 0 || i >= a.shape[ax] {
			return nil, fmt.Errorf("array: index %d out of range for dimension %s of %s (size %d)",
				i, dim, a.Name, a.shape[ax])
		}
	}
	dims := copyStrings(a.dims)
	shape := copyInts(a.shape)
	shape[ax] = len(idx)
	if squeeze {
		dims = append(dims[:ax], dims[ax+1:]...)
		shape = append(shape[:ax], shape[ax+1:]...)
	}
	coords := make(map[string]*DataArray, len(a.coords))
	for k, c := range a.coords {
		if !c.HasDim(dim) {
			coords[k] = c
			continue
		}
		if squeeze && c.NDim() == 1 {
			continue
		}
		cc, err := c.take(dim, idx, squeeze)
		if err != nil {
			return nil, err
		}
		coords[k] = cc
	}
	srcShape := copyInts(a.shape)
	outShape := copyInts(a.shape)
	outShape[ax] = len(idx)
	return a.derive(dims, shape, coords, func(src *sparse.DenseArray) (*sparse.DenseArray, error) {
		out := sparse.ZerosDense(copyInts(shape)...)
		inner := product(srcShape[ax+1:])
		outer := product(srcShape[:ax])
		n := 0
		for o := 0; o < outer; o++ {
			for _, i := range idx {
				start := (o*srcShape[ax] + i) * inner
				copy(out.Elements[n:n+inner], src.Elements[start:start+inner])
				n += inner
			}
		}
		return out, nil
	}), nil
}

// Rename returns a copy of a with its name, dimensions and coordinates
// renamed according to m. Names not in m are kept.
func (a *DataArray) Rename(m map[string]string) *DataArray {
	o := a.shallow()
	if n, ok := m[a.Name]; ok {
		o.Name = n
	}
	for i, d := range o.dims {
		if n, ok := m[d]; ok {
			o.dims[i] = n
		}
	}
	o.coords = make(map[string]*DataArray, len(a.coords))
	for k, c := range a.coords {
		if n, ok := m[k]; ok {
			k = n
		}
		o.coords[k] = c.Rename(m)
	}
	return o
}

// RenameDims returns a copy of a with its dimensions renamed according to
// m. Coordinates are relabeled to the new dimensions but keep their names.
func (a *DataArray) RenameDims(m map[string]string) *DataArray {
	o := a.shallow()
	for i, d := range o.dims {
		if n, ok := m[d]; ok {
			o.dims[i] = n
		}
	}
	for k, c := range a.coords {
		o.coords[k] = c.RenameDims(m)
	}
	return o
}

// WithCoord returns a copy of a with coordinate c attached under name.
func (a *DataArray) WithCoord(name string, c *DataArray) (*DataArray, error) {
	o := a.shallow()
	if err := o.SetCoord(name, c); err != nil {
		return nil, err
	}
	return o, nil
}

// Map returns an array holding f applied to every value of a.
func (a *DataArray) Map(f func(float64) float64) *DataArray {
	return a.derive(copyStrings(a.dims), copyInts(a.shape), a.Coords(),
		func(src *sparse.DenseArray) (*sparse.DenseArray, error) {
			out := sparse.ZerosDense(copyInts(src.Shape)...)
			for i, v := range src.Elements {
				out.Elements[i] = f(v)
			}
			return out, nil
		})
}

// Scale multiplies every value by s.
func (a *DataArray) Scale(s float64) *DataArray {
	return a.Map(func(v float64) float64 { return v * s })
}

// AddScalar adds s to every value.
func (a *DataArray) AddScalar(s float64) *DataArray {
	return a.Map(func(v float64) float64 { return v + s })
}

// Combine returns f applied element-wise to a and b. The result has the
// dimensions of a followed by the dimensions of b that a lacks; shared
// dimensions must have equal sizes.
func (a *DataArray) Combine(b *DataArray, f func(x, y float64) float64) (*DataArray, error) {
	return CombineN([]*DataArray{a, b}, func(v []float64) float64 { return f(v[0], v[1]) })
}

// CombineN applies f element-wise to all of the given arrays, broadcasting
// them against each other. The name, attributes and dimension order are
// taken from the first array.
func CombineN(arrays []*DataArray, f func([]float64) float64) (*DataArray, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("array: nothing to combine")
	}
	dims, shape, err := broadcastShape(arrays)
	if err != nil {
		return nil, err
	}
	coords := make(map[string]*DataArray)
	for i := len(arrays) - 1; i >= 0; i-- {
		for k, c := range arrays[i].coords {
			coords[k] = c
		}
	}
	first := arrays[0]
	o := first.derive(dims, shape, coords, nil)
	o.load = func() (*sparse.DenseArray, error) {
		maps := make([][]int, len(arrays))
		vals := make([][]float64, len(arrays))
		for i, x := range arrays {
			d, err := x.Values()
			if err != nil {
				return nil, err
			}
			vals[i] = d.Elements
			maps[i] = indexMap(dims, shape, x.dims, x.shape)
		}
		out := sparse.ZerosDense(copyInts(shape)...)
		args := make([]float64, len(arrays))
		for j := range out.Elements {
			for i := range arrays {
				args[i] = vals[i][maps[i][j]]
			}
			out.Elements[j] = f(args)
		}
		return out, nil
	}
	return o, nil
}

func broadcastShape(arrays []*DataArray) ([]string, []int, error) {
	var dims []string
	var shape []int
	size := make(map[string]int)
	for _, x := range arrays {
		for i, d := range x.dims {
			n, ok := size[d]
			if !ok {
				size[d] = x.shape[i]
				dims = append(dims, d)
				shape = append(shape, x.shape[i])
				continue
			}
			if n != x.shape[i] {
				return nil, nil, fmt.Errorf("array: cannot broadcast %s: dimension %s has sizes %d and %d",
					x.Name, d, n, x.shape[i])
			}
		}
	}
	return dims, shape, nil
}

// BroadcastTo returns a with its values repeated over dims it lacks. dims
// must include every dimension of a with the same size.
func (a *DataArray) BroadcastTo(dims []string, shape []int) (*DataArray, error) {
	for i, d := range a.dims {
		j := indexOf(dims, d)
		if j < 0 || shape[j] != a.shape[i] {
			return nil, fmt.Errorf("array: cannot broadcast %s %v%v to %v%v", a.Name, a.dims, a.shape, dims, shape)
		}
	}
	dims, shape = copyStrings(dims), copyInts(shape)
	return a.derive(dims, shape, a.Coords(), func(src *sparse.DenseArray) (*sparse.DenseArray, error) {
		m := indexMap(dims, shape, a.dims, a.shape)
		out := sparse.ZerosDense(copyInts(shape)...)
		for j, i := range m {
			out.Elements[j] = src.Elements[i]
		}
		return out, nil
	}), nil
}

// Where returns a with values where cond is false (zero or NaN) replaced by
// other. cond must only have dimensions that a has. If drop is true,
// labels along cond's dimensions for which cond is false everywhere are
// removed from the result.
func (a *DataArray) Where(cond *DataArray, other float64, drop bool) (*DataArray, error) {
	for i, d := range cond.dims {
		n, ok := a.DimSize(d)
		if !ok {
			return nil, fmt.Errorf("array: condition dimension %s is not a dimension of %s", d, a.Name)
		}
		if n != cond.shape[i] {
			return nil, fmt.Errorf("array: condition has size %d along %s but %s has size %d",
				cond.shape[i], d, a.Name, n)
		}
	}
	masked := a.derive(copyStrings(a.dims), copyInts(a.shape), a.Coords(),
		func(src *sparse.DenseArray) (*sparse.DenseArray, error) {
			c, err := cond.Values()
			if err != nil {
				return nil, err
			}
			m := indexMap(a.dims, a.shape, cond.dims, cond.shape)
			out := sparse.ZerosDense(copyInts(src.Shape)...)
			for j, v := range src.Elements {
				if truth(c.Elements[m[j]]) {
					out.Elements[j] = v
				} else {
					out.Elements[j] = other
				}
			}
			return out, nil
		})
	if !drop {
		return masked, nil
	}
	c, err := cond.Values()
	if err != nil {
		return nil, err
	}
	out := masked
	for ax, d := range cond.dims {
		keep := make([]bool, cond.shape[ax])
		idx := make([]int, len(cond.shape))
		for j, v := range c.Elements {
			if truth(v) {
				unravel(j, cond.shape, idx)
				keep[idx[ax]] = true
			}
		}
		var sel []int
		for i, k := range keep {
			if k {
				sel = append(sel, i)
			}
		}
		if len(sel) == cond.shape[ax] {
			continue
		}
		if out, err = out.Take(d, sel); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func truth(v float64) bool { return v != 0 && !math.IsNaN(v) }

// Equal reports whether a and b have the same dimensions and values.
func (a *DataArray) Equal(b *DataArray) (bool, error) {
	if !sameInts(a.shape, b.shape) {
		return false, nil
	}
	for i := range a.dims {
		if a.dims[i] != b.dims[i] {
			return false, nil
		}
	}
	av, err := a.Float64s()
	if err != nil {
		return false, err
	}
	bv, err := b.Float64s()
	if err != nil {
		return false, err
	}
	return floats.Equal(av, bv), nil
}

// Interp linearly interpolates a along dim onto the target coordinate
// values. a must have a one-dimensional coordinate along dim. Targets
// outside the range of the source coordinate are linearly extrapolated
// from the nearest two source points. The result carries target as its
// coordinate for dim.
func (a *DataArray) Interp(dim string, target *DataArray) (*DataArray, error) {
	ax := a.Axis(dim)
	if ax < 0 {
		return nil, fmt.Errorf("array: %s has no dimension %s", a.Name, dim)
	}
	if target.NDim() != 1 {
		return nil, fmt.Errorf("array: interpolation target for %s must be one-dimensional", dim)
	}
	src, ok, err := a.CoordValues(dim)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("array: %s has no coordinate along %s", a.Name, dim)
	}
	tv, err := target.Float64s()
	if err != nil {
		return nil, err
	}
	w, err := interpWeights(src, tv)
	if err != nil {
		return nil, fmt.Errorf("array: interpolating %s along %s: %v", a.Name, dim, err)
	}
	return a.applyWeights(dim, target, w)
}

type weight struct {
	lo, hi int
	f      float64
}

// interpWeights returns, for each target value, the source points and
// fraction used for linear interpolation. The source must be strictly
// monotonic.
func interpWeights(src, target []float64) ([]weight, error) {
	n := len(src)
	w := make([]weight, len(target))
	if n == 0 {
		return nil, fmt.Errorf("empty source coordinate")
	}
	if n == 1 {
		return w, nil
	}
	increasing := src[1] > src[0]
	for i := 1; i < n; i++ {
		if (src[i] > src[i-1]) != increasing || src[i] == src[i-1] {
			return nil, fmt.Errorf("source coordinate is not strictly monotonic")
		}
	}
	for j, x := range target {
		// Find the segment containing x, clamped to the end segments
		// so that outside values extrapolate.
		k := 0
		for k < n-2 {
			if increasing && x <= src[k+1] || !increasing && x >= src[k+1] {
				break
			}
			k++
		}
		w[j] = weight{lo: k, hi: k + 1, f: (x - src[k]) / (src[k+1] - src[k])}
	}
	return w, nil
}

func (a *DataArray) applyWeights(dim string, target *DataArray, w []weight) (*DataArray, error) {
	ax := a.Axis(dim)
	dims := copyStrings(a.dims)
	shape := copyInts(a.shape)
	shape[ax] = len(w)
	tc := target.Copy()
	tc.Name = dim
	tc.dims = []string{dim}
	coords := make(map[string]*DataArray, len(a.coords))
	for k, c := range a.coords {
		switch {
		case !c.HasDim(dim):
			coords[k] = c
		case c.NDim() == 1:
			// Other 1-D labels along dim cannot be carried over.
		default:
			cc, err := c.applyWeights(dim, target, w)
			if err != nil {
				return nil, err
			}
			delete(cc.coords, dim)
			coords[k] = cc
		}
	}
	coords[dim] = tc
	srcShape := copyInts(a.shape)
	return a.derive(dims, shape, coords, func(src *sparse.DenseArray) (*sparse.DenseArray, error) {
		out := sparse.ZerosDense(copyInts(shape)...)
		inner := product(srcShape[ax+1:])
		outer := product(srcShape[:ax])
		n := srcShape[ax]
		for o := 0; o < outer; o++ {
			for j, ww := range w {
				dst := (o*len(w) + j) * inner
				lo := (o*n + ww.lo) * inner
				if n == 1 {
					copy(out.Elements[dst:dst+inner], src.Elements[lo:lo+inner])
					continue
				}
				hi := (o*n + ww.hi) * inner
				for i := 0; i < inner; i++ {
					out.Elements[dst+i] = src.Elements[lo+i]*(1-ww.f) + src.Elements[hi+i]*ww.f
				}
			}
		}
		return out, nil
	}), nil
}

// indexMap returns, for every element of an array with outDims and
// outShape in row-major order, the flat index of the corresponding
// element of an array with inDims and inShape. Every dimension in inDims
// must be in outDims.
func indexMap(outDims []string, outShape []int, inDims []string, inShape []int) []int {
	inStride := make([]int, len(inShape))
	s := 1
	for i := len(inShape) - 1; i >= 0; i-- {
		inStride[i] = s
		s *= inShape[i]
	}
	stride := make([]int, len(outDims))
	for i, d := range outDims {
		if j := indexOf(inDims, d); j >= 0 {
			stride[i] = inStride[j]
		}
	}
	n := product(outShape)
	m := make([]int, n)
	idx := make([]int, len(outShape))
	flat := 0
	for j := 0; j < n; j++ {
		m[j] = flat
		for ax := len(outShape) - 1; ax >= 0; ax-- {
			idx[ax]++
			flat += stride[ax]
			if idx[ax] < outShape[ax] {
				break
			}
			flat -= stride[ax] * idx[ax]
			idx[ax] = 0
		}
	}
	return m
}

func unravel(j int, shape []int, idx []int) {
	for ax := len(shape) - 1; ax >= 0; ax-- {
		idx[ax] = j % shape[ax]
		j /= shape[ax]
	}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
