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
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testArray returns a (time: 2, depth: 3) array with values 0-5 and a
// depth coordinate.
func testArray(t *testing.T) *DataArray {
	a, err := FromValues("thetao", []string{"time", "depth"}, []int{2, 3}, []float64{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SetCoord("depth", FromSlice("depth", []float64{10, 20, 30})); err != nil {
		t.Fatal(err)
	}
	return a
}

func values(t *testing.T, a *DataArray) []float64 {
	v, err := a.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestLazy(t *testing.T) {
	calls := 0
	a := NewLazy("x", []string{"x"}, []int{3}, func() (*sparse.DenseArray, error) {
		calls++
		d := sparse.ZerosDense(3)
		d.Elements[2] = 7
		return d, nil
	})
	if a.Loaded() {
		t.Fatal("array should not be loaded")
	}
	b := a.Scale(2)
	if calls != 0 {
		t.Errorf("derived array triggered %d loads", calls)
	}
	if v := values(t, b); !reflect.DeepEqual(v, []float64{0, 0, 14}) {
		t.Errorf("scaled values: %v", v)
	}
	values(t, a)
	values(t, a.Copy())
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
}

func TestLazyError(t *testing.T) {
	fail := true
	a := NewLazy("x", []string{"x"}, []int{1}, func() (*sparse.DenseArray, error) {
		if fail {
			return nil, fmt.Errorf("read failed")
		}
		return sparse.ZerosDense(1), nil
	})
	if _, err := a.Values(); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	if _, err := a.Values(); err != nil {
		t.Errorf("retry after error: %v", err)
	}
}

func TestLazyShapeMismatch(t *testing.T) {
	a := NewLazy("x", []string{"x"}, []int{2}, func() (*sparse.DenseArray, error) {
		return sparse.ZerosDense(3), nil
	})
	if _, err := a.Values(); err == nil {
		t.Error("expected shape error")
	}
}

func TestIsel(t *testing.T) {
	a := testArray(t)
	t.Run("time", func(t *testing.T) {
		b, err := a.Isel("time", 1)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(b.Dims(), []string{"depth"}) {
			t.Errorf("dims: %v", b.Dims())
		}
		if v := values(t, b); !reflect.DeepEqual(v, []float64{3, 4, 5}) {
			t.Errorf("values: %v", v)
		}
		if _, ok := b.Coord("depth"); !ok {
			t.Error("depth coordinate dropped")
		}
	})
	t.Run("depth", func(t *testing.T) {
		b, err := a.Isel("depth", 2)
		if err != nil {
			t.Fatal(err)
		}
		if v := values(t, b); !reflect.DeepEqual(v, []float64{2, 5}) {
			t.Errorf("values: %v", v)
		}
		if _, ok := b.Coord("depth"); ok {
			t.Error("scalar depth coordinate should be dropped")
		}
	})
	t.Run("range", func(t *testing.T) {
		if _, err := a.Isel("depth", 3); err == nil {
			t.Error("expected out of range error")
		}
		if _, err := a.Isel("lat", 0); err == nil {
			t.Error("expected missing dimension error")
		}
	})
}

func TestSlice(t *testing.T) {
	a := testArray(t)
	b, err := a.Slice("depth", 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(b.Shape(), []int{2, 2}) {
		t.Errorf("shape: %v", b.Shape())
	}
	if v := values(t, b); !reflect.DeepEqual(v, []float64{1, 2, 4, 5}) {
		t.Errorf("values: %v", v)
	}
	d, _, err := b.CoordValues("depth")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d, []float64{20, 30}) {
		t.Errorf("depth: %v", d)
	}
}

func TestRename(t *testing.T) {
	a := testArray(t)
	b := a.Rename(map[string]string{"thetao": "votemper", "depth": "deptht"})
	if b.Name != "votemper" {
		t.Errorf("name: %s", b.Name)
	}
	if !reflect.DeepEqual(b.Dims(), []string{"time", "deptht"}) {
		t.Errorf("dims: %v", b.Dims())
	}
	c, ok := b.Coord("deptht")
	if !ok {
		t.Fatal("coordinate not renamed")
	}
	if !reflect.DeepEqual(c.Dims(), []string{"deptht"}) {
		t.Errorf("coordinate dims: %v", c.Dims())
	}
	if a.Name != "thetao" || !reflect.DeepEqual(a.Dims(), []string{"time", "depth"}) {
		t.Error("original array modified")
	}
}

func TestRenameDims(t *testing.T) {
	a := testArray(t)
	b := a.RenameDims(map[string]string{"depth": "z"})
	if b.Name != "thetao" {
		t.Errorf("name: %s", b.Name)
	}
	c, ok := b.Coord("depth")
	if !ok {
		t.Fatal("coordinate lost")
	}
	if !reflect.DeepEqual(c.Dims(), []string{"z"}) {
		t.Errorf("coordinate dims: %v", c.Dims())
	}
	if _, ok, _ := b.CoordValues("z"); !ok {
		t.Error("no coordinate along z")
	}
}

func TestInterp(t *testing.T) {
	const tolerance = 1.0e-10
	a := testArray(t)
	target := FromSlice("depth", []float64{5, 15, 30, 40})
	b, err := a.Interp("depth", target)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-0.5, 0.5, 2, 3, 2.5, 3.5, 5, 6}
	got := values(t, b)
	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if want[i] == 0 && got[i] != 0 || want[i] != 0 && different(got[i], want[i], tolerance) {
			t.Errorf("value %d: got %g, want %g", i, got[i], want[i])
		}
	}
	d, _, err := b.CoordValues("depth")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d, []float64{5, 15, 30, 40}) {
		t.Errorf("coordinate: %v", d)
	}
}

func TestInterpDecreasing(t *testing.T) {
	a, err := FromValues("p", []string{"z"}, []int{3}, []float64{30, 20, 10})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SetCoord("z", FromSlice("z", []float64{3, 2, 1})); err != nil {
		t.Fatal(err)
	}
	b, err := a.Interp("z", FromSlice("z", []float64{2.5, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if v := values(t, b); !reflect.DeepEqual(v, []float64{25, 0}) {
		t.Errorf("values: %v", v)
	}
}

func TestWhere(t *testing.T) {
	a := testArray(t)
	cond, err := FromValues("mask", []string{"depth"}, []int{3}, []float64{1, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Run("mask", func(t *testing.T) {
		b, err := a.Where(cond, -1, false)
		if err != nil {
			t.Fatal(err)
		}
		if v := values(t, b); !reflect.DeepEqual(v, []float64{0, -1, 2, 3, -1, 5}) {
			t.Errorf("values: %v", v)
		}
	})
	t.Run("drop", func(t *testing.T) {
		b, err := a.Where(cond, math.NaN(), true)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(b.Shape(), []int{2, 2}) {
			t.Errorf("shape: %v", b.Shape())
		}
		if v := values(t, b); !reflect.DeepEqual(v, []float64{0, 2, 3, 5}) {
			t.Errorf("values: %v", v)
		}
	})
	t.Run("incompatible", func(t *testing.T) {
		c, _ := FromValues("mask", []string{"lat"}, []int{3}, []float64{1, 0, 1})
		if _, err := a.Where(c, 0, false); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCombine(t *testing.T) {
	a := testArray(t)
	depth := FromSlice("depth", []float64{10, 20, 30})
	b, err := a.Combine(depth, func(x, y float64) float64 { return x + y })
	if err != nil {
		t.Fatal(err)
	}
	if v := values(t, b); !reflect.DeepEqual(v, []float64{10, 21, 32, 13, 24, 35}) {
		t.Errorf("values: %v", v)
	}
	lat, _ := FromValues("lat", []string{"lat"}, []int{2}, []float64{1, 2})
	c, err := a.Combine(lat, func(x, y float64) float64 { return x * y })
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.Dims(), []string{"time", "depth", "lat"}) {
		t.Errorf("dims: %v", c.Dims())
	}
	if v := values(t, c); !reflect.DeepEqual(v, []float64{0, 0, 1, 2, 2, 4, 3, 6, 4, 8, 5, 10}) {
		t.Errorf("values: %v", v)
	}
	bad := FromSlice("depth", []float64{1, 2})
	if _, err := a.Combine(bad, func(x, y float64) float64 { return x }); err == nil {
		t.Error("expected broadcast error")
	}
}

func TestBroadcastTo(t *testing.T) {
	depth := FromSlice("depth", []float64{10, 20, 30})
	b, err := depth.BroadcastTo([]string{"time", "depth"}, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if v := values(t, b); !reflect.DeepEqual(v, []float64{10, 20, 30, 10, 20, 30}) {
		t.Errorf("values: %v", v)
	}
}

func TestEqual(t *testing.T) {
	a := FromSlice("depth", []float64{1, 2})
	eq, err := a.Equal(FromSlice("depth", []float64{1, 2}))
	if err != nil || !eq {
		t.Errorf("equal arrays reported different: %v", err)
	}
	eq, _ = a.Equal(FromSlice("depth", []float64{1, 3}))
	if eq {
		t.Error("different arrays reported equal")
	}
}

func TestDataset(t *testing.T) {
	ds := NewDataset()
	a := testArray(t)
	if err := ds.SetVar("thetao", a); err != nil {
		t.Fatal(err)
	}
	if err := ds.SetCoord("depth", FromSlice("depth", []float64{10, 20, 30})); err != nil {
		t.Fatal(err)
	}
	if err := ds.SetCoord("bad", FromSlice("depth", []float64{1})); err == nil {
		t.Error("expected dimension size conflict")
	}
	if !reflect.DeepEqual(ds.Dims(), []string{"time", "depth"}) {
		t.Errorf("dims: %v", ds.Dims())
	}
	if !reflect.DeepEqual(ds.Names(), []string{"depth", "thetao"}) {
		t.Errorf("names: %v", ds.Names())
	}
	r := ds.Rename(map[string]string{"thetao": "temp", "depth": "z"})
	if !reflect.DeepEqual(r.Dims(), []string{"time", "z"}) {
		t.Errorf("renamed dims: %v", r.Dims())
	}
	v, ok := r.Var("temp")
	if !ok {
		t.Fatal("renamed variable missing")
	}
	if !reflect.DeepEqual(v.Dims(), []string{"time", "z"}) {
		t.Errorf("renamed variable dims: %v", v.Dims())
	}
	rd := ds.RenameDims(map[string]string{"time": "t"})
	if n, ok := rd.DimSize("t"); !ok || n != 2 {
		t.Errorf("renamed dimension size: %d, %v", n, ok)
	}
	if _, ok := rd.Var("thetao"); !ok {
		t.Error("variable name changed by RenameDims")
	}
}

func TestConcat(t *testing.T) {
	a := testArray(t)
	b, err := a.Slice("time", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Concat([]*DataArray{a, b}, "time")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.Shape(), []int{3, 3}) {
		t.Fatalf("shape: %v", c.Shape())
	}
	if !reflect.DeepEqual(values(t, c), []float64{0, 1, 2, 3, 4, 5, 3, 4, 5}) {
		t.Errorf("values: %v", values(t, c))
	}
	if _, ok := c.Coord("depth"); !ok {
		t.Error("depth coordinate lost")
	}
	d, err := Concat([]*DataArray{a, a}, "depth")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(values(t, d), []float64{0, 1, 2, 0, 1, 2, 3, 4, 5, 3, 4, 5}) {
		t.Errorf("inner concat values: %v", values(t, d))
	}
	if _, ok := d.Coord("depth"); ok {
		t.Error("coordinates along the joined dimension should be dropped")
	}
	if _, err := Concat([]*DataArray{a, a.RenameDims(map[string]string{"time": "t"})}, "depth"); err == nil {
		t.Error("expected error for different dimensions")
	}
}
