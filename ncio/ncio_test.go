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
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/cftime"
)

// testDataset returns a dataset with a (time_counter, deptht) temperature
// field starting at time t0.
func testDataset(t *testing.T, t0 float64) *array.Dataset {
	ds := array.NewDataset()
	temp, err := array.FromValues("votemper", []string{"time_counter", "deptht"}, []int{2, 3},
		[]float64{t0, t0 + 1, t0 + 2, t0 + 3, t0 + 4, math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	temp.Attrs["units"] = "degC"
	temp.Attrs["long_name"] = "Temperature"
	temp.Attrs["_FillValue"] = 1.0e20
	depth := array.FromSlice("deptht", []float64{5, 15, 25})
	depth.Attrs["units"] = "m"
	tc := array.FromSlice("time_counter", []float64{t0, t0 + 1})
	tc.Attrs["units"] = "days since 2000-01-01"
	tc.Attrs["calendar"] = "noleap"
	for name, c := range map[string]*array.DataArray{"deptht": depth, "time_counter": tc} {
		if err := temp.SetCoord(name, c); err != nil {
			t.Fatal(err)
		}
		if err := ds.SetCoord(name, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := ds.SetVar("votemper", temp); err != nil {
		t.Fatal(err)
	}
	e3t, err := array.FromValues("e3t", []string{"deptht"}, []int{3}, []float64{10, 10, 10})
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.SetVar("e3t", e3t); err != nil {
		t.Fatal(err)
	}
	ds.Attrs["title"] = "test"
	return ds
}

func writeTestFile(t *testing.T, path string, ds *array.Dataset) {
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := Write(f, ds, WriteOptions{RecordDim: "time_counter"}); err != nil {
		t.Fatal(err)
	}
}

func TestWriteOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.nc")
	writeTestFile(t, path, testDataset(t, 0))

	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ds.VarNames(), []string{"e3t", "votemper"}) {
		t.Errorf("variables: %v", ds.VarNames())
	}
	if !reflect.DeepEqual(ds.CoordNames(), []string{"deptht", "time_counter"}) {
		t.Errorf("coordinates: %v", ds.CoordNames())
	}
	if ds.Attrs[RecordDimAttr] != "time_counter" {
		t.Errorf("record dimension: %v", ds.Attrs[RecordDimAttr])
	}
	if ds.Attrs["title"] != "test" {
		t.Errorf("title: %v", ds.Attrs["title"])
	}
	v, _ := ds.Var("votemper")
	if v.Loaded() {
		t.Error("variable should be read lazily")
	}
	if !reflect.DeepEqual(v.Shape(), []int{2, 3}) {
		t.Errorf("shape: %v", v.Shape())
	}
	if v.Attrs["units"] != "degC" {
		t.Errorf("units: %v", v.Attrs["units"])
	}
	vals, err := v.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{0, 1, 2, 3, 4} {
		if vals[i] != want {
			t.Errorf("value %d: got %g, want %g", i, vals[i], want)
		}
	}
	if !math.IsNaN(vals[5]) {
		t.Errorf("missing value: got %g, want NaN", vals[5])
	}
	d, ok, err := v.CoordValues("deptht")
	if err != nil || !ok {
		t.Fatalf("depth coordinate: %v, %v", ok, err)
	}
	if !reflect.DeepEqual(d, []float64{5, 15, 25}) {
		t.Errorf("depth: %v", d)
	}
}

func TestOpenMulti(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "out_1.nc"), testDataset(t, 0))
	writeTestFile(t, filepath.Join(dir, "out_2.nc"), testDataset(t, 2))

	ds, err := OpenMulti([]string{filepath.Join(dir, "out_*.nc")}, Options{DecodeTimes: true})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := ds.DimSize("time_counter"); n != 4 {
		t.Errorf("time_counter size: %d", n)
	}
	tc, _ := ds.Coord("time_counter")
	vals, err := tc.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vals, []float64{0, 1, 2, 3}) {
		t.Errorf("time_counter: %v", vals)
	}
	dates, ok := tc.Attrs[TimesAttr].([]cftime.Date)
	if !ok || len(dates) != 4 || dates[3].String() != "2000-01-04 00:00:00" {
		t.Errorf("decoded times: %v", tc.Attrs[TimesAttr])
	}
	v, _ := ds.Var("votemper")
	if !reflect.DeepEqual(v.Shape(), []int{4, 3}) {
		t.Errorf("shape: %v", v.Shape())
	}
	got, err := v.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	if got[6] != 2 || got[10] != 6 {
		t.Errorf("joined values: %v", got)
	}
	e3t, _ := ds.Var("e3t")
	if !reflect.DeepEqual(e3t.Shape(), []int{3}) {
		t.Errorf("static variable shape: %v", e3t.Shape())
	}
	if _, err := OpenMulti([]string{filepath.Join(dir, "none_*.nc")}, Options{}); err == nil {
		t.Error("expected error for unmatched pattern")
	}
}

func TestDecodeTimesMonths(t *testing.T) {
	ds := array.NewDataset()
	tc := array.FromSlice("time", []float64{0, 1, 13})
	tc.Attrs["units"] = "months since 1850-01-15"
	if err := ds.SetCoord("time", tc); err != nil {
		t.Fatal(err)
	}
	months, err := DecodeTimes(ds)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(months, []string{"time"}) {
		t.Errorf("month offset coordinates: %v", months)
	}
	dates := tc.Attrs[TimesAttr].([]cftime.Date)
	if dates[2].String() != "1851-02-15 00:00:00" {
		t.Errorf("dates: %v", dates)
	}
}

func TestWriteFixedOnly(t *testing.T) {
	ds := array.NewDataset()
	e3t, err := array.FromValues("e3t", []string{"t", "z", "y"}, []int{1, 3, 2}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.SetVar("e3t", e3t); err != nil {
		t.Fatal(err)
	}
	if err := ds.SetCoord("z", array.FromSlice("z", []float64{5, 15, 25})); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "mesh_mask.nc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Write(f, ds, WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := out.Var("e3t")
	if !ok {
		t.Fatalf("variables: %v", out.Names())
	}
	got, err := v.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []float64{1, 2, 3, 4, 5, 6}) {
		t.Errorf("e3t: %v", got)
	}
	z, _ := out.Coord("z")
	if zv, err := z.Float64s(); err != nil || !reflect.DeepEqual(zv, []float64{5, 15, 25}) {
		t.Errorf("z: %v, %v", zv, err)
	}
}
