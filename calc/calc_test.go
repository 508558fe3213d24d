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

package calc

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/calc/thermo"
)

type mapDataset struct {
	vars map[string]*array.DataArray
	mgr  *Manager
	gets map[string]int
}

func newMapDataset(reg *Registry) *mapDataset {
	d := &mapDataset{
		vars: make(map[string]*array.DataArray),
		gets: make(map[string]int),
	}
	d.mgr = NewManager(d, reg)
	return d
}

func (d *mapDataset) Get(name string) (*array.DataArray, error) {
	d.gets[name]++
	if v, ok := d.vars[name]; ok {
		return v, nil
	}
	if d.mgr.IsCalculable(name) {
		return d.mgr.Calculate(name)
	}
	return nil, fmt.Errorf("%s not found", name)
}

func (d *mapDataset) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

func (d *mapDataset) Set(name string, v interface{}) error {
	a, ok := v.(*array.DataArray)
	if !ok {
		return fmt.Errorf("%T is not an array", v)
	}
	if _, ok := d.vars[name]; !ok {
		d.vars[name] = a
	}
	return nil
}

func column(t *testing.T, d *mapDataset) {
	d.vars["depth"] = array.FromSlice("depth", []float64{0, 10, 20})
	for name, v := range map[string][]float64{
		"thetao": {20, 15, 10},
		"so":     {35, 35.5, 36},
		"e3t":    {10, 10, 10},
	} {
		a, err := array.FromValues(name, []string{"depth"}, []int{3}, v)
		if err != nil {
			t.Fatal(err)
		}
		d.vars[name] = a
	}
}

func TestIsCalculable(t *testing.T) {
	d := newMapDataset(DefaultRegistry())
	column(t, d)
	for _, name := range []string{"bigthetao", "rho", "alpha", "beta", "N2", "pressure"} {
		if !d.mgr.IsCalculable(name) {
			t.Errorf("%s should be calculable", name)
		}
	}
	if d.mgr.IsCalculable("Nsquared") {
		t.Error("Nsquared needs latitude")
	}
	if d.mgr.IsCalculable("thetao") {
		t.Error("stored variables have no formula")
	}
	if !reflect.DeepEqual(d.mgr.Missing("Nsquared"), []string{"latitude"}) {
		t.Errorf("missing: %v", d.mgr.Missing("Nsquared"))
	}
	delete(d.vars, "thetao")
	if d.mgr.IsCalculable("rho") {
		t.Error("rho needs thetao through bigthetao")
	}
}

func TestIsCalculableCycle(t *testing.T) {
	f := func(Inputs) (*array.DataArray, error) { return nil, nil }
	reg, err := NewRegistry(
		Formula{Name: "a", Requires: []string{"b"}, Func: f},
		Formula{Name: "b", Requires: []string{"a"}, Func: f},
	)
	if err != nil {
		t.Fatal(err)
	}
	d := newMapDataset(reg)
	if d.mgr.IsCalculable("a") {
		t.Error("cyclic formulas should not be calculable")
	}
	if _, err := d.mgr.Calculate("a"); !errors.Is(err, ErrNotCalculable) {
		t.Errorf("got %v, want ErrNotCalculable", err)
	}
}

func TestCalculate(t *testing.T) {
	d := newMapDataset(DefaultRegistry())
	column(t, d)
	rho, err := d.Get("rho")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.vars["bigthetao"]; !ok {
		t.Error("intermediate result not stored")
	}
	if d.vars["rho"] != rho {
		t.Error("result not stored")
	}
	if d.gets["bigthetao"] != 1 {
		t.Errorf("bigthetao requested %d times", d.gets["bigthetao"])
	}
	want, err := thermo.Density(d.vars["thetao"], d.vars["so"], d.vars["depth"])
	if err != nil {
		t.Fatal(err)
	}
	if eq, err := rho.Equal(want); err != nil || !eq {
		t.Errorf("rho differs from thermo.Density: %v", err)
	}
	if rho.Name != "rho" {
		t.Errorf("name: %s", rho.Name)
	}

	// A second request is served from the dataset.
	again, err := d.Get("rho")
	if err != nil {
		t.Fatal(err)
	}
	if again != rho {
		t.Error("rho recalculated")
	}
}

func TestCalculateMissing(t *testing.T) {
	d := newMapDataset(DefaultRegistry())
	column(t, d)
	_, err := d.mgr.Calculate("Nsquared")
	if !errors.Is(err, ErrNotCalculable) {
		t.Fatalf("got %v, want ErrNotCalculable", err)
	}
	if _, err := d.mgr.Calculate("unknown"); !errors.Is(err, ErrNotCalculable) {
		t.Errorf("got %v, want ErrNotCalculable", err)
	}
}

func TestCalculateAttributes(t *testing.T) {
	reg := DefaultRegistry()
	err := reg.Register(Formula{
		Name:     "thetao_k",
		Requires: []string{"thetao"},
		Func: func(in Inputs) (*array.DataArray, error) {
			return in["thetao"].AddScalar(273.15), nil
		},
		Units:    "K",
		LongName: "potential temperature",
	})
	if err != nil {
		t.Fatal(err)
	}
	d := newMapDataset(reg)
	column(t, d)
	k, err := d.mgr.Calculate("thetao_k")
	if err != nil {
		t.Fatal(err)
	}
	if k.Attrs["units"] != "K" || k.Attrs["long_name"] != "potential temperature" {
		t.Errorf("attributes: %v", k.Attrs)
	}
	if d.vars["thetao"].Attrs["units"] != nil {
		t.Error("input attributes modified")
	}
}

func TestRegister(t *testing.T) {
	reg, _ := NewRegistry()
	if err := reg.Register(Formula{Name: "x"}); err == nil {
		t.Error("expected error for missing function")
	}
	f := func(Inputs) (*array.DataArray, error) { return nil, nil }
	if err := reg.Register(Formula{Requires: []string{"y"}, Func: f}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := reg.Register(Formula{Name: "x", Requires: []string{"x"}, Func: f}); err == nil {
		t.Error("expected error for self reference")
	}
	want := []string{"N2", "Nsquared", "alpha", "beta", "bigthetao", "pressure", "rho"}
	if got := DefaultRegistry().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("names: %v", got)
	}
	c := DefaultRegistry()
	cl := c.Clone()
	if err := cl.Register(Formula{Name: "x", Func: f}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("x"); ok {
		t.Error("clone shares formulas with the original")
	}
}
