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

package expr

import (
	"math"
	"reflect"
	"testing"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/calc"
)

func TestCompile(t *testing.T) {
	thetao, err := array.FromValues("thetao", []string{"y", "x"}, []int{1, 2}, []float64{10, 20})
	if err != nil {
		t.Fatal(err)
	}
	uo, err := array.FromValues("uo", []string{"x"}, []int{2}, []float64{3, 0})
	if err != nil {
		t.Fatal(err)
	}
	vo, err := array.FromValues("vo", []string{"x"}, []int{2}, []float64{4, 2})
	if err != nil {
		t.Fatal(err)
	}
	in := calc.Inputs{"thetao": thetao, "uo": uo, "vo": vo}

	tests := []struct {
		name, expr string
		requires   []string
		want       []float64
	}{
		{name: "thetao_k", expr: "thetao + 273.15", requires: []string{"thetao"}, want: []float64{283.15, 293.15}},
		{name: "speed", expr: "sqrt(uo**2 + vo**2)", requires: []string{"uo", "vo"}, want: []float64{5, 2}},
		{name: "warm", expr: "thetao > 15", requires: []string{"thetao"}, want: []float64{0, 1}},
		{name: "mixed", expr: "thetao * uo + uo", requires: []string{"thetao", "uo"}, want: []float64{33, 0}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f, err := Compile(test.name, test.expr)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(f.Requires, test.requires) {
				t.Errorf("requires: got %v, want %v", f.Requires, test.requires)
			}
			out, err := f.Func(in)
			if err != nil {
				t.Fatal(err)
			}
			v, err := out.Float64s()
			if err != nil {
				t.Fatal(err)
			}
			for i := range v {
				if math.Abs(v[i]-test.want[i]) > 1.0e-10 {
					t.Errorf("got %v, want %v", v, test.want)
					break
				}
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, e := range []string{"thetao +", "1 + 2", "x + exp(1, 2)"} {
		if _, err := Compile("x2", e); err == nil {
			t.Errorf("%q: expected error", e)
		}
	}
	if _, err := Compile("x", "x + 1"); err == nil {
		t.Error("expected error for self reference")
	}
}

func TestRegister(t *testing.T) {
	reg := calc.DefaultRegistry()
	err := Register(reg, map[string]string{
		"thetao_k": "thetao + 273.15",
		"rho_anom": "rho - 1026",
	})
	if err != nil {
		t.Fatal(err)
	}
	f, ok := reg.Lookup("rho_anom")
	if !ok {
		t.Fatal("rho_anom not registered")
	}
	if !reflect.DeepEqual(f.Requires, []string{"rho"}) {
		t.Errorf("requires: %v", f.Requires)
	}
	if err := Register(reg, map[string]string{"bad": "+"}); err == nil {
		t.Error("expected error")
	}
}
