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

// Package calc computes derived variables from the variables of a
// dataset. Each derived variable is described by a Formula naming the
// variables it requires; a Manager resolves those requirements through
// its dataset, recursively computing any that are themselves derived.
package calc

import (
	"fmt"
	"sort"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/calc/thermo"
)

// Inputs holds the prerequisite arrays of a formula by name.
type Inputs map[string]*array.DataArray

// Formula describes how to compute a derived variable.
type Formula struct {
	// Name is the name of the derived variable.
	Name string

	// Requires lists the variables that Func reads from its Inputs.
	Requires []string

	// Func computes the variable.
	Func func(in Inputs) (*array.DataArray, error)

	// Units and LongName are set as the "units" and "long_name"
	// attributes of the result when they are not empty.
	Units, LongName string
}

// Registry holds formulas by name.
type Registry struct {
	formulas map[string]Formula
}

// NewRegistry returns a registry holding the given formulas.
func NewRegistry(formulas ...Formula) (*Registry, error) {
	r := &Registry{formulas: make(map[string]Formula)}
	for _, f := range formulas {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds f to the registry, replacing any formula with the same
// name.
func (r *Registry) Register(f Formula) error {
	if f.Name == "" {
		return fmt.Errorf("calc: formula has no name")
	}
	if f.Func == nil {
		return fmt.Errorf("calc: formula %s has no function", f.Name)
	}
	for _, req := range f.Requires {
		if req == f.Name {
			return fmt.Errorf("calc: formula %s requires itself", f.Name)
		}
	}
	r.formulas[f.Name] = f
	return nil
}

// Lookup returns the formula for name.
func (r *Registry) Lookup(name string) (Formula, bool) {
	f, ok := r.formulas[name]
	return f, ok
}

// Names returns the sorted names of the registered formulas.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.formulas))
	for n := range r.formulas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of r that can be modified independently.
func (r *Registry) Clone() *Registry {
	o := &Registry{formulas: make(map[string]Formula, len(r.formulas))}
	for k, v := range r.formulas {
		o.formulas[k] = v
	}
	return o
}

// DefaultRegistry returns the seawater formulas of package thermo.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Formula{
			Name:     "bigthetao",
			Requires: []string{"so", "thetao"},
			Func: func(in Inputs) (*array.DataArray, error) {
				return thermo.BigThetao(in["so"], in["thetao"])
			},
		},
		Formula{
			Name:     "rho",
			Requires: []string{"so", "bigthetao", "depth"},
			Func: func(in Inputs) (*array.DataArray, error) {
				return thermo.Density(in["bigthetao"], in["so"], in["depth"])
			},
		},
		Formula{
			Name:     "alpha",
			Requires: []string{"thetao", "so", "depth"},
			Func: func(in Inputs) (*array.DataArray, error) {
				a, _, err := thermo.EOSCoefficients(in["thetao"], in["so"], in["depth"])
				return a, err
			},
		},
		Formula{
			Name:     "beta",
			Requires: []string{"thetao", "so", "depth"},
			Func: func(in Inputs) (*array.DataArray, error) {
				_, b, err := thermo.EOSCoefficients(in["thetao"], in["so"], in["depth"])
				return b, err
			},
		},
		Formula{
			Name:     "N2",
			Requires: []string{"thetao", "so", "depth", "e3t"},
			Func: func(in Inputs) (*array.DataArray, error) {
				return thermo.N2(in["thetao"], in["so"], in["depth"], in["e3t"])
			},
		},
		Formula{
			Name:     "Nsquared",
			Requires: []string{"so", "thetao", "depth", "latitude"},
			Func: func(in Inputs) (*array.DataArray, error) {
				return thermo.Nsquared(in["so"], in["thetao"], in["depth"], in["latitude"])
			},
		},
		Formula{
			Name:     "pressure",
			Requires: []string{"depth"},
			Func: func(in Inputs) (*array.DataArray, error) {
				return thermo.Pressure(in["depth"]), nil
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
