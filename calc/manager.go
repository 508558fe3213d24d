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

	"github.com/oceandiag/xoce/array"
	"github.com/sirupsen/logrus"
)

// ErrNotCalculable is returned by Calculate when a variable has no
// formula or some of its prerequisites are unavailable.
var ErrNotCalculable = errors.New("calc: variable cannot be calculated")

// Dataset is the source of prerequisite variables and the destination of
// calculated ones.
type Dataset interface {
	// Get returns the named variable, calculating it if necessary.
	Get(name string) (*array.DataArray, error)

	// Has reports whether name is available without calculation.
	Has(name string) bool

	// Set stores a calculated variable.
	Set(name string, v interface{}) error
}

// Manager calculates derived variables for a Dataset.
type Manager struct {
	ds  Dataset
	reg *Registry

	// Log receives debug messages about calculations.
	Log logrus.FieldLogger
}

// NewManager returns a manager computing the formulas in reg from the
// variables of ds.
func NewManager(ds Dataset, reg *Registry) *Manager {
	return &Manager{ds: ds, reg: reg, Log: logrus.StandardLogger()}
}

// Bind returns a manager using the same formulas for ds.
func (m *Manager) Bind(ds Dataset) *Manager {
	return &Manager{ds: ds, reg: m.reg, Log: m.Log}
}

// Registry returns the formulas of the manager.
func (m *Manager) Registry() *Registry { return m.reg }

// IsCalculable reports whether name has a formula whose prerequisites
// are all available or calculable.
func (m *Manager) IsCalculable(name string) bool {
	return m.isCalculable(name, make(map[string]bool))
}

func (m *Manager) isCalculable(name string, visiting map[string]bool) bool {
	f, ok := m.reg.Lookup(name)
	if !ok || visiting[name] {
		return false
	}
	visiting[name] = true
	defer delete(visiting, name)
	for _, req := range f.Requires {
		if m.ds.Has(req) {
			continue
		}
		if !m.isCalculable(req, visiting) {
			return false
		}
	}
	return true
}

// Missing returns the prerequisites of name, direct or indirect, that
// are neither available nor calculable.
func (m *Manager) Missing(name string) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		f, ok := m.reg.Lookup(n)
		if !ok {
			return
		}
		for _, req := range f.Requires {
			if seen[req] || m.ds.Has(req) {
				continue
			}
			seen[req] = true
			if _, ok := m.reg.Lookup(req); ok {
				walk(req)
			} else {
				out = append(out, req)
			}
		}
	}
	walk(name)
	return out
}

// Calculate computes name, stores it in the dataset and returns it.
// Prerequisites are read with the dataset's Get method, so a derived
// prerequisite is calculated and stored before name is.
func (m *Manager) Calculate(name string) (*array.DataArray, error) {
	if !m.IsCalculable(name) {
		if missing := m.Missing(name); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s (missing %v)", ErrNotCalculable, name, missing)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotCalculable, name)
	}
	f, _ := m.reg.Lookup(name)
	in := make(Inputs, len(f.Requires))
	for _, req := range f.Requires {
		v, err := m.ds.Get(req)
		if err != nil {
			return nil, fmt.Errorf("calc: %s: %w", name, err)
		}
		in[req] = v
	}
	m.Log.WithFields(logrus.Fields{
		"variable": name,
		"requires": f.Requires,
	}).Debug("calc calculating")
	out, err := f.Func(in)
	if err != nil {
		return nil, fmt.Errorf("calc: %s: %w", name, err)
	}
	out.Name = name
	if out.Attrs == nil {
		out.Attrs = make(map[string]interface{})
	}
	if f.Units != "" {
		out.Attrs["units"] = f.Units
	}
	if f.LongName != "" {
		out.Attrs["long_name"] = f.LongName
	}
	if err := m.ds.Set(name, out); err != nil {
		return nil, fmt.Errorf("calc: storing %s: %w", name, err)
	}
	return out, nil
}
