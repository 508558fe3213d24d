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

package xoce

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/cmip6"
	"github.com/oceandiag/xoce/ncio"
	"github.com/sirupsen/logrus"
)

var _ Store = (*CMIPStore)(nil)

// CMIPStore loads CMIP6 variables one at a time from the files of a
// directory tree, using the Data Reference Syntax of their names to find
// the files of each variable.
type CMIPStore struct {
	// Dir is the root of the directory tree.
	Dir string

	// Mesh is the path of an optional grid-geometry file.
	Mesh string

	index   *cmip6.Index
	only    []string
	reg     Registry
	renames []storeRename
}

// Load indexes the files under s.Dir and opens the mesh. No variable is
// read.
func (s *CMIPStore) Load(e *Experiment, opts LoadOptions) error {
	s.reg, s.renames = e.Registry, nil
	if err := s.scan(); err != nil {
		return err
	}
	if s.Mesh == "" {
		return nil
	}
	mesh, err := ncio.Open(s.Mesh)
	if err != nil {
		return fmt.Errorf("xoce: opening mesh: %v", err)
	}
	if err := replace(mesh, opts.Replace); err != nil {
		return err
	}
	e.SetMesh(mesh.Rename(e.Registry.datasetRenames(mesh)))
	return nil
}

func (s *CMIPStore) scan() error {
	idx, err := cmip6.Scan(s.Dir)
	if err != nil {
		return err
	}
	if s.only != nil {
		idx = idx.Extract(cmip6.VariableID, s.only)
	}
	s.index = idx
	return nil
}

// Index returns the Data Reference Syntax index of s, or nil if s has
// not been loaded.
func (s *CMIPStore) Index() *cmip6.Index { return s.index }

// Resolve loads name if the index holds a variable exposed under it.
func (s *CMIPStore) Resolve(e *Experiment, name string) (*array.DataArray, bool, error) {
	if _, ok := s.variableID(e.Registry, name); !ok {
		return nil, false, nil
	}
	v, err := s.LoadVariable(e, name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// LoadVariable reads the files holding variable name, adds the
// dimensions and coordinates of those files that e does not know yet,
// and stores the variable in e. Renames applied to the store are
// applied to the files before anything is added. It returns a
// *NotFoundError if no file holds the variable.
func (s *CMIPStore) LoadVariable(e *Experiment, name string) (*array.DataArray, error) {
	if s.index == nil {
		if err := s.scan(); err != nil {
			return nil, err
		}
	}
	s.reg = e.Registry
	id, ok := s.variableID(e.Registry, name)
	if !ok {
		id = name
	}
	files, err := s.index.FilesFor(id)
	if errors.Is(err, cmip6.ErrNoMatch) {
		return nil, &NotFoundError{Name: name, Available: e.Variables(), Err: err}
	}
	if err != nil {
		return nil, err
	}
	for i, f := range files {
		files[i] = filepath.Join(s.index.Root, f)
	}
	e.Log.WithFields(logrus.Fields{
		"variable": name,
		"files":    files,
	}).Debug("xoce opening CMIP6 files")
	ds, err := openDataset(e.Log, files)
	if err != nil {
		return nil, err
	}
	if _, ok := ds.Var(id); !ok {
		return nil, fmt.Errorf("xoce: %s is not in %v", id, files)
	}
	ds = ds.Rename(e.Registry.datasetRenames(ds))
	for _, r := range s.renames {
		if r.dimsOnly {
			ds = ds.RenameDims(r.m)
		} else {
			ds = ds.Rename(r.m)
		}
	}
	exposed := s.exposedName(e.Registry, id)
	v, ok := ds.Var(exposed)
	if !ok {
		return nil, fmt.Errorf("xoce: %s (variable_id %s) is not in %v", exposed, id, files)
	}
	for _, d := range ds.Dims() {
		n, _ := ds.DimSize(d)
		e.AddDim(d, n)
	}
	for _, c := range ds.CoordNames() {
		coord, _ := ds.Coord(c)
		e.AddCoordinate(c, coord, false)
	}
	_, v = e.AddVariable(exposed, v, false)
	return v, nil
}

// Variables returns the names the variable_id values of the index are
// exposed under: their canonical forms, renamed by Rename.
func (s *CMIPStore) Variables() []string {
	ids := s.index.Values(cmip6.VariableID)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, s.exposedName(s.reg, id))
	}
	sort.Strings(names)
	return names
}

// Rename renames the variables the store provides according to m.
// Dimensions and coordinates with the same names are renamed in the
// variables loaded afterwards.
func (s *CMIPStore) Rename(m map[string]string) {
	s.renames = append(s.renames, storeRename{m: copyMap(m)})
}

// RenameDims renames the dimensions of the variables loaded afterwards
// according to m.
func (s *CMIPStore) RenameDims(m map[string]string) {
	s.renames = append(s.renames, storeRename{m: copyMap(m), dimsOnly: true})
}

// exposedName returns the name variable_id id is provided under.
func (s *CMIPStore) exposedName(reg Registry, id string) string {
	n := reg.Canonical(id)
	for _, r := range s.renames {
		if r.dimsOnly {
			continue
		}
		if to, ok := r.m[n]; ok {
			n = to
		}
	}
	return n
}

// variableID returns the variable_id exposed under name.
func (s *CMIPStore) variableID(reg Registry, name string) (string, bool) {
	for _, id := range s.index.Values(cmip6.VariableID) {
		if s.exposedName(reg, id) == name {
			return id, true
		}
	}
	return "", false
}

// Extract returns a copy of s whose index only holds the variables
// exposed under names.
func (s *CMIPStore) Extract(names []string) Store {
	o := *s
	o.renames = append([]storeRename(nil), s.renames...)
	ids := make([]string, 0, len(names))
	for _, n := range names {
		if id, ok := s.variableID(s.reg, n); ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, n)
		}
	}
	o.only = []string{}
	for _, id := range ids {
		if s.only == nil || contains(s.only, id) {
			o.only = append(o.only, id)
		}
	}
	if s.index != nil {
		o.index = s.index.Extract(cmip6.VariableID, ids)
	}
	return &o
}

// storeRename is a rename applied to a store after it was loaded.
type storeRename struct {
	m        map[string]string
	dimsOnly bool
}

func copyMap(m map[string]string) map[string]string {
	o := make(map[string]string, len(m))
	for k, v := range m {
		o[k] = v
	}
	return o
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
