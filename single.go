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
	"fmt"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/ncio"
	"github.com/sirupsen/logrus"
)

var _ Store = (*SingleDatasetStore)(nil)

// SingleDatasetStore loads all of its files into one dataset when the
// Experiment is loaded.
type SingleDatasetStore struct {
	// Paths are the output files or glob patterns to open. Files are
	// joined along their record dimension.
	Paths []string

	// Mesh is the path of an optional grid-geometry file.
	Mesh string
}

// Load opens the files of s and the mesh, applies the replacements in
// opts and canonicalizes all names through the registry of e.
func (s *SingleDatasetStore) Load(e *Experiment, opts LoadOptions) error {
	ds, err := openDataset(e.Log, s.Paths)
	if err != nil {
		return err
	}
	var mesh *array.Dataset
	if s.Mesh != "" {
		if mesh, err = ncio.Open(s.Mesh); err != nil {
			return fmt.Errorf("xoce: opening mesh: %v", err)
		}
		if !mergeCoordinates(mesh, ds) {
			e.Log.WithField("mesh", s.Mesh).Warn("xoce: mesh and dataset coordinates are not everywhere equal")
		}
		if err := replace(mesh, opts.Replace); err != nil {
			return err
		}
	}
	if err := replace(ds, opts.Replace); err != nil {
		return err
	}
	ds = ds.Rename(e.Registry.datasetRenames(ds))
	e.setDataset(ds)
	if mesh != nil {
		e.SetMesh(mesh.Rename(e.Registry.datasetRenames(mesh)))
	}
	return nil
}

// Resolve reports false: every variable is loaded by Load.
func (s *SingleDatasetStore) Resolve(*Experiment, string) (*array.DataArray, bool, error) {
	return nil, false, nil
}

// Variables returns nil: every variable is loaded by Load.
func (s *SingleDatasetStore) Variables() []string { return nil }

// Rename does nothing: every variable is loaded by Load.
func (s *SingleDatasetStore) Rename(map[string]string) {}

// RenameDims does nothing: every variable is loaded by Load.
func (s *SingleDatasetStore) RenameDims(map[string]string) {}

// Extract returns a copy of s.
func (s *SingleDatasetStore) Extract([]string) Store {
	o := *s
	o.Paths = append([]string(nil), s.Paths...)
	return &o
}

// openDataset opens paths as one dataset and decodes its times. Times
// that cannot be decoded are left as numbers.
func openDataset(log logrus.FieldLogger, paths []string) (*array.Dataset, error) {
	ds, err := ncio.OpenMulti(paths, ncio.Options{})
	if err != nil {
		return nil, fmt.Errorf("xoce: %v", err)
	}
	months, err := ncio.DecodeTimes(ds)
	if err != nil {
		log.WithError(err).Warn("xoce: times left undecoded")
	} else if len(months) > 0 {
		log.WithField("coordinates", months).Info("xoce: times decoded as month offsets")
	}
	return ds, nil
}

// mergeCoordinates exchanges coordinates between mesh and ds: each
// receives the coordinates of the other that it lacks, provided it has
// all their dimensions with the same sizes. It reports whether the
// coordinates present in both are equal.
func mergeCoordinates(mesh, ds *array.Dataset) bool {
	equal := true
	for _, name := range ds.CoordNames() {
		c, _ := ds.Coord(name)
		mc, ok := mesh.Coord(name)
		if !ok {
			continue
		}
		if eq, err := mc.Equal(c); err != nil || !eq {
			equal = false
		}
	}
	merge := func(dst, src *array.Dataset) {
		for _, name := range src.CoordNames() {
			c, _ := src.Coord(name)
			if dst.Has(name) || !hasAllDims(dst, c) {
				continue
			}
			_ = dst.SetCoord(name, c)
		}
	}
	merge(mesh, ds)
	merge(ds, mesh)
	return equal
}

func hasAllDims(ds *array.Dataset, c *array.DataArray) bool {
	for _, d := range c.Dims() {
		if _, ok := ds.DimSize(d); !ok {
			return false
		}
	}
	return true
}

// replace stores the values of m[name] under name when both are in ds.
func replace(ds *array.Dataset, m map[string]string) error {
	for _, name := range sortedKeys(m) {
		src := m[name]
		if !ds.Has(name) || !ds.Has(src) {
			continue
		}
		v, _ := ds.Get(src)
		r := v.Copy()
		r.Name = name
		var err error
		if _, ok := ds.Coord(name); ok {
			err = ds.SetCoord(name, r)
		} else {
			err = ds.SetVar(name, r)
		}
		if err != nil {
			return fmt.Errorf("xoce: replacing %s with %s: %v", name, src, err)
		}
	}
	return nil
}
