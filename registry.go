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
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/oceandiag/xoce/array"
)

// Kind identifies a type of Experiment and its naming conventions.
type Kind string

// Experiment kinds.
const (
	// NEMO output files opened as one dataset.
	KindNEMO Kind = "nemo"

	// CMIP6 output files indexed by their Data Reference Syntax.
	KindCMIP Kind = "cmip"
)

// Registry maps the variable, dimension and coordinate names used in
// source files to the canonical names used inside an Experiment.
type Registry struct {
	// Names maps source names to canonical names.
	Names map[string]string `toml:"names"`

	// DimCoordinates maps dimension names to the name of the Experiment
	// coordinate holding their canonical values. Dimensions not listed
	// use the coordinate of the same name.
	DimCoordinates map[string]string `toml:"dim_coordinates"`
}

var defaultRegistries = map[Kind]Registry{
	KindNEMO: {
		Names: map[string]string{
			"votemper":     "thetao",
			"vosaline":     "so",
			"vozocrtx":     "uo",
			"vomecrty":     "vo",
			"vovecrtz":     "wo",
			"sossheig":     "zos",
			"somxl010":     "mlotst",
			"time_counter": "time",
			"deptht":       "depth",
			"z":            "depth",
			"nav_lat":      "latitude",
			"nav_lon":      "longitude",
		},
		DimCoordinates: map[string]string{
			"depthu": "depth",
			"depthv": "depth",
			"depthw": "depth",
		},
	},
	KindCMIP: {
		Names: map[string]string{
			"lev":    "depth",
			"olevel": "depth",
			"lat":    "latitude",
			"lon":    "longitude",
		},
	},
}

// DefaultRegistry returns a copy of the registry of the given kind.
func DefaultRegistry(k Kind) (Registry, error) {
	r, ok := defaultRegistries[k]
	if !ok {
		return Registry{}, fmt.Errorf("xoce: unknown experiment kind '%s'", k)
	}
	return Registry{}.Merge(r), nil
}

// LoadRegistryFile reads a registry from a TOML file with [names] and
// [dim_coordinates] tables.
func LoadRegistryFile(path string) (Registry, error) {
	var r Registry
	if _, err := toml.DecodeFile(path, &r); err != nil {
		return Registry{}, fmt.Errorf("xoce: reading registry: %v", err)
	}
	return r, nil
}

// Merge returns a registry holding the entries of r and o. Entries of o
// take precedence.
func (r Registry) Merge(o Registry) Registry {
	out := Registry{
		Names:          make(map[string]string, len(r.Names)+len(o.Names)),
		DimCoordinates: make(map[string]string, len(r.DimCoordinates)+len(o.DimCoordinates)),
	}
	for _, m := range []map[string]string{r.Names, o.Names} {
		for k, v := range m {
			out.Names[k] = v
		}
	}
	for _, m := range []map[string]string{r.DimCoordinates, o.DimCoordinates} {
		for k, v := range m {
			out.DimCoordinates[k] = v
		}
	}
	return out
}

// Canonical returns the canonical form of name.
func (r Registry) Canonical(name string) string {
	if n, ok := r.Names[name]; ok {
		return n
	}
	return name
}

// Coordinate returns the name of the coordinate holding the canonical
// values of dim.
func (r Registry) Coordinate(dim string) string {
	if c, ok := r.DimCoordinates[dim]; ok {
		return c
	}
	return dim
}

// renames returns the registry entries whose source names are in names.
func (r Registry) renames(names ...string) map[string]string {
	m := make(map[string]string)
	for _, n := range names {
		if c, ok := r.Names[n]; ok && c != n {
			m[n] = c
		}
	}
	return m
}

// arrayRenames returns the entries of r matching the name, dimensions
// or coordinates of a.
func (r Registry) arrayRenames(a *array.DataArray) map[string]string {
	names := append([]string{a.Name}, a.Dims()...)
	return r.renames(append(names, a.CoordNames()...)...)
}

// datasetRenames returns the entries of r matching the variables,
// coordinates or dimensions of ds.
func (r Registry) datasetRenames(ds *array.Dataset) map[string]string {
	return r.renames(append(ds.Names(), ds.Dims()...)...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
