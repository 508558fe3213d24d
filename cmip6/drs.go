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

// Package cmip6 indexes directories of CMIP6 output files by the facets
// of the CMIP6 Data Reference Syntax encoded in their file names:
//
//	<variable_id>_<table_id>_<source_id>_<experiment_id>_<member_id>_<grid_label>[_<time_range>].nc
package cmip6

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Facet names, in file name order.
const (
	VariableID   = "variable_id"
	TableID      = "table_id"
	SourceID     = "source_id"
	ExperimentID = "experiment_id"
	MemberID     = "member_id"
	GridLabel    = "grid_label"
	TimeRange    = "time_range"
)

// Facets lists the facet names in file name order.
var Facets = []string{VariableID, TableID, SourceID, ExperimentID, MemberID, GridLabel, TimeRange}

var (
	// ErrNoMatch is returned when no file matches a variable.
	ErrNoMatch = errors.New("cmip6: no file matches")

	// ErrAmbiguous is returned when more than one dataset matches a
	// variable.
	ErrAmbiguous = errors.New("cmip6: more than one file matches")
)

// File is one file of an index.
type File struct {
	// Path is the path of the file relative to the index root.
	Path   string
	Facets map[string]string
}

// ParseFilename decodes the facets of a CMIP6 file name. The directory
// part of name is ignored.
func ParseFilename(name string) (map[string]string, error) {
	base := filepath.Base(name)
	if filepath.Ext(base) != ".nc" {
		return nil, fmt.Errorf("cmip6: %s is not a NetCDF file", name)
	}
	parts := strings.Split(strings.TrimSuffix(base, ".nc"), "_")
	if len(parts) != len(Facets) && len(parts) != len(Facets)-1 {
		return nil, fmt.Errorf("cmip6: %s does not follow the CMIP6 file name template", name)
	}
	f := make(map[string]string, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("cmip6: %s has an empty %s", name, Facets[i])
		}
		f[Facets[i]] = p
	}
	return f, nil
}

// Index maps each facet to the values present in a directory tree.
type Index struct {
	// Root is the directory the index was built from.
	Root string

	// Facets holds the sorted unique values of each facet.
	Facets map[string][]string

	Files []File
}

// Scan walks dir and indexes every file whose name follows the CMIP6
// file name template. Other files are ignored.
func Scan(dir string) (*Index, error) {
	idx := &Index{Root: dir}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		facets, perr := ParseFilename(path)
		if perr != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		idx.Files = append(idx.Files, File{Path: rel, Facets: facets})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cmip6: scanning %s: %v", dir, err)
	}
	idx.rebuild()
	return idx, nil
}

func (idx *Index) rebuild() {
	sort.Slice(idx.Files, func(i, j int) bool { return idx.Files[i].Path < idx.Files[j].Path })
	idx.Facets = make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, f := range idx.Files {
		for k, v := range f.Facets {
			if seen[k] == nil {
				seen[k] = make(map[string]bool)
			}
			if !seen[k][v] {
				seen[k][v] = true
				idx.Facets[k] = append(idx.Facets[k], v)
			}
		}
	}
	for k := range idx.Facets {
		sort.Strings(idx.Facets[k])
	}
}

// Values returns the values of facet present in the index.
func (idx *Index) Values(facet string) []string {
	if idx == nil {
		return nil
	}
	return append([]string(nil), idx.Facets[facet]...)
}

// HasValue reports whether facet takes value v in the index.
func (idx *Index) HasValue(facet, v string) bool {
	if idx == nil {
		return false
	}
	i := sort.SearchStrings(idx.Facets[facet], v)
	return i < len(idx.Facets[facet]) && idx.Facets[facet][i] == v
}

// Extract returns a copy of the index holding only the files whose facet
// takes one of values. The receiver is not modified.
func (idx *Index) Extract(facet string, values []string) *Index {
	keep := make(map[string]bool, len(values))
	for _, v := range values {
		keep[v] = true
	}
	o := &Index{Root: idx.Root}
	for _, f := range idx.Files {
		if keep[f.Facets[facet]] {
			o.Files = append(o.Files, f.copy())
		}
	}
	o.rebuild()
	return o
}

// Clone returns a deep copy of the index.
func (idx *Index) Clone() *Index {
	o := &Index{Root: idx.Root}
	for _, f := range idx.Files {
		o.Files = append(o.Files, f.copy())
	}
	o.rebuild()
	return o
}

func (f File) copy() File {
	o := File{Path: f.Path, Facets: make(map[string]string, len(f.Facets))}
	for k, v := range f.Facets {
		o.Facets[k] = v
	}
	return o
}

// FilesFor returns the paths, relative to the index root, of the files
// holding variableID. Files of one dataset split into several time
// ranges are all returned, in time order. It returns ErrNoMatch if no
// file holds the variable and ErrAmbiguous if the files belong to more
// than one dataset, for example two experiments.
func (idx *Index) FilesFor(variableID string) ([]string, error) {
	var paths []string
	var dataset string
	for _, f := range idx.Files {
		if f.Facets[VariableID] != variableID {
			continue
		}
		key := datasetKey(f.Facets)
		if dataset != "" && key != dataset {
			return nil, fmt.Errorf("%w: variable_id = %s in %s", ErrAmbiguous, variableID, idx.Root)
		}
		dataset = key
		paths = append(paths, f.Path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: variable_id = %s in %s", ErrNoMatch, variableID, idx.Root)
	}
	sort.Slice(paths, func(i, j int) bool { return filepath.Base(paths[i]) < filepath.Base(paths[j]) })
	return paths, nil
}

// Filename returns the path, relative to the index root, of the only
// file holding variableID.
func (idx *Index) Filename(variableID string) (string, error) {
	paths, err := idx.FilesFor(variableID)
	if err != nil {
		return "", err
	}
	if len(paths) > 1 {
		return "", fmt.Errorf("%w: variable_id = %s in %s", ErrAmbiguous, variableID, idx.Root)
	}
	return paths[0], nil
}

// datasetKey identifies the dataset a file belongs to: all facets but
// the time range.
func datasetKey(f map[string]string) string {
	var b strings.Builder
	for _, k := range Facets[:len(Facets)-1] {
		b.WriteString(f[k])
		b.WriteByte('_')
	}
	return b.String()
}
