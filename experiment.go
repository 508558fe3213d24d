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

// Package xoce provides uniform access to ocean model output. An
// Experiment resolves variables by name from the arrays loaded from its
// files, from a mesh of grid-geometry fields and from its coordinates,
// loads per-variable files on demand, and calculates derived variables
// such as density or buoyancy frequency when they are not stored.
//
// Variables are interpolated onto the coordinates of the Experiment when
// their own coordinates differ, so that variables from different grids
// can be combined.
package xoce

import (
	"fmt"
	"sort"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/calc"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// LoadOptions control how an Experiment is loaded.
type LoadOptions struct {
	// Replace maps the names of fields to the names of fields whose
	// values should replace them, in the mesh and in the main
	// dataset. Entries naming fields that are not present are skipped.
	Replace map[string]string
}

// Store populates an Experiment from its sources.
type Store interface {
	// Load fills the dimensions, coordinates, arrays and mesh of e.
	Load(e *Experiment, opts LoadOptions) error

	// Resolve loads the named variable into e if the store can provide
	// it. It returns false if the store has no such variable.
	Resolve(e *Experiment, name string) (*array.DataArray, bool, error)

	// Variables returns the names of the variables the store can
	// provide without loading them.
	Variables() []string

	// Extract returns a copy of the store restricted to the named
	// variables.
	Extract(names []string) Store

	// Rename and RenameDims apply the renames of the Experiment to the
	// variables the store has not loaded yet.
	Rename(m map[string]string)
	RenameDims(m map[string]string)
}

var _ calc.Dataset = (*Experiment)(nil)

// Experiment is a collection of model output variables. It is not safe
// for concurrent use.
type Experiment struct {
	// Registry canonicalizes names on ingestion.
	Registry Registry

	// UnusedDims are dimensions that are collapsed to their first index
	// whenever a variable is accessed.
	UnusedDims []string

	// Log receives messages about loading, calculation and
	// interpolation. It defaults to the logrus standard logger.
	Log logrus.FieldLogger

	store    Store
	dims     map[string]int
	dimOrder []string
	coords   map[string]*array.DataArray
	arrays   map[string]*array.DataArray
	mesh     *array.Dataset
	cache    map[string]*array.DataArray
	calc     *calc.Manager
}

// New returns an empty Experiment populated by store, naming variables
// with reg and calculating derived variables with formulas.
func New(store Store, reg Registry, formulas *calc.Registry) *Experiment {
	e := &Experiment{
		Registry: reg,
		Log:      logrus.StandardLogger(),
		store:    store,
	}
	e.reset()
	e.calc = calc.NewManager(e, formulas)
	return e
}

// NewSingleDataset returns an Experiment reading the NEMO output files
// matching paths as one dataset, with grid geometry from the mesh file
// if mesh is not empty.
func NewSingleDataset(paths []string, mesh string) *Experiment {
	reg, _ := DefaultRegistry(KindNEMO)
	return New(&SingleDatasetStore{Paths: paths, Mesh: mesh}, reg, calc.DefaultRegistry())
}

// NewCMIP returns an Experiment reading CMIP6 output files from the
// directory tree under dir, with grid geometry from the mesh file if
// mesh is not empty.
func NewCMIP(dir, mesh string) *Experiment {
	reg, _ := DefaultRegistry(KindCMIP)
	return New(&CMIPStore{Dir: dir, Mesh: mesh}, reg, calc.DefaultRegistry())
}

func (e *Experiment) reset() {
	e.dims = make(map[string]int)
	e.dimOrder = nil
	e.coords = make(map[string]*array.DataArray)
	e.arrays = make(map[string]*array.DataArray)
	e.mesh = array.NewDataset()
	e.cache = make(map[string]*array.DataArray)
}

// Load discards any loaded state and loads the Experiment from its store.
func (e *Experiment) Load(opts LoadOptions) error {
	e.reset()
	if err := e.store.Load(e, opts); err != nil {
		return err
	}
	e.Log.WithFields(logrus.Fields{
		"variables": len(e.Variables()),
		"dims":      e.dimOrder,
	}).Debug("xoce loaded experiment")
	return nil
}

// Store returns the store of the Experiment.
func (e *Experiment) Store() Store { return e.store }

// Calculator returns the manager of derived variables. Formulas
// registered with its Registry become available through Get.
func (e *Experiment) Calculator() *calc.Manager { return e.calc }

// Dims returns the sizes of the dimensions of the Experiment.
func (e *Experiment) Dims() map[string]int {
	o := make(map[string]int, len(e.dims))
	for k, v := range e.dims {
		o[k] = v
	}
	return o
}

// DimNames returns the dimension names in the order they were added.
func (e *Experiment) DimNames() []string {
	o := make([]string, len(e.dimOrder))
	copy(o, e.dimOrder)
	return o
}

// AddDim records dimension d with size n unless it is already known.
func (e *Experiment) AddDim(d string, n int) {
	if _, ok := e.dims[d]; ok {
		return
	}
	e.dims[d] = n
	e.dimOrder = append(e.dimOrder, d)
}

func (e *Experiment) addDims(a *array.DataArray) {
	shape := a.Shape()
	for i, d := range a.Dims() {
		e.AddDim(d, shape[i])
	}
}

// Coords returns the coordinates of the Experiment.
func (e *Experiment) Coords() map[string]*array.DataArray {
	o := make(map[string]*array.DataArray, len(e.coords))
	for k, v := range e.coords {
		o[k] = v
	}
	return o
}

// Mesh returns the grid-geometry dataset of the Experiment.
func (e *Experiment) Mesh() *array.Dataset { return e.mesh }

// SetMesh sets the grid-geometry dataset of the Experiment.
// Cached results of the replaced mesh fields, and of the calculated
// variables that depend on them, are discarded.
func (e *Experiment) SetMesh(ds *array.Dataset) {
	stale := make(map[string]bool)
	for _, ms := range []*array.Dataset{e.mesh, ds} {
		for _, n := range ms.Names() {
			stale[n] = true
		}
	}
	e.mesh = ds
	e.evict(stale)
}

// evict removes the cached results of the names in stale and of every
// calculated variable that depends on them, directly or not.
func (e *Experiment) evict(stale map[string]bool) {
	if e.calc != nil {
		reg := e.calc.Registry()
		for grown := true; grown; {
			grown = false
			for _, n := range reg.Names() {
				if stale[n] {
					continue
				}
				f, _ := reg.Lookup(n)
				for _, r := range f.Requires {
					if stale[r] {
						stale[n] = true
						grown = true
						break
					}
				}
			}
		}
	}
	for n := range stale {
		delete(e.cache, n)
	}
}

// Variables returns the sorted names of the variables of the Experiment:
// its arrays, mesh variables and coordinates, and the variables its
// store can load on demand.
func (e *Experiment) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n := range e.arrays {
		add(n)
	}
	for _, n := range e.mesh.Names() {
		add(n)
	}
	for n := range e.coords {
		add(n)
	}
	for _, n := range e.store.Variables() {
		add(n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a variable of the Experiment.
func (e *Experiment) Has(name string) bool {
	if _, ok := e.arrays[name]; ok {
		return true
	}
	if e.mesh.Has(name) {
		return true
	}
	if _, ok := e.coords[name]; ok {
		return true
	}
	for _, n := range e.store.Variables() {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns the named variable. Stored variables are looked up in
// the arrays, the mesh and the coordinates, in that order, and are
// otherwise loaded by the store. Variables that are not stored are
// calculated if possible. Unused dimensions are collapsed and
// dimensions whose coordinates differ from those of the Experiment are
// interpolated onto them. Results are kept, so repeated calls return
// the same array.
func (e *Experiment) Get(name string) (*array.DataArray, error) {
	if v, ok := e.cache[name]; ok {
		return v, nil
	}
	var v *array.DataArray
	var err error
	if e.Has(name) {
		if v, err = e.lookup(name); err != nil {
			return nil, err
		}
		if v, err = e.collapse(v); err != nil {
			return nil, fmt.Errorf("xoce: %s: %v", name, err)
		}
	} else {
		if !e.calc.IsCalculable(name) {
			return nil, &NotFoundError{Name: name, Available: e.Variables()}
		}
		if v, err = e.calc.Calculate(name); err != nil {
			return nil, err
		}
	}
	if v, err = e.reconcile(v); err != nil {
		return nil, fmt.Errorf("xoce: %s: %v", name, err)
	}
	e.cache[name] = v
	return v, nil
}

func (e *Experiment) lookup(name string) (*array.DataArray, error) {
	if v, ok := e.arrays[name]; ok {
		return v, nil
	}
	if v, ok := e.mesh.Get(name); ok {
		return v, nil
	}
	if v, ok := e.coords[name]; ok {
		return v, nil
	}
	e.Log.WithField("variable", name).Debug("xoce loading variable")
	v, ok, err := e.store.Resolve(e, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Name: name, Available: e.Variables()}
	}
	return v, nil
}

// collapse selects the first index of every unused dimension of v.
func (e *Experiment) collapse(v *array.DataArray) (*array.DataArray, error) {
	for _, d := range e.UnusedDims {
		if !v.HasDim(d) {
			continue
		}
		var err error
		if v, err = v.Isel(d, 0); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// reconcile interpolates v onto the coordinates of the Experiment along
// every dimension whose coordinate values differ from them. Values
// beyond the range of v's coordinates are extrapolated.
func (e *Experiment) reconcile(v *array.DataArray) (*array.DataArray, error) {
	for _, d := range v.Dims() {
		cn := e.Registry.Coordinate(d)
		c, ok := e.coords[cn]
		if !ok || cn == v.Name {
			continue
		}
		target := c
		if c.NDim() != 1 {
			if target, ok = c.DimCoord(d); !ok {
				continue
			}
		}
		src, ok, err := v.CoordValues(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		want, err := target.Float64s()
		if err != nil {
			return nil, err
		}
		if floats.Equal(src, want) {
			continue
		}
		e.Log.WithFields(logrus.Fields{
			"variable":   v.Name,
			"dim":        d,
			"coordinate": cn,
		}).Debug("xoce interpolating")
		if v, err = v.Interp(d, target); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Set stores v under name. v must be a *array.DataArray. Existing
// variables are not replaced.
func (e *Experiment) Set(name string, v interface{}) error {
	a, ok := v.(*array.DataArray)
	if !ok || a == nil {
		return &TypeError{Name: name, Value: v}
	}
	e.AddVariable(name, a, true)
	return nil
}

// canonicalize returns the canonical name for name and, if renameDims
// is true, a copy of a with its name, dimensions and coordinates
// renamed through the registry.
func (e *Experiment) canonicalize(name string, a *array.DataArray, renameDims bool) (string, *array.DataArray) {
	name = e.Registry.Canonical(name)
	if renameDims {
		if m := e.Registry.arrayRenames(a); len(m) > 0 {
			a = a.Rename(m)
		}
	}
	return name, a
}

// AddVariable stores a under the canonical form of name, returning that
// name and the stored array. If renameDims is true the array's own
// name, dimensions and coordinates are canonicalized too. A variable
// that is already stored under the canonical name is kept and returned
// instead.
func (e *Experiment) AddVariable(name string, a *array.DataArray, renameDims bool) (string, *array.DataArray) {
	name, a = e.canonicalize(name, a, renameDims)
	if old, ok := e.arrays[name]; ok {
		return name, old
	}
	e.arrays[name] = a
	e.addDims(a)
	return name, a
}

// AddCoordinate stores a as a coordinate under the canonical form of
// name. A coordinate or array already stored under that name is kept.
// Only cached results with a dimension whose coordinate is the new one
// are discarded.
func (e *Experiment) AddCoordinate(name string, a *array.DataArray, renameDims bool) (string, *array.DataArray) {
	name, a = e.canonicalize(name, a, renameDims)
	if old, ok := e.arrays[name]; ok {
		return name, old
	}
	if old, ok := e.coords[name]; ok {
		return name, old
	}
	e.coords[name] = a
	e.addDims(a)
	stale := map[string]bool{name: true}
	for n, v := range e.cache {
		for _, d := range v.Dims() {
			if e.Registry.Coordinate(d) == name {
				stale[n] = true
				break
			}
		}
	}
	e.evict(stale)
	return name, a
}

// setDataset replaces the arrays, coordinates and dimensions of e with
// those of ds.
func (e *Experiment) setDataset(ds *array.Dataset) {
	e.arrays = make(map[string]*array.DataArray)
	e.coords = make(map[string]*array.DataArray)
	e.dims = make(map[string]int)
	e.dimOrder = nil
	e.cache = make(map[string]*array.DataArray)
	for _, d := range ds.Dims() {
		n, _ := ds.DimSize(d)
		e.AddDim(d, n)
	}
	for _, n := range ds.VarNames() {
		e.arrays[n], _ = ds.Var(n)
	}
	for _, n := range ds.CoordNames() {
		e.coords[n], _ = ds.Coord(n)
	}
}

// Rename renames variables according to m in the arrays, mesh and
// coordinates of the Experiment. Dimensions and coordinate labels with
// the same names are renamed too.
func (e *Experiment) Rename(m map[string]string) {
	arrays := make(map[string]*array.DataArray, len(e.arrays))
	for k, v := range e.arrays {
		if n, ok := m[k]; ok {
			k = n
		}
		arrays[k] = v.Rename(m)
	}
	coords := make(map[string]*array.DataArray, len(e.coords))
	for k, c := range e.coords {
		if n, ok := m[k]; ok {
			k = n
		}
		coords[k] = c.Rename(m)
	}
	e.arrays, e.coords = arrays, coords
	e.mesh = e.mesh.Rename(m)
	e.store.Rename(m)
	e.renameDims(m)
}

// RenameDims renames dimensions according to m. Every array and
// coordinate indexed by a renamed dimension is relabeled.
func (e *Experiment) RenameDims(m map[string]string) {
	for k, v := range e.arrays {
		e.arrays[k] = v.RenameDims(m)
	}
	for k, c := range e.coords {
		e.coords[k] = c.RenameDims(m)
	}
	e.mesh = e.mesh.RenameDims(m)
	e.store.RenameDims(m)
	e.renameDims(m)
}

func (e *Experiment) renameDims(m map[string]string) {
	dims := make(map[string]int, len(e.dims))
	var order []string
	for _, d := range e.dimOrder {
		n := d
		if r, ok := m[d]; ok {
			n = r
		}
		if _, ok := dims[n]; !ok {
			order = append(order, n)
		}
		dims[n] = e.dims[d]
	}
	e.dims, e.dimOrder = dims, order
	e.cache = make(map[string]*array.DataArray)
}

// Where returns a dataset holding the variables of the Experiment masked
// by cond: values where cond is false are replaced by other, and if drop
// is true, labels where cond is false everywhere are removed.
//
// Variables that have all the dimensions of cond are masked if their
// sizes agree with the dimensions of the Experiment; dimensions the
// Experiment does not know are not checked. Other variables whose
// dimensions are all Experiment dimensions are included unmasked.
// Variables that fit neither case are left out.
func (e *Experiment) Where(cond *array.DataArray, other float64, drop bool) (*array.Dataset, error) {
	var masked, plain []*array.DataArray
	for _, name := range e.Variables() {
		if _, ok := e.dims[name]; ok {
			continue
		}
		v, err := e.Get(name)
		if err != nil {
			return nil, err
		}
		switch {
		case hasDims(v, cond.Dims()):
			if !e.sizesMatch(v) {
				continue
			}
			m, err := v.Where(cond, other, drop)
			if err != nil {
				continue
			}
			m.Name = name
			masked = append(masked, m)
		case e.knownDims(v):
			v = v.Copy()
			v.Name = name
			plain = append(plain, v)
		}
	}
	ds := array.NewDataset()
	// Masked variables go first so that, when labels are dropped, the
	// unmasked variables that no longer fit are the ones left out.
	for _, v := range append(masked, plain...) {
		_ = ds.SetVar(v.Name, v)
	}
	// Masked arrays carry their coordinates reduced to the labels kept
	// by drop.
	for _, name := range sortedArrayKeys(e.coords) {
		c := e.coords[name]
		for _, m := range masked {
			if mc, ok := m.Coord(name); ok {
				c = mc
				break
			}
		}
		_ = ds.SetCoord(name, c)
	}
	return ds, nil
}

func hasDims(v *array.DataArray, dims []string) bool {
	for _, d := range dims {
		if !v.HasDim(d) {
			return false
		}
	}
	return true
}

func (e *Experiment) sizesMatch(v *array.DataArray) bool {
	shape := v.Shape()
	for i, d := range v.Dims() {
		if n, ok := e.dims[d]; ok && n != shape[i] {
			return false
		}
	}
	return true
}

func (e *Experiment) knownDims(v *array.DataArray) bool {
	for _, d := range v.Dims() {
		if _, ok := e.dims[d]; !ok {
			return false
		}
	}
	return true
}

// ExtractVars returns a copy of the Experiment restricted to the named
// variables. The store of the copy only provides those variables, and
// arrays already loaded under other names are left out. Coordinates and
// the mesh are kept. The original Experiment is not modified.
func (e *Experiment) ExtractVars(names ...string) *Experiment {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	o := &Experiment{
		Registry:   Registry{}.Merge(e.Registry),
		UnusedDims: append([]string(nil), e.UnusedDims...),
		Log:        e.Log,
		store:      e.store.Extract(names),
		dims:       e.Dims(),
		dimOrder:   e.DimNames(),
		coords:     e.Coords(),
		arrays:     make(map[string]*array.DataArray),
		mesh:       e.mesh.Copy(),
		cache:      make(map[string]*array.DataArray),
	}
	for k, v := range e.arrays {
		if keep[k] {
			o.arrays[k] = v
		}
	}
	for k, v := range e.cache {
		if keep[k] || o.Has(k) {
			o.cache[k] = v
		}
	}
	o.calc = e.calc.Bind(o)
	return o
}

func sortedArrayKeys(m map[string]*array.DataArray) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
