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

package xoceutil

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kr/pretty"
	"github.com/oceandiag/xoce"
	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/fetch"
	"github.com/oceandiag/xoce/ncio"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Vars writes the names of the variables of e to w, one per line.
// Variables that can only be calculated are marked with '*'.
func Vars(w io.Writer, e *xoce.Experiment) error {
	have := make(map[string]bool)
	for _, v := range e.Variables() {
		have[v] = true
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	for _, v := range e.Calculator().Registry().Names() {
		if have[v] || !e.Calculator().IsCalculable(v) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s*\n", v); err != nil {
			return err
		}
	}
	return nil
}

// Describe writes the dimensions, coordinates and attributes of the named
// variables of e to w.
func Describe(w io.Writer, e *xoce.Experiment, names []string) error {
	for _, n := range names {
		a, err := e.Get(n)
		if err != nil {
			return err
		}
		dims := a.Dims()
		shape := a.Shape()
		d := make([]string, len(dims))
		for i := range dims {
			d[i] = fmt.Sprintf("%s: %d", dims[i], shape[i])
		}
		fmt.Fprintf(w, "%s (%s)\n", n, strings.Join(d, ", "))
		if cn := a.CoordNames(); len(cn) > 0 {
			fmt.Fprintf(w, "  coordinates: %s\n", strings.Join(cn, " "))
		}
		if len(a.Attrs) > 0 {
			fmt.Fprintf(w, "  attributes: %# v\n", pretty.Formatter(a.Attrs))
		}
	}
	return nil
}

// Summary holds summary statistics of the valid (not NaN) values of a
// variable.
type Summary struct {
	Name                   string
	N                      int
	Min, Max, Mean, StdDev float64
}

// Summarize returns summary statistics of the named variable of e.
func Summarize(e *xoce.Experiment, name string) (Summary, error) {
	a, err := e.Get(name)
	if err != nil {
		return Summary{}, err
	}
	vals, err := a.Float64s()
	if err != nil {
		return Summary{}, err
	}
	valid := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	s := Summary{Name: name, N: len(valid)}
	if s.N == 0 {
		s.Min, s.Max, s.Mean, s.StdDev = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s, nil
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if s.N == 1 {
		s.StdDev = 0
	}
	return s, nil
}

// Stats writes a table of summary statistics of the named variables of e
// to w.
func Stats(w io.Writer, e *xoce.Experiment, names []string) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "variable\tn\tmin\tmax\tmean\tstddev")
	for _, n := range names {
		s, err := Summarize(e, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.6g\t%.6g\t%.6g\n", s.Name, s.N, s.Min, s.Max, s.Mean, s.StdDev)
	}
	return tw.Flush()
}

// Dataset gathers the named variables of e, with their coordinates, into
// a dataset.
func Dataset(e *xoce.Experiment, names []string) (*array.Dataset, error) {
	ds := array.NewDataset()
	for _, n := range names {
		a, err := e.Get(n)
		if err != nil {
			return nil, err
		}
		if err := ds.SetVar(n, a); err != nil {
			return nil, err
		}
		for _, cn := range a.CoordNames() {
			if ds.Has(cn) {
				continue
			}
			c, _ := a.Coord(cn)
			if err := ds.SetCoord(cn, c); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

// Extract writes the named variables of e to the NetCDF file at path,
// which may be a blob storage location.
func Extract(ctx context.Context, e *xoce.Experiment, names []string, path string) error {
	ds, err := Dataset(e, names)
	if err != nil {
		return err
	}
	out, err := fetch.NewOutput(path)
	if err != nil {
		return err
	}
	f, err := os.Create(out.Local)
	if err != nil {
		return fmt.Errorf("xoce: creating output file: %v", err)
	}
	if err := ncio.Write(f, ds, ncio.WriteOptions{}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	e.Log.WithFields(logrus.Fields{
		"file":      path,
		"variables": names,
	}).Info("xoce wrote output")
	return out.Finish(ctx)
}

// ProfileXY returns the values of the named variable of e along dim,
// taking the first index of every other dimension. The X values are the
// coordinate values along dim, or the indices if there is no coordinate.
// NaN values are skipped.
func ProfileXY(e *xoce.Experiment, name, dim string) (plotter.XYs, error) {
	a, err := e.Get(name)
	if err != nil {
		return nil, err
	}
	if !a.HasDim(dim) {
		return nil, fmt.Errorf("xoce: %s has no dimension %s", name, dim)
	}
	for _, d := range a.Dims() {
		if d == dim {
			continue
		}
		if a, err = a.Isel(d, 0); err != nil {
			return nil, err
		}
	}
	y, err := a.Float64s()
	if err != nil {
		return nil, err
	}
	x, ok, err := a.CoordValues(dim)
	if err != nil {
		return nil, err
	}
	if !ok {
		x = make([]float64, len(y))
		for i := range x {
			x[i] = float64(i)
		}
	}
	xy := make(plotter.XYs, 0, len(y))
	for i := range y {
		if math.IsNaN(y[i]) || math.IsNaN(x[i]) {
			continue
		}
		xy = append(xy, struct{ X, Y float64 }{X: x[i], Y: y[i]})
	}
	return xy, nil
}

// Profile plots the named variable of e along dim and saves the plot to
// path, which may be a blob storage location.
func Profile(ctx context.Context, e *xoce.Experiment, name, dim, path string) error {
	xy, err := ProfileXY(e, name, dim)
	if err != nil {
		return err
	}
	if len(xy) == 0 {
		return fmt.Errorf("xoce: %s has no valid values along %s", name, dim)
	}
	a, err := e.Get(name)
	if err != nil {
		return err
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = fmt.Sprintf("%s profile", name)
	p.X.Label.Text = dim
	p.Y.Label.Text = name
	if u, ok := a.Attrs["units"].(string); ok {
		p.Y.Label.Text = fmt.Sprintf("%s (%s)", name, u)
	}
	if err = plotutil.AddLinePoints(p, xy); err != nil {
		return err
	}
	out, err := fetch.NewOutput(path)
	if err != nil {
		return err
	}
	if err := p.Save(4*vg.Inch, 3*vg.Inch, out.Local); err != nil {
		return fmt.Errorf("xoce: saving plot: %v", err)
	}
	return out.Finish(ctx)
}
