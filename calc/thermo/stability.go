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

package thermo

import (
	"fmt"

	"github.com/oceandiag/xoce/array"
)

// MidDepthDim is the vertical dimension of Nsquared, whose points lie
// halfway between the levels of its inputs.
const MidDepthDim = "depth_mid"

// levels holds the upper (k-1) and lower (k) levels of an array for
// k = 1..n-1 along the vertical dimension.
type levels struct{ up, dn *array.DataArray }

func split(a *array.DataArray, z string) (levels, error) {
	n, ok := a.DimSize(z)
	if !ok {
		return levels{}, fmt.Errorf("%s has no vertical dimension %s", a.Name, z)
	}
	up, err := a.Slice(z, 0, n-1)
	if err != nil {
		return levels{}, err
	}
	dn, err := a.Slice(z, 1, n)
	if err != nil {
		return levels{}, err
	}
	return levels{up: up, dn: dn}, nil
}

func verticalDim(depth *array.DataArray) (string, int, error) {
	if depth.NDim() != 1 {
		return "", 0, fmt.Errorf("depth must be one-dimensional, not %v", depth.Dims())
	}
	z := depth.Dims()[0]
	n, _ := depth.DimSize(z)
	if n < 2 {
		return "", 0, fmt.Errorf("at least two levels are needed along %s", z)
	}
	return z, n, nil
}

// N2 returns the squared Brunt-Vaisala frequency [s-2] on the levels of
// thetao as computed by the bn2 routine of NEMO 3.6, with e3t the
// vertical cell thickness [m]. The expansion coefficients of the two
// levels around each interface are weighted by the ratio of the cell
// thickness to the level spacing. The first level has no level above it
// and is set to zero.
func N2(thetao, so, depth, e3t *array.DataArray) (*array.DataArray, error) {
	z, _, err := verticalDim(depth)
	if err != nil {
		return nil, fmt.Errorf("thermo: N2: %v", err)
	}
	a, b, err := EOSCoefficients(thetao, so, depth)
	if err != nil {
		return nil, err
	}
	var lv [6]levels
	for i, x := range []*array.DataArray{thetao, so, depth, e3t, a, b} {
		if lv[i], err = split(x, z); err != nil {
			return nil, fmt.Errorf("thermo: N2: %v", err)
		}
	}
	t, s, d, e3, al, be := lv[0], lv[1], lv[2], lv[3], lv[4], lv[5]
	inner, err := array.CombineN([]*array.DataArray{
		t.up, t.dn, s.up, s.dn, d.up, d.dn, e3.dn, al.up, al.dn, be.up, be.dn,
	}, func(v []float64) float64 {
		tu, td, su, sd, du, dd, e, au, ad, bu, bd := v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8], v[9], v[10]
		rw := e / (du - dd)
		alpha := (1-rw)*ad + rw*au
		beta := (1-rw)*bd + rw*bu
		return G * (alpha*(tu-td) - beta*(su-sd)) / e
	})
	if err != nil {
		return nil, fmt.Errorf("thermo: N2: %v", err)
	}
	top, err := thetao.Slice(z, 0, 1)
	if err != nil {
		return nil, err
	}
	out, err := array.Concat([]*array.DataArray{top.Map(func(float64) float64 { return 0 }), inner}, z)
	if err != nil {
		return nil, fmt.Errorf("thermo: N2: %v", err)
	}
	for _, cn := range thetao.CoordNames() {
		c, _ := thetao.Coord(cn)
		if !c.HasDim(z) {
			continue
		}
		if out, err = out.WithCoord(cn, c); err != nil {
			return nil, fmt.Errorf("thermo: N2: %v", err)
		}
	}
	return named(out, "N2", "s-2", "squared Brunt-Vaisala frequency"), nil
}

// Nsquared returns the squared buoyancy frequency [s-2] between each pair
// of adjacent levels, using latitude-dependent gravity. The result's
// vertical dimension is MidDepthDim, with the mid-point depths as its
// coordinate.
func Nsquared(so, thetao, depth, latitude *array.DataArray) (*array.DataArray, error) {
	z, n, err := verticalDim(depth)
	if err != nil {
		return nil, fmt.Errorf("thermo: Nsquared: %v", err)
	}
	var lv [3]levels
	for i, x := range []*array.DataArray{thetao, so, depth} {
		if lv[i], err = split(x, z); err != nil {
			return nil, fmt.Errorf("thermo: Nsquared: %v", err)
		}
	}
	t, s, d := lv[0], lv[1], lv[2]
	n2, err := array.CombineN([]*array.DataArray{t.up, t.dn, s.up, s.dn, d.up, d.dn, latitude},
		func(v []float64) float64 {
			tu, td, su, sd, du, dd, lat := v[0], v[1], v[2], v[3], v[4], v[5], v[6]
			tm, sm, zm := (tu+td)/2, (su+sd)/2, (du+dd)/2
			return GravityAt(lat) * (alpha(tm, sm, zm)*(tu-td) - beta(tm, sm, zm)*(su-sd)) / (dd - du)
		})
	if err != nil {
		return nil, fmt.Errorf("thermo: Nsquared: %v", err)
	}
	dv, err := depth.Float64s()
	if err != nil {
		return nil, err
	}
	mid := make([]float64, n-1)
	for k := range mid {
		mid[k] = (dv[k] + dv[k+1]) / 2
	}
	mc := array.FromSlice(MidDepthDim, mid)
	mc.Attrs["units"] = "m"
	out := n2.DropCoordsAlong(z).RenameDims(map[string]string{z: MidDepthDim})
	if out, err = out.WithCoord(MidDepthDim, mc); err != nil {
		return nil, fmt.Errorf("thermo: Nsquared: %v", err)
	}
	return named(out, "Nsquared", "s-2", "squared buoyancy frequency"), nil
}
