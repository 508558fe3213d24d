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

// Package thermo holds seawater thermodynamics formulas based on the
// simplified equation of state (S-EOS) of NEMO 3.6, with the default
// coefficients of Vallis (2006).
package thermo

import (
	"fmt"
	"math"

	"github.com/oceandiag/xoce/array"
)

// Physical constants.
const (
	G    = 9.80665 // gravitational acceleration [m s-2]
	P0   = 101325. // atmospheric pressure [Pa]
	Rho0 = 1026.   // reference density [kg m-3]
)

// S-EOS coefficients.
const (
	a0      = 1.6550e-1 // thermal expansion
	b0      = 7.6554e-1 // saline expansion
	lambda1 = 5.9520e-2 // cabbeling in T^2
	lambda2 = 5.4914e-4 // cabbeling in S^2
	mu1     = 1.4970e-4 // thermobaric in T
	mu2     = 1.1090e-5 // thermobaric in S
	nu      = 2.4341e-3 // cabbeling in T*S

	t0 = 10.
	s0 = 35.
)

// density returns the in situ density for potential temperature t,
// salinity s and depth z.
func density(t, s, z float64) float64 {
	zt := t - t0
	zs := s - s0
	zn := -a0*(1+0.5*lambda1*zt+mu1*z)*zt + b0*(1-0.5*lambda2*zs-mu2*z)*zs - nu*zt*zs
	return Rho0 + zn
}

// alpha and beta return the thermal and haline expansion coefficients.
func alpha(t, s, z float64) float64 {
	return (a0*(1+lambda1*(t-t0)+mu1*z) + nu*(s-s0)) / Rho0
}

func beta(t, s, z float64) float64 {
	return (b0*(1-lambda2*(s-s0)-mu2*z) - nu*(t-t0)) / Rho0
}

// Density returns the in situ density [kg m-3] of seawater with
// conservative temperature ct [degC] and salinity so [g kg-1] at depth
// [m].
func Density(ct, so, depth *array.DataArray) (*array.DataArray, error) {
	rho, err := array.CombineN([]*array.DataArray{ct, so, depth}, func(v []float64) float64 {
		return density(v[0], v[1], v[2])
	})
	if err != nil {
		return nil, fmt.Errorf("thermo: density: %v", err)
	}
	return named(rho, "rho", "kg m-3", "in situ density"), nil
}

// BigThetao returns the conservative temperature [degC]. Under S-EOS
// it equals the potential temperature thetao; so is accepted so that the
// signature matches full equations of state.
func BigThetao(so, thetao *array.DataArray) (*array.DataArray, error) {
	if err := broadcastable(so, thetao); err != nil {
		return nil, fmt.Errorf("thermo: bigthetao: %v", err)
	}
	return named(thetao.Copy(), "bigthetao", "degC", "conservative temperature"), nil
}

// Pressure returns the absolute pressure [Pa] at depth [m].
func Pressure(depth *array.DataArray) *array.DataArray {
	return named(depth.Map(func(z float64) float64 { return P0 + G*Rho0*z }), "pressure", "Pa", "pressure")
}

// EOSCoefficients returns the thermal (alpha) [K-1] and haline (beta)
// [kg g-1] expansion coefficients.
func EOSCoefficients(thetao, so, depth *array.DataArray) (a, b *array.DataArray, err error) {
	in := []*array.DataArray{thetao, so, depth}
	a, err = array.CombineN(in, func(v []float64) float64 { return alpha(v[0], v[1], v[2]) })
	if err != nil {
		return nil, nil, fmt.Errorf("thermo: expansion coefficients: %v", err)
	}
	b, err = array.CombineN(in, func(v []float64) float64 { return beta(v[0], v[1], v[2]) })
	if err != nil {
		return nil, nil, fmt.Errorf("thermo: expansion coefficients: %v", err)
	}
	return named(a, "alpha", "K-1", "thermal expansion coefficient"),
		named(b, "beta", "kg g-1", "haline contraction coefficient"), nil
}

// GravityAt returns the gravitational acceleration [m s-2] at latitude
// lat [degrees north] at the sea surface.
func GravityAt(lat float64) float64 {
	x := math.Sin(lat * math.Pi / 180)
	x *= x
	return 9.780327 * (1 + (5.2792e-3+2.32e-5*x)*x)
}

func named(a *array.DataArray, name, units, longName string) *array.DataArray {
	a.Name = name
	a.Attrs = map[string]interface{}{"units": units, "long_name": longName}
	return a
}

func broadcastable(a, b *array.DataArray) error {
	shape := a.Shape()
	for i, d := range a.Dims() {
		if n, ok := b.DimSize(d); ok && n != shape[i] {
			return fmt.Errorf("%s and %s have different sizes along %s", a.Name, b.Name, d)
		}
	}
	return nil
}
