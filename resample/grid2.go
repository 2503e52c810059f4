// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package resample

import (
	"errors"
	"sort"
)

// Grid2 interpolates values on a regular 2-D grid bilinearly, clamping
// queries to the grid edges. Axis values must be strictly increasing;
// vals is row-major with the x axis leading: vals[i*len(ys)+j] = f(xs[i], ys[j]).
type Grid2 struct {
	xs, ys []float64
	vals   []float64
}

func NewGrid2(xs, ys, vals []float64) (*Grid2, error) {
	if len(xs) < 2 || len(ys) < 2 {
		return nil, errors.New("resample: grid axes need at least two points")
	}
	if len(vals) != len(xs)*len(ys) {
		return nil, errors.New("resample: grid value count does not match axes")
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, errors.New("resample: grid x axis not increasing")
		}
	}
	for j := 1; j < len(ys); j++ {
		if ys[j] <= ys[j-1] {
			return nil, errors.New("resample: grid y axis not increasing")
		}
	}
	return &Grid2{xs: xs, ys: ys, vals: vals}, nil
}

func cell(axis []float64, v float64) (int, float64) {
	if v <= axis[0] {
		return 0, 0
	}
	if v >= axis[len(axis)-1] {
		return len(axis) - 2, 1
	}
	i := sort.SearchFloat64s(axis, v) - 1
	return i, (v - axis[i]) / (axis[i+1] - axis[i])
}

// At evaluates the grid at (x, y).
func (g *Grid2) At(x, y float64) float64 {
	i, fx := cell(g.xs, x)
	j, fy := cell(g.ys, y)
	ny := len(g.ys)

	v00 := g.vals[i*ny+j]
	v01 := g.vals[i*ny+j+1]
	v10 := g.vals[(i+1)*ny+j]
	v11 := g.vals[(i+1)*ny+j+1]

	return v00*(1-fx)*(1-fy) + v01*(1-fx)*fy + v10*fx*(1-fy) + v11*fx*fy
}
