// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package resample

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

var errNoPoints = errors.New("resample: no finite sample points")

// Interp1D is a clamped piecewise-linear interpolator: queries outside the
// sample support return the edge values instead of extrapolating. NaN
// samples and duplicate abscissae are dropped before fitting.
type Interp1D struct {
	pl         interp.PiecewiseLinear
	xmin, xmax float64
	ymin, ymax float64
	constant   bool
	value      float64
}

// NewInterp1D builds a clamped interpolator from unordered samples.
func NewInterp1D(xs, ys []float64) (*Interp1D, error) {
	sx, sy := cleanPairs(xs, ys)
	switch len(sx) {
	case 0:
		return nil, errNoPoints
	case 1:
		return &Interp1D{constant: true, value: sy[0]}, nil
	}

	it := &Interp1D{
		xmin: sx[0],
		xmax: sx[len(sx)-1],
		ymin: sy[0],
		ymax: sy[len(sy)-1],
	}
	if err := it.pl.Fit(sx, sy); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Interp1D) Predict(x float64) float64 {
	switch {
	case it.constant:
		return it.value
	case x <= it.xmin:
		return it.ymin
	case x >= it.xmax:
		return it.ymax
	}
	return it.pl.Predict(x)
}

// PredictAll evaluates the interpolator over a grid.
func (it *Interp1D) PredictAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = it.Predict(x)
	}
	return out
}

// cleanPairs sorts samples by x, dropping non-finite pairs and collapsing
// duplicate abscissae (keeping the first).
func cleanPairs(xs, ys []float64) (sx, sy []float64) {
	idx := make([]int, 0, len(xs))
	for i := range xs {
		if i < len(ys) && !math.IsNaN(xs[i]) && !math.IsNaN(ys[i]) &&
			!math.IsInf(xs[i], 0) && !math.IsInf(ys[i], 0) {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	sx = make([]float64, 0, len(idx))
	sy = make([]float64, 0, len(idx))
	for _, i := range idx {
		if len(sx) > 0 && xs[i] == sx[len(sx)-1] {
			continue
		}
		sx = append(sx, xs[i])
		sy = append(sy, ys[i])
	}
	return sx, sy
}
