// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package resample

import (
	"math"

	"go-hep.org/x/hep/fit"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// FitFunc turns scattered per-channel measurements into profiles on the
// standard spatial grid. x, value and uncert are time-major matrices with
// one column per channel; the result has one row per time on standardX.
// Rows with no usable points come back as NaN.
type FitFunc func(x, value, uncert [][]float64, times, standardX []float64) [][]float64

var fitFuncs = map[string]FitFunc{
	"linear_interp_1d": LinearInterp1D,
	"spline_1d":        Spline1D,
	"mtanh_1d":         MTanh1D,
	"csaps_1d":         SmoothSpline1D,
	"nn_interp_2d":     NNInterp2D,
	"linear_interp_2d": LinearInterp2D,
	"rbf_interp_2d":    RBFInterp2D,
}

var names1D = map[string]bool{
	"linear_interp_1d": true,
	"spline_1d":        true,
	"mtanh_1d":         true,
	"csaps_1d":         true,
}

// Fitter looks up a profile fitter by its configured name.
func Fitter(name string) (FitFunc, bool) {
	f, ok := fitFuncs[name]
	return f, ok
}

// Is1D reports whether the named fitter works time slice by time slice.
func Is1D(name string) bool {
	return names1D[name]
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}

// finiteRow pulls the usable (x, v, u) triples out of one time slice.
func finiteRow(x, v, u []float64) (xs, vs, us []float64) {
	for i := range x {
		if i >= len(v) {
			break
		}
		if math.IsNaN(x[i]) || math.IsNaN(v[i]) {
			continue
		}
		xs = append(xs, x[i])
		vs = append(vs, v[i])
		if i < len(u) && u[i] > 0 && !math.IsNaN(u[i]) {
			us = append(us, u[i])
		} else {
			us = append(us, 1)
		}
	}
	return xs, vs, us
}

func fitPerTime(x, value, uncert [][]float64, standardX []float64,
	fitRow func(xs, vs, us []float64) func(float64) float64) [][]float64 {

	out := make([][]float64, len(x))
	for t := range x {
		var urow []float64
		if t < len(uncert) {
			urow = uncert[t]
		}
		xs, vs, us := finiteRow(x[t], value[t], urow)
		pred := fitRow(xs, vs, us)
		if pred == nil {
			out[t] = nanRow(len(standardX))
			continue
		}
		row := make([]float64, len(standardX))
		for i, sx := range standardX {
			row[i] = pred(sx)
		}
		out[t] = row
	}
	return out
}

// LinearInterp1D fits each time slice with clamped linear interpolation.
func LinearInterp1D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	return fitPerTime(x, value, uncert, standardX,
		func(xs, vs, _ []float64) func(float64) float64 {
			it, err := NewInterp1D(xs, vs)
			if err != nil {
				return nil
			}
			return it.Predict
		})
}

// Spline1D fits each time slice with a natural cubic spline, falling back
// to linear interpolation when there are too few channels.
func Spline1D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	return fitPerTime(x, value, uncert, standardX, splineRow)
}

func splineRow(xs, vs, _ []float64) func(float64) float64 {
	sx, sy := cleanPairs(xs, vs)
	if len(sx) < 4 {
		it, err := NewInterp1D(sx, sy)
		if err != nil {
			return nil
		}
		return it.Predict
	}
	var nc interp.NaturalCubic
	if err := nc.Fit(sx, sy); err != nil {
		return nil
	}
	xmin, xmax := sx[0], sx[len(sx)-1]
	ymin, ymax := sy[0], sy[len(sy)-1]
	return func(x float64) float64 {
		switch {
		case x <= xmin:
			return ymin
		case x >= xmax:
			return ymax
		}
		return nc.Predict(x)
	}
}

// SmoothSpline1D approximates a smoothing spline: channel values are
// presmoothed with a distance-weighted running mean before the cubic fit.
func SmoothSpline1D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	return fitPerTime(x, value, uncert, standardX,
		func(xs, vs, us []float64) func(float64) float64 {
			sx, sy := cleanPairs(xs, vs)
			if len(sx) < 4 {
				it, err := NewInterp1D(sx, sy)
				if err != nil {
					return nil
				}
				return it.Predict
			}
			span := (sx[len(sx)-1] - sx[0]) / 8
			if span <= 0 {
				span = 1
			}
			smoothed := make([]float64, len(sy))
			for i := range sx {
				var num, den float64
				for j := range sx {
					w := math.Exp(-math.Abs(sx[j]-sx[i]) / span)
					num += w * sy[j]
					den += w
				}
				smoothed[i] = num / den
			}
			return splineRow(sx, smoothed, nil)
		})
}

// mtanhShape is the modified tanh used for edge pedestal profiles: the
// outer side saturates at the offset while the core side picks up a linear
// slope term.
func mtanhShape(z, slope float64) float64 {
	ez := math.Exp(z)
	emz := math.Exp(-z)
	return ((1+slope*z)*ez - emz) / (ez + emz)
}

func mtanhModel(x float64, ps []float64) float64 {
	h, b, pos, w, s := ps[0], ps[1], ps[2], ps[3], ps[4]
	return (h+b)/2 + (h-b)/2*mtanhShape((pos-x)/(2*w), s)
}

// MTanh1D fits each time slice with a five-parameter modified-tanh
// pedestal shape. Slices where the optimizer fails fall back to linear
// interpolation so trial-fit output stays populated.
func MTanh1D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	return fitPerTime(x, value, uncert, standardX,
		func(xs, vs, us []float64) func(float64) float64 {
			if len(xs) < 6 {
				it, err := NewInterp1D(xs, vs)
				if err != nil {
					return nil
				}
				return it.Predict
			}

			lo, hi := vs[0], vs[0]
			for _, v := range vs {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			p0 := []float64{hi, lo, 0.98, 0.05, 0.1}

			res, err := fit.Curve1D(
				fit.Func1D{
					F:   mtanhModel,
					X:   xs,
					Y:   vs,
					Err: us,
					Ps:  p0,
				},
				nil, &optimize.NelderMead{},
			)
			if err != nil || res == nil || hasNaN(res.X) {
				it, ierr := NewInterp1D(xs, vs)
				if ierr != nil {
					return nil
				}
				return it.Predict
			}
			ps := append([]float64(nil), res.X...)
			return func(x float64) float64 { return mtanhModel(x, ps) }
		})
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// scatter flattens the time-major matrices into (x, t, v) points with time
// normalized onto [0, 1] so spatial and temporal distances are comparable.
type scatterPoint struct {
	x, t, v float64
}

func gatherScatter(x, value [][]float64, times []float64) []scatterPoint {
	tmin, tmax := math.Inf(1), math.Inf(-1)
	for _, t := range times {
		tmin = math.Min(tmin, t)
		tmax = math.Max(tmax, t)
	}
	span := tmax - tmin
	if span <= 0 {
		span = 1
	}

	var pts []scatterPoint
	for ti := range x {
		tv := 0.0
		if ti < len(times) {
			tv = (times[ti] - tmin) / span
		}
		for ci := range x[ti] {
			if ci >= len(value[ti]) {
				break
			}
			if math.IsNaN(x[ti][ci]) || math.IsNaN(value[ti][ci]) {
				continue
			}
			pts = append(pts, scatterPoint{x: x[ti][ci], t: tv, v: value[ti][ci]})
		}
	}
	return pts
}

// NNInterp2D assigns each output node the value of the nearest measurement
// in (x, normalized time) space.
func NNInterp2D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	pts := gatherScatter(x, value, times)
	out := make([][]float64, len(times))
	if len(pts) == 0 {
		for t := range out {
			out[t] = nanRow(len(standardX))
		}
		return out
	}

	tmin, tmax := times[0], times[0]
	for _, t := range times {
		tmin = math.Min(tmin, t)
		tmax = math.Max(tmax, t)
	}
	span := tmax - tmin
	if span <= 0 {
		span = 1
	}

	for ti, t := range times {
		tv := (t - tmin) / span
		row := make([]float64, len(standardX))
		for i, sx := range standardX {
			best := math.Inf(1)
			bv := math.NaN()
			for _, p := range pts {
				dx := p.x - sx
				dt := p.t - tv
				d := dx*dx + dt*dt
				if d < best {
					best = d
					bv = p.v
				}
			}
			row[i] = bv
		}
		out[ti] = row
	}
	return out
}

// rbfInterp2D builds a radial-basis interpolant over the scattered
// measurements and evaluates it on the (time, standardX) product grid.
func rbfInterp2D(x, value [][]float64, times, standardX []float64,
	kernel func(r float64) float64) [][]float64 {

	pts := gatherScatter(x, value, times)
	out := make([][]float64, len(times))
	if len(pts) < 3 {
		for t := range out {
			out[t] = nanRow(len(standardX))
		}
		return out
	}

	n := len(pts)
	k := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	for i, pi := range pts {
		rhs.SetVec(i, pi.v)
		for j, pj := range pts {
			dx := pi.x - pj.x
			dt := pi.t - pj.t
			v := kernel(math.Sqrt(dx*dx + dt*dt))
			if i == j {
				v += 1e-9 // ridge term keeps the system solvable
			}
			k.Set(i, j, v)
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(k, rhs); err != nil {
		for t := range out {
			out[t] = nanRow(len(standardX))
		}
		return out
	}

	tmin, tmax := times[0], times[0]
	for _, t := range times {
		tmin = math.Min(tmin, t)
		tmax = math.Max(tmax, t)
	}
	span := tmax - tmin
	if span <= 0 {
		span = 1
	}

	for ti, t := range times {
		tv := (t - tmin) / span
		row := make([]float64, len(standardX))
		for i, sx := range standardX {
			var sum float64
			for j, p := range pts {
				dx := p.x - sx
				dt := p.t - tv
				sum += coef.AtVec(j) * kernel(math.Sqrt(dx*dx+dt*dt))
			}
			row[i] = sum
		}
		out[ti] = row
	}
	return out
}

// LinearInterp2D is a scattered 2-D fit with a linear radial basis.
func LinearInterp2D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	return rbfInterp2D(x, value, times, standardX, func(r float64) float64 { return r })
}

// RBFInterp2D is a scattered 2-D fit with a Gaussian radial basis.
func RBFInterp2D(x, value, uncert [][]float64, times, standardX []float64) [][]float64 {
	const eps = 0.15
	return rbfInterp2D(x, value, times, standardX, func(r float64) float64 {
		return math.Exp(-(r * r) / (eps * eps))
	})
}
