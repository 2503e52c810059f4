// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package resample holds the numeric routines the pipeline leans on: time
// re-basing onto the standard time grid, clamped 1-D interpolation, the
// profile fitters, and flux normalization.
package resample

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/fusionml/shotarchive/shot"
)

// Options controls how samples are folded into each standard time bin.
type Options struct {
	// Window is the length of the averaging window preceding each output
	// time. Zero means the output grid spacing.
	Window float64

	// UseMode picks the most common value in the window instead of the
	// mean. Used for modal (categorical) signals.
	UseMode bool

	// ExpFalloff weights samples by exp(-dt*FalloffRate/Window) so recent
	// samples dominate. Used for the slow automated-analysis profiles.
	ExpFalloff  bool
	FalloffRate float64
}

func (o Options) window(std []float64) float64 {
	if o.Window > 0 {
		return o.Window
	}
	if len(std) > 1 {
		return std[1] - std[0]
	}
	return 1
}

// Series re-bases an irregular series onto the standard time grid. Samples
// with timestamps in (t-window, t] are averaged for each output time t;
// empty windows hold the most recent earlier sample, and NaN is emitted
// before the first sample. Input times must be non-decreasing.
func Series(data, times, std []float64, opt Options) []float64 {
	out := make([]float64, len(std))
	w := opt.window(std)
	rate := opt.FalloffRate
	if rate <= 0 {
		rate = 20
	}

	lo, hi := 0, 0
	for i, t := range std {
		for hi < len(times) && times[hi] <= t {
			hi++
		}
		for lo < hi && times[lo] <= t-w {
			lo++
		}
		if lo == hi {
			if hi > 0 {
				out[i] = data[hi-1]
			} else {
				out[i] = math.NaN()
			}
			continue
		}

		xs := data[lo:hi]
		switch {
		case opt.UseMode:
			m, _ := stat.Mode(xs, nil)
			out[i] = m
		case opt.ExpFalloff:
			ws := make([]float64, len(xs))
			for j := range ws {
				ws[j] = math.Exp(-(t - times[lo+j]) * rate / w)
			}
			out[i] = stat.Mean(xs, ws)
		default:
			out[i] = stat.Mean(xs, nil)
		}
	}
	return out
}

// Blocks re-bases the leading time axis of a stack of equally shaped blocks
// (profiles, flux maps) by elementwise window averaging.
func Blocks(blocks [][]float64, times, std []float64, opt Options) [][]float64 {
	out := make([][]float64, len(std))
	if len(blocks) == 0 {
		for i := range out {
			out[i] = nil
		}
		return out
	}
	bs := len(blocks[0])
	w := opt.window(std)
	rate := opt.FalloffRate
	if rate <= 0 {
		rate = 20
	}

	lo, hi := 0, 0
	for i, t := range std {
		for hi < len(times) && times[hi] <= t {
			hi++
		}
		for lo < hi && times[lo] <= t-w {
			lo++
		}
		block := make([]float64, bs)
		if lo == hi {
			if hi > 0 {
				copy(block, blocks[hi-1])
			} else {
				for j := range block {
					block[j] = math.NaN()
				}
			}
			out[i] = block
			continue
		}

		var wsum float64
		for k := lo; k < hi; k++ {
			wk := 1.0
			if opt.ExpFalloff {
				wk = math.Exp(-(t - times[k]) * rate / w)
			}
			wsum += wk
			for j := 0; j < bs; j++ {
				block[j] += wk * blocks[k][j]
			}
		}
		for j := range block {
			block[j] /= wsum
		}
		out[i] = block
	}
	return out
}

// Standardize re-bases a fetched signal onto the standard time grid,
// preserving any non-time axes. Scalars and strings pass through untouched.
func Standardize(sig *shot.Signal, std []float64, opt Options) *shot.Signal {
	if sig == nil || len(sig.Times) == 0 || len(sig.Shape) == 0 {
		return sig
	}
	if len(sig.Shape) == 1 {
		out := shot.Series(std, Series(sig.Data, sig.Times, std, opt))
		out.Dims = sig.Dims
		return out
	}

	bs := sig.BlockSize()
	blocks := make([][]float64, sig.NT())
	for i := range blocks {
		blocks[i] = sig.Block(i)
	}
	rebased := Blocks(blocks, sig.Times, std, opt)

	out := &shot.Signal{
		Times: std,
		Shape: append([]int{len(std)}, sig.Shape[1:]...),
		Dims:  sig.Dims,
		Data:  make([]float64, 0, len(std)*bs),
	}
	for _, b := range rebased {
		if b == nil {
			b = make([]float64, bs)
			for j := range b {
				b[j] = math.NaN()
			}
		}
		out.Data = append(out.Data, b...)
	}
	return out
}
