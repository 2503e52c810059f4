// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package plot renders archived signals as time traces and profile
// plots for quick inspection.
package plot

import (
	"math"

	"gonum.org/v1/plot"
)

// FuncScale applies an arbitrary monotonic function to an axis.
type FuncScale struct {
	Func func(float64) float64
}

func (s *FuncScale) Normalize(min, max, x float64) float64 {
	if s.Func == nil {
		panic("s.Func is nil")
	}
	fMin := s.Func(min)
	return (s.Func(x) - fMin) / (s.Func(max) - fMin)
}

// Log10Min3 is a log scale floored at 1e-3, for signals that dip to
// zero between samples.
func Log10Min3(x float64) float64 {
	if x <= 0.001 {
		return -3
	}
	return math.Log10(x)
}

// Log10Min15 floors at 1e-15 for density-like signals spanning many
// decades.
func Log10Min15(x float64) float64 {
	if x <= 1e-15 {
		return -15
	}
	return math.Log10(x)
}

var _ plot.Normalizer = (*FuncScale)(nil)
