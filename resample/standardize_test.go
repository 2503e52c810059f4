// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package resample

import (
	"math"
	"testing"

	"github.com/fusionml/shotarchive/shot"
)

func almostEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < 1e-9
}

func TestSeriesWindowMean(t *testing.T) {
	times := []float64{0, 10, 20, 30, 40, 50}
	data := []float64{0, 1, 2, 3, 4, 5}
	std := []float64{25, 45}

	// window of 25 ms covers samples (0,25] and (20,45]
	out := Series(data, times, std, Options{Window: 25})
	if !almostEqual(out[0], (1.0+2.0)/2) {
		t.Errorf("out[0] = %v", out[0])
	}
	if !almostEqual(out[1], (3.0+4.0)/2) {
		t.Errorf("out[1] = %v", out[1])
	}
}

func TestSeriesHoldsLastValue(t *testing.T) {
	times := []float64{0, 10}
	data := []float64{7, 9}
	std := []float64{100, 200}

	out := Series(data, times, std, Options{Window: 20})
	if !almostEqual(out[0], 9) || !almostEqual(out[1], 9) {
		t.Errorf("expected last-value hold, got %v", out)
	}
}

func TestSeriesNaNBeforeFirstSample(t *testing.T) {
	out := Series([]float64{1}, []float64{500}, []float64{0, 100}, Options{Window: 50})
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Errorf("expected NaN before first sample, got %v", out)
	}
}

func TestSeriesMode(t *testing.T) {
	times := []float64{1, 2, 3, 4, 5}
	data := []float64{2, 2, 2, 7, 7}
	out := Series(data, times, []float64{6}, Options{Window: 10, UseMode: true})
	if !almostEqual(out[0], 2) {
		t.Errorf("mode = %v, want 2", out[0])
	}
}

func TestSeriesExpFalloffWeightsRecent(t *testing.T) {
	times := []float64{0, 99}
	data := []float64{0, 10}
	out := Series(data, times, []float64{100}, Options{
		Window:      200,
		ExpFalloff:  true,
		FalloffRate: 20,
	})
	// the sample 1 ms back should dominate the one 100 ms back
	if out[0] < 9 {
		t.Errorf("falloff mean = %v, want close to 10", out[0])
	}
}

func TestStandardizeMatrix(t *testing.T) {
	sig := shot.Matrix(
		[]float64{5, 15},
		[][]float64{{1, 2}, {3, 4}},
	)
	std := []float64{10, 20}
	out := Standardize(sig, std, Options{Window: 10})
	if out.NT() != 2 || out.BlockSize() != 2 {
		t.Fatalf("bad shape %v", out.Shape)
	}
	if !almostEqual(out.Block(0)[0], 1) || !almostEqual(out.Block(1)[1], 4) {
		t.Errorf("blocks = %v %v", out.Block(0), out.Block(1))
	}
}

func TestStandardizeLeavesScalars(t *testing.T) {
	s := shot.Scalar(3)
	if got := Standardize(s, []float64{0, 1}, Options{}); got != s {
		t.Error("scalar should pass through unchanged")
	}
}
