// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package plot

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/fusionml/shotarchive/shot"
)

// points drops NaN samples; resampling leaves NaN wherever a window
// held no data and the plotter would drag lines through them.
func points(xs, ys []float64) plotter.XYs {
	var pts plotter.XYs
	for i := range xs {
		if i >= len(ys) || math.IsNaN(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	return pts
}

// Trace plots a scalar signal against the shared time grid.
func Trace(name string, times []float64, sig *shot.Signal) (*plot.Plot, error) {
	if sig == nil || len(sig.Shape) != 1 {
		return nil, fmt.Errorf("%v is not a time trace", name)
	}

	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "time [ms]"

	line, err := plotter.NewLine(points(times, sig.Data))
	if err != nil {
		return nil, err
	}
	p.Add(line, plotter.NewGrid())
	return p, nil
}

// Profiles overlays the listed profile signals at one time index
// against the normalized spatial grid, e.g. a fitted profile next to
// the analysis code's own fit.
func Profiles(title string, x []float64, ti int, names []string, sigs map[string]*shot.Signal) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "normalized flux"
	p.Legend.Top = true

	plotted := 0
	for i, name := range names {
		sig := sigs[name]
		if sig == nil || len(sig.Shape) != 2 || ti < 0 || ti >= sig.Shape[0] {
			continue
		}
		pts := points(x, sig.Block(ti))
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
		plotted++
	}
	if plotted == 0 {
		return nil, fmt.Errorf("no plottable profiles among %v", names)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}
