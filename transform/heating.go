// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/resample"
	"github.com/fusionml/shotarchive/shot"
)

func matrixSignal(rows [][]float64) *shot.Signal {
	n := 0
	if len(rows) > 0 {
		n = len(rows[0])
	}
	data := make([]float64, 0, len(rows)*n)
	for _, row := range rows {
		data = append(data, row...)
	}
	return &shot.Signal{Data: data, Shape: []int{len(rows), n}}
}

func vectorSignal(vals []float64) *shot.Signal {
	return &shot.Signal{Data: vals, Shape: []int{len(vals)}}
}

// EchInfo assembles the gyrotron heating description: one row per
// installed system, launcher geometry as vectors and power and
// steering angles resampled onto the standard time base.
func (p *Params) EchInfo() pipeline.Op {
	sigs0d := []string{"frequency", "R", "Z"}
	sigs1d := []string{"pwr", "aziang", "polang"}

	return p.op("assemble ech info", func(record *shot.Record) {
		if full := record.Get("ech_pwr_total_full"); full != nil {
			record.Set("ech_pwr_total", p.standardize(full))
		}

		ns := record.Get("ech_num_systems")
		if ns == nil {
			return
		}
		numSystems := int(ns.ScalarValue())

		var names []string
		scalars := make(map[string][]float64, len(sigs0d))
		series := make(map[string][][]float64, len(sigs1d))
		for i := 1; i <= numSystems; i++ {
			nameSig := record.Get(fmt.Sprintf("ech_name_%d", i))
			if nameSig == nil || len(nameSig.Text) == 0 {
				continue
			}
			gyro := strings.ToUpper(nameSig.Text[0])
			names = append(names, gyro)

			for _, key := range sigs0d {
				v := math.NaN()
				if s := record.Get(fmt.Sprintf("ech_%s_%d", key, i)); s != nil {
					v = s.ScalarValue()
				}
				scalars[key] = append(scalars[key], v)
			}
			for _, key := range sigs1d {
				row := make([]float64, len(p.StandardTimes))
				for j := range row {
					row[j] = math.NaN()
				}
				if s := record.Get(fmt.Sprintf("ech_%s_%s", key, gyro)); s != nil {
					row = resample.Series(s.Data, s.Times, p.StandardTimes, resample.Options{})
				}
				series[key] = append(series[key], row)
			}
		}

		record.Set("ech_names", shot.Strings(names...))
		for _, key := range sigs0d {
			record.Set("ech_"+key, vectorSignal(scalars[key]))
		}
		for _, key := range sigs1d {
			record.Set("ech_"+key, matrixSignal(series[key]))
		}
	})
}

// NbInfo assembles the neutral beam description: power, torque and
// voltage per source resampled onto the standard time base, plus the
// geometry scalars for the steerable lines.
func (p *Params) NbInfo() pipeline.Op {
	sides := []string{"L", "R"}

	return p.op("assemble nb info", func(record *shot.Record) {
		for _, geom := range []string{"nb_210_rtan", "nb_150_tilt"} {
			v := math.NaN()
			if s := record.Get(geom); s != nil && len(s.Data) > 0 {
				v = s.ScalarValue()
			}
			record.Set(geom, shot.Scalar(v))
		}

		// vinj last: older shots have no time-dependent voltage and
		// simply contribute fewer rows
		for _, sig := range []string{"pinj", "tinj", "vinj"} {
			var rows [][]float64
			for _, beam := range p.Cat.Beams {
				for _, side := range sides {
					s := record.Get(fmt.Sprintf("nb_%d%s_%s", beam, side, sig))
					if s == nil || s.NT() == 0 {
						continue
					}
					rows = append(rows, resample.Series(s.Data, s.Times, p.StandardTimes, resample.Options{}))
				}
			}
			record.Set("nb_"+sig, matrixSignal(rows))
		}

		var vinjScalar []float64
		for _, beam := range p.Cat.Beams {
			for _, side := range sides {
				v := math.NaN()
				if s := record.Get(fmt.Sprintf("nb_%d%s_vinj_scalar", beam, side)); s != nil && len(s.Data) > 0 {
					v = s.ScalarValue()
				}
				vinjScalar = append(vinjScalar, v)
			}
		}
		record.Set("nb_vinj_scalar", vectorSignal(vinjScalar))
	})
}
