// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/resample"
	"github.com/fusionml/shotarchive/shot"
)

// coreChordR is the major radius of the vertically-viewing Thomson
// chord; its position coordinate runs along z.
const coreChordR = 1.94

// fluxGrids builds one 2-D flux interpolator per standard time slice
// from the normalized, time-aligned flux map.
func fluxGrids(record *shot.Record) ([]*resample.Grid2, error) {
	psirz := record.Get("psirz")
	rsig := record.Get("psirz_r")
	zsig := record.Get("psirz_z")
	if psirz == nil || rsig == nil || zsig == nil {
		return nil, errors.New("no flux map on record")
	}

	grids := make([]*resample.Grid2, psirz.NT())
	for t := range grids {
		g, err := resample.NewGrid2(zsig.Data, rsig.Data, psirz.Block(t))
		if err != nil {
			return nil, err
		}
		grids[t] = g
	}
	return grids, nil
}

// transpose flips channel-major rows into time-major rows.
func transpose(rows [][]float64, nt int) [][]float64 {
	out := make([][]float64, nt)
	for t := range out {
		out[t] = make([]float64, len(rows))
		for c := range rows {
			out[t][c] = rows[c][t]
		}
	}
	return out
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-8
}

// trialFits runs each configured per-time profile fitter over the
// scattered (psi, value) measurements and stores the results under
// <prefix>_<fitter>.
func (p *Params) trialFits(record *shot.Record, prefix string, psi, value, uncert [][]float64) {
	for _, name := range p.Data.TrialFits {
		fn, ok := resample.Fitter(name)
		if !ok {
			continue
		}
		out := fn(psi, value, uncert, p.StandardTimes, p.StandardX)
		record.Set(fmt.Sprintf("%s_%s", prefix, name), shot.Matrix(p.StandardTimes, out))
	}
}

// ThomsonMap places every Thomson scattering channel onto normalized
// flux coordinates and aligns its history onto the standard time
// base, producing the scattered (psi, value, uncertainty) planes the
// profile fitters consume.
func (p *Params) ThomsonMap() pipeline.Op {
	return p.op("map thomson chords", func(record *shot.Record) {
		if len(p.Data.ThomsonSigNames) == 0 {
			return
		}
		grids, err := fluxGrids(record)
		if err != nil {
			record.Fail("thomson", err)
			return
		}
		nt := len(p.StandardTimes)

		for _, name := range p.Data.ThomsonSigNames {
			scale := p.Cat.Thomson.MDSScale[name]
			if scale == 0 {
				scale = 1
			}

			var value, psi, uncert [][]float64
			for _, area := range p.Cat.ThomsonAreas(p.Data.IncludeRTThomson) {
				full := record.Get(fmt.Sprintf("thomson_%s_%s_full", area, name))
				if full == nil {
					continue
				}
				position := full.Dim("position")
				uncertFull := record.Get(fmt.Sprintf("thomson_%s_%s_uncertainty_full", area, name))
				// a missing uncertainty array would shift the weight
				// columns against the wrong channels, so the whole op
				// fails for the shot instead
				if p.Data.IncludeThomsonUncertainty && uncertFull == nil {
					record.Fail("thomson", fmt.Errorf("no uncertainty data for %v %v", area, name))
					return
				}

				for channel := range position {
					var r, z float64
					switch area {
					case "TANGENTIAL":
						r, z = position[channel], 0
					case "CORE":
						r, z = coreChordR, position[channel]
					default:
						continue
					}

					psiRow := make([]float64, nt)
					for t := range psiRow {
						psiRow[t] = grids[t].At(z, r)
					}
					psi = append(psi, psiRow)

					scaled := make([]float64, 0, full.NT())
					for _, v := range full.Column(channel) {
						scaled = append(scaled, v/scale)
					}
					value = append(value, resample.Series(scaled, full.Times, p.StandardTimes, resample.Options{}))

					if p.Data.IncludeThomsonUncertainty {
						u := make([]float64, 0, uncertFull.NT())
						for _, v := range uncertFull.Column(channel) {
							u = append(u, v/scale)
						}
						uncert = append(uncert, resample.Series(u, uncertFull.Times, p.StandardTimes, resample.Options{}))
					}
				}
			}

			if len(value) == 0 {
				continue
			}
			valueT := transpose(value, nt)
			psiT := transpose(psi, nt)
			// an unmeasured channel reads exactly zero
			for t := range valueT {
				for c := range valueT[t] {
					if isClose(valueT[t][c], 0) {
						valueT[t][c] = math.NaN()
					}
				}
			}

			var uncertT [][]float64
			if p.Data.IncludeThomsonUncertainty {
				uncertT = transpose(uncert, nt)
				for t := range uncertT {
					for c := range uncertT[t] {
						if isClose(uncertT[t][c], 0) {
							uncertT[t][c] = 0.1
						}
					}
				}
			} else {
				uncertT = make([][]float64, nt)
				for t := range uncertT {
					uncertT[t] = make([]float64, len(value))
					for c := range uncertT[t] {
						uncertT[t][c] = 1
					}
				}
			}

			record.Set(fmt.Sprintf("thomson_%s_raw_1d", name), shot.Matrix(p.StandardTimes, valueT))
			record.Set(fmt.Sprintf("thomson_%s_uncertainty_raw_1d", name), shot.Matrix(p.StandardTimes, uncertT))
			record.Set(fmt.Sprintf("thomson_%s_psi_raw_1d", name), shot.Matrix(p.StandardTimes, psiT))
			p.trialFits(record, "thomson_"+name, psiT, valueT, uncertT)
		}
	})
}

// CerMap places every charge-exchange chord onto normalized flux
// coordinates. Chord positions move during a shot, so R and Z are
// themselves time histories, resampled on the measurement's own time
// base before lookup.
func (p *Params) CerMap() pipeline.Op {
	return p.op("map cer chords", func(record *shot.Record) {
		if len(p.Data.CerSigNames) == 0 {
			return
		}
		grids, err := fluxGrids(record)
		if err != nil {
			record.Fail("cer", err)
			return
		}
		nt := len(p.StandardTimes)
		channels := p.Cat.CerChannels(p.Data.CerRealtimeChannels)

		for _, name := range p.Data.CerSigNames {
			scale := p.Cat.Cer.Scale[name]
			if scale == 0 {
				scale = 1
			}

			var value, psi, errRows [][]float64
			var lastR []float64
			for _, area := range p.Cat.Cer.Areas {
				for _, channel := range channels[area] {
					valSig := record.Get(fmt.Sprintf("cer_%s_%s_%d_full", area, name, channel))
					rSig := record.Get(fmt.Sprintf("cer_%s_%d_R_full", area, channel))
					zSig := record.Get(fmt.Sprintf("cer_%s_%d_Z_full", area, channel))
					errSig := record.Get(fmt.Sprintf("cer_%s_%s_%d_error_full", area, name, channel))
					if valSig == nil || rSig == nil || zSig == nil || errSig == nil {
						continue
					}

					r := resample.Series(rSig.Data, valSig.Times, p.StandardTimes, resample.Options{})
					z := resample.Series(zSig.Data, valSig.Times, p.StandardTimes, resample.Options{})
					row := resample.Series(valSig.Data, valSig.Times, p.StandardTimes, resample.Options{})
					// rotation arrives in km/s; dividing by the chord
					// radius converts to krad/s
					if name == "rot" && p.Data.CerRotationUnitsOfKrad {
						for i := range row {
							row[i] /= r[i]
						}
					}

					psiRow := make([]float64, nt)
					for t := range psiRow {
						psiRow[t] = grids[t].At(z[t], r[t])
					}

					value = append(value, row)
					psi = append(psi, psiRow)
					errRows = append(errRows, resample.Series(errSig.Data, errSig.Times, p.StandardTimes, resample.Options{}))
					lastR = r
				}
			}

			if len(value) == 0 {
				continue
			}
			valueT := transpose(value, nt)
			psiT := transpose(psi, nt)
			errT := transpose(errRows, nt)
			uncertT := make([][]float64, nt)
			for t := range valueT {
				uncertT[t] = make([]float64, len(value))
				for c := range valueT[t] {
					valueT[t][c] /= scale
					// error flag 1 marks a failed spectral fit
					if errT[t][c] == 1 {
						valueT[t][c] = math.NaN()
					}
					uncertT[t][c] = 1
				}
			}

			record.Set(fmt.Sprintf("cer_%s_raw_1d", name), shot.Matrix(p.StandardTimes, valueT))
			record.Set(fmt.Sprintf("cer_%s_uncertainty_raw_1d", name), shot.Matrix(p.StandardTimes, uncertT))
			record.Set(fmt.Sprintf("cer_%s_psi_raw_1d", name), shot.Matrix(p.StandardTimes, psiT))
			record.Set(fmt.Sprintf("cer_%s_r_raw_1d", name), shot.Series(p.StandardTimes, lastR))
			p.trialFits(record, "cer_"+name, psiT, valueT, uncertT)
		}
	})
}

// aotRhoPoints is the fixed radial grid the automated-analysis
// profiles are reported on.
const aotRhoPoints = 201

// AotProfiles aligns the automated-analysis profiles onto the
// standard time base. These arrive on a slow, irregular cadence, so
// the window is wide with an exponential falloff favoring the most
// recent analysis.
func (p *Params) AotProfiles() pipeline.Op {
	return p.op("align aot profiles", func(record *shot.Record) {
		for _, name := range p.Data.AOTProfSigNames {
			full := record.Get(name + "_full")
			if full == nil {
				continue
			}
			record.Set(name, resample.Standardize(full, p.StandardTimes, resample.Options{
				Window:      200,
				ExpFalloff:  true,
				FalloffRate: 20,
			}))
		}

		rho := make([]float64, aotRhoPoints)
		for i := range rho {
			rho[i] = float64(i) / float64(aotRhoPoints-1)
		}
		record.Set("aot_prof_rho", vectorSignal(rho))
	})
}
