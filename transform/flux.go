// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package transform

import (
	"errors"
	"fmt"

	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/resample"
	"github.com/fusionml/shotarchive/shot"
)

// Psin normalizes the equilibrium flux map so the axis sits at 0 and
// the boundary at 1, then aligns it onto the standard time base. The
// grid axes are stored alongside for the chord-mapping ops.
func (p *Params) Psin() pipeline.Op {
	return p.op("normalize flux map", func(record *shot.Record) {
		psirz := record.Get("psirz_full")
		ssimag := record.Get("ssimag_full")
		ssibry := record.Get("ssibry_full")
		if psirz == nil || ssimag == nil || ssibry == nil {
			record.Fail("psirz", errors.New("flux map incomplete"))
			return
		}

		norm := psirz.Clone()
		if err := resample.NormalizePsi(norm, ssimag.Data, ssibry.Data); err != nil {
			record.Fail("psirz", err)
			return
		}
		record.Set("psirz", resample.Standardize(norm, p.StandardTimes, resample.Options{}))
		record.Set("psirz_r", vectorSignal(psirz.Dim("r")))
		record.Set("psirz_z", vectorSignal(psirz.Dim("z")))
	})
}

// Rhovn aligns the rho-of-psi map onto the standard time base.
func (p *Params) Rhovn() pipeline.Op {
	return p.op("align rhovn", func(record *shot.Record) {
		if full := record.Get("rhovn_full"); full != nil {
			record.Set("rhovn", resample.Standardize(full, p.StandardTimes, resample.Options{}))
		}
	})
}

// ZipfitRho aligns each zipfit profile onto the standard time base and
// re-bases it from the fit's own radial nodes onto the standard grid.
// The time-aligned profile on the native nodes is kept on the record
// for ZipfitPsi.
func (p *Params) ZipfitRho() pipeline.Op {
	return p.op("re-base zipfit onto rho", func(record *shot.Record) {
		for _, name := range p.Data.ZipfitSigNames {
			full := record.Get(fmt.Sprintf("zipfit_%s_full", name))
			if full == nil {
				continue
			}
			rhon := full.Dim("rhon")
			if rhon == nil {
				record.Fail("zipfit_"+name, errors.New("zipfit profile has no rhon dimension"))
				continue
			}

			basis := resample.Standardize(full, p.StandardTimes, resample.Options{})
			record.Set(fmt.Sprintf("zipfit_%s_rhon_basis", name), basis)

			rows := make([][]float64, basis.NT())
			for t := range rows {
				it, err := resample.NewInterp1D(rhon, basis.Block(t))
				if err != nil {
					record.Fail("zipfit_"+name, err)
					return
				}
				rows[t] = it.PredictAll(p.StandardX)
			}
			record.Set(fmt.Sprintf("zipfit_%s_rho", name), shot.Matrix(p.StandardTimes, rows))
		}
	})
}

// ZipfitPsi re-bases each zipfit profile onto normalized poloidal
// flux: the rho-of-psi map gives each native radial node a psi
// coordinate per time slice, and a linear profile fit moves the
// values onto the standard grid.
func (p *Params) ZipfitPsi() pipeline.Op {
	return p.op("re-base zipfit onto psi", func(record *shot.Record) {
		rhovn := record.Get("rhovn")
		full := record.Get("rhovn_full")
		if rhovn == nil || full == nil {
			return
		}
		psiGrid := full.Dim("psi")
		if psiGrid == nil {
			record.Fail("rhovn", errors.New("rhovn has no psi dimension"))
			return
		}

		for _, name := range p.Data.ZipfitSigNames {
			basis := record.Get(fmt.Sprintf("zipfit_%s_rhon_basis", name))
			zfull := record.Get(fmt.Sprintf("zipfit_%s_full", name))
			if basis == nil || zfull == nil {
				continue
			}
			rhon := zfull.Dim("rhon")

			nt := basis.NT()
			x := make([][]float64, nt)
			value := make([][]float64, nt)
			for t := 0; t < nt; t++ {
				rhoToPsi, err := resample.NewInterp1D(rhovn.Block(t), psiGrid)
				if err != nil {
					record.Fail("zipfit_"+name, err)
					return
				}
				x[t] = rhoToPsi.PredictAll(rhon)
				value[t] = basis.Block(t)
			}

			out := resample.LinearInterp1D(x, value, nil, p.StandardTimes, p.StandardX)
			record.Set(fmt.Sprintf("zipfit_%s_psi", name), shot.Matrix(p.StandardTimes, out))
		}
	})
}
