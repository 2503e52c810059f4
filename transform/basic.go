// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package transform

import (
	"fmt"

	"github.com/fusionml/shotarchive/catalog"
	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/resample"
	"github.com/fusionml/shotarchive/shot"
)

// Timebase stores the standard time grid on the record so later ops
// and debugging tools can see what everything was aligned to.
func (p *Params) Timebase() pipeline.Op {
	return p.op("add timebase", func(record *shot.Record) {
		record.Set("standard_time", shot.Series(p.StandardTimes, p.StandardTimes))
	})
}

// PcsPoints truncates realtime point signals to the catalog's sample
// cap. The PCS digitizers keep recording long after the plasma ends.
func (p *Params) PcsPoints() pipeline.Op {
	return p.op("truncate pcs points", func(record *shot.Record) {
		limit := p.Cat.PCSLength
		if limit <= 0 {
			return
		}
		for _, name := range p.Data.PCSSigNames {
			full := record.Get(name + "_full")
			if full == nil || full.NT() <= limit {
				continue
			}
			bs := full.BlockSize()
			shape := append([]int(nil), full.Shape...)
			shape[0] = limit
			record.Set(name+"_full", &shot.Signal{
				Data:  full.Data[:limit*bs],
				Shape: shape,
				Times: full.Times[:limit],
				Dims:  full.Dims,
			})
		}
	})
}

// ChangeTimebase resamples every fetched signal that survives into the
// archive onto the standard time base, then re-bases EFIT profiles
// onto the standard spatial grid. Discrete-valued signals use the
// windowed mode instead of the mean.
func (p *Params) ChangeTimebase() pipeline.Op {
	needed := catalog.Needed(p.Data)
	return p.op("change timebase", func(record *shot.Record) {
		for _, name := range needed {
			full := record.Get(name + "_full")
			if full == nil {
				continue
			}
			opt := resample.Options{UseMode: p.Cat.IsModal(name)}
			record.Set(name, resample.Standardize(full, p.StandardTimes, opt))
		}

		for _, efitType := range p.Data.EfitTypes {
			for _, base := range p.Data.EfitProfileSigNames {
				name := fmt.Sprintf("%s_%s", base, efitType)
				full := record.Get(name + "_full")
				cur := record.Get(name)
				if full == nil || cur == nil {
					continue
				}
				psi := full.Dim("psi")
				if psi == nil {
					record.Fail(name, fmt.Errorf("profile %v has no psi dimension", name))
					continue
				}
				rows := make([][]float64, cur.NT())
				ok := true
				for t := range rows {
					it, err := resample.NewInterp1D(psi, cur.Block(t))
					if err != nil {
						record.Fail(name, err)
						ok = false
						break
					}
					rows[t] = it.PredictAll(p.StandardX)
				}
				if ok {
					record.Set(name, shot.Matrix(p.StandardTimes, rows))
				}
			}
		}
	})
}

// KeepNeeded drops every intermediate, leaving only the signals the
// configuration asks to archive. gather_raw also keeps the raw
// fetched series next to their resampled versions.
func (p *Params) KeepNeeded() pipeline.Op {
	needed := catalog.Needed(p.Data)
	if p.Data.GatherRaw {
		for _, name := range needed {
			needed = append(needed, name+"_full")
		}
	}
	return p.op("keep needed", func(record *shot.Record) {
		record.Keep(needed)
	})
}
