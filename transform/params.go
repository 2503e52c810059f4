// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package transform holds the pipeline ops that turn raw fetched
// signals into archive-ready ones: time alignment onto the standard
// grid, flux-coordinate mapping, profile fitting and the final
// signal selection.
package transform

import (
	"github.com/fusionml/shotarchive/catalog"
	"github.com/fusionml/shotarchive/config"
	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/resample"
	"github.com/fusionml/shotarchive/shot"
)

// Params carries the configuration shared by every transform op.
type Params struct {
	Data *config.DataConfig
	Cat  *catalog.Catalog

	StandardTimes []float64
	StandardX     []float64
}

func NewParams(d *config.DataConfig, cat *catalog.Catalog) *Params {
	return &Params{
		Data:          d,
		Cat:           cat,
		StandardTimes: d.StandardTimes(),
		StandardX:     d.StandardX(),
	}
}

// Ops assembles the transform chain in dependency order. Fetching and
// archive writing sit on either side of this chain in the job.
func (p *Params) Ops() pipeline.OpArray {
	ops := pipeline.OpArray{p.Timebase()}
	if p.Data.IncludeFullEchData {
		ops = append(ops, p.EchInfo())
	}
	if p.Data.IncludeFullNbData {
		ops = append(ops, p.NbInfo())
	}
	ops = append(ops, p.PcsPoints(), p.ChangeTimebase())
	if p.Data.IncludePsirz || catalog.PsirzNeeded(p.Data) {
		ops = append(ops, p.Psin())
	}
	ops = append(ops, p.ZipfitRho())
	if catalog.RhovnNeeded(p.Data) {
		ops = append(ops, p.Rhovn(), p.ZipfitPsi())
	}
	ops = append(ops, p.ThomsonMap(), p.CerMap())
	if len(p.Data.AOTProfSigNames) > 0 {
		ops = append(ops, p.AotProfiles())
	}
	ops = append(ops, p.KeepNeeded())
	return ops
}

func (p *Params) op(desc string, fn func(*shot.Record)) pipeline.Op {
	return pipeline.RecordOp{Description: desc, Processor: fn}
}

// standardize resamples sig onto the standard time base with the
// plain windowed mean.
func (p *Params) standardize(sig *shot.Signal) *shot.Signal {
	return resample.Standardize(sig, p.StandardTimes, resample.Options{})
}
