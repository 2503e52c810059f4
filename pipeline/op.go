// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package pipeline chains per-record transform steps over channels of shot
// records. Ops run in their own goroutines; an OpArray wires them together
// so a batch of shots streams through fetch and transform stages with
// bounded buffering.
package pipeline

import "github.com/fusionml/shotarchive/shot"

type Op interface {
	GetDescription() string
	Run(input <-chan *shot.Record) <-chan *shot.Record
}

type OpArray []Op

func (ops OpArray) Run(stream <-chan *shot.Record) <-chan *shot.Record {
	for _, o := range ops {
		stream = o.Run(stream)
	}
	return stream
}

// Sink drains the chained stream, discarding records.
func (ops OpArray) Sink(stream <-chan *shot.Record) {
	for range ops.Run(stream) {
	}
}

// Source feeds a fixed batch of records into a new stream.
func Source(records []*shot.Record) <-chan *shot.Record {
	out := make(chan *shot.Record, len(records))
	for _, r := range records {
		out <- r
	}
	close(out)
	return out
}

// Collect drains a stream into a slice, preserving arrival order.
func Collect(stream <-chan *shot.Record) []*shot.Record {
	var records []*shot.Record
	for r := range stream {
		records = append(records, r)
	}
	return records
}
