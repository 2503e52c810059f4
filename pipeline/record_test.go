// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package pipeline

import (
	"math/rand"
	"testing"
	"time"

	"github.com/fusionml/shotarchive/shot"
)

func makeBatch(n int) []*shot.Record {
	records := make([]*shot.Record, n)
	for i := range records {
		records[i] = shot.NewRecord(190000 - i)
	}
	return records
}

func TestRecordOpPreservesOrder(t *testing.T) {
	const n = 100
	op := RecordOp{
		Processor: func(r *shot.Record) {
			// stagger completion so later records routinely finish first
			time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
			r.Set("touched", shot.Scalar(float64(r.Shot)))
		},
		Concurrency:  8,
		MaxRecordBuf: 4,
	}

	out := Collect(op.Run(Source(makeBatch(n))))
	if len(out) != n {
		t.Fatalf("got %d records, want %d", len(out), n)
	}
	for i, r := range out {
		if r.Shot != 190000-i {
			t.Fatalf("record %d out of order: shot %d", i, r.Shot)
		}
		if !r.Has("touched") {
			t.Errorf("record %d not processed", i)
		}
	}
}

func TestOpArrayChains(t *testing.T) {
	ops := OpArray{
		RecordOp{Processor: func(r *shot.Record) {
			r.Set("a", shot.Scalar(1))
		}},
		StreamOp{StreamProcessor: func(in <-chan *shot.Record, out chan<- *shot.Record) {
			for r := range in {
				if r.Has("a") {
					r.Set("b", shot.Scalar(2))
				}
				out <- r
			}
		}},
	}

	out := Collect(ops.Run(Source(makeBatch(3))))
	if len(out) != 3 {
		t.Fatalf("got %d records, want 3", len(out))
	}
	for _, r := range out {
		if !r.Has("a") || !r.Has("b") {
			t.Errorf("shot %d missing op results", r.Shot)
		}
	}
}

func TestRecordOpRecordsPanic(t *testing.T) {
	op := RecordOp{
		Description: "index raw data",
		Processor: func(r *shot.Record) {
			if r.Shot == 189999 {
				var empty []float64
				_ = empty[3]
			}
			r.Set("touched", shot.Scalar(1))
		},
		Concurrency: 4,
	}

	out := Collect(op.Run(Source(makeBatch(3))))
	if len(out) != 3 {
		t.Fatalf("got %d records, want 3", len(out))
	}
	for _, r := range out {
		if r.Shot == 189999 {
			if r.Errors["index raw data"] == nil {
				t.Error("panic not recorded on the record")
			}
			continue
		}
		if !r.Has("touched") {
			t.Errorf("shot %d not processed", r.Shot)
		}
	}
}

func TestRecordOpDefaultsSingleWorker(t *testing.T) {
	var order []int
	op := RecordOp{Processor: func(r *shot.Record) {
		order = append(order, r.Shot)
	}}
	Collect(op.Run(Source(makeBatch(5))))
	for i := 1; i < len(order); i++ {
		if order[i] >= order[i-1] {
			t.Fatalf("expected descending shot order, got %v", order)
		}
	}
}
