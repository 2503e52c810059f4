// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"

	"github.com/fusionml/shotarchive/shot"
)

type Processor func(*shot.Record)

// RecordOp applies Processor to each record with up to Concurrency records
// in flight, re-emitting records in their original order. MaxRecordBuf
// bounds how many finished records may be held back waiting for an earlier
// straggler.
type RecordOp struct {
	Description  string
	Processor    Processor
	Concurrency  int
	MaxRecordBuf int
}

func (o RecordOp) GetDescription() string {
	return o.Description
}

func (o RecordOp) Run(input <-chan *shot.Record) <-chan *shot.Record {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRecordBuf <= 0 {
		o.MaxRecordBuf = 16
	}

	output := make(chan *shot.Record, o.MaxRecordBuf)

	go func() {
		defer close(output)

		inFlight := make(map[uint64]*shot.Record)
		finished := make(map[uint64]*shot.Record)
		done := make(chan uint64)
		defer close(done)

		ackDone := func() {
			index := <-done
			finished[index] = inFlight[index]
			delete(inFlight, index)
		}

		nRead := uint64(0)
		nWritten := uint64(0)
		writeOut := func() {
			for {
				record, ok := finished[nWritten]
				if !ok {
					break
				}
				output <- record
				delete(finished, nWritten)
				nWritten++
			}
		}

		for record := range input {
			go func(record *shot.Record, index uint64) {
				// a panicking processor fails the record, not the run
				defer func() {
					if p := recover(); p != nil {
						record.Fail(o.Description, fmt.Errorf("panic: %v", p))
					}
					done <- index
				}()
				o.Processor(record)
			}(record, nRead)
			inFlight[nRead] = record
			nRead++

			for len(inFlight) >= o.Concurrency || len(finished) >= o.MaxRecordBuf {
				ackDone()
				writeOut()
			}
		}

		for len(inFlight) > 0 {
			ackDone()
		}
		writeOut()
	}()

	return output
}
