// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package pipeline

import "github.com/fusionml/shotarchive/shot"

type StreamProcessor func(<-chan *shot.Record, chan<- *shot.Record)

// StreamOp hands the whole stream to StreamProcessor, for steps that need
// to see records in sequence or hold state across them.
type StreamOp struct {
	Description     string
	StreamProcessor StreamProcessor
	MaxRecordBuf    int
}

func (o StreamOp) GetDescription() string {
	return o.Description
}

func (o StreamOp) Run(input <-chan *shot.Record) <-chan *shot.Record {
	if o.MaxRecordBuf <= 0 {
		o.MaxRecordBuf = 16
	}

	output := make(chan *shot.Record, o.MaxRecordBuf)

	go func() {
		defer close(output)

		o.StreamProcessor(input, output)
	}()

	return output
}
