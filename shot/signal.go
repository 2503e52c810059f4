// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package shot holds the working representation of one tokamak discharge:
// a bag of named diagnostic signals on their native time bases, plus the
// per-signal errors accumulated while building the record.
package shot

import "math"

// Signal is a single named quantity pulled from the acquisition system or
// produced by a transform step. Multi-dimensional data is stored flattened
// in row-major order with the time axis leading, so Shape[0] == len(Times)
// for any time-resolved signal.
type Signal struct {
	Data  []float64
	Shape []int
	Times []float64

	// Dims holds named non-time axes: psi, r, z, rhon, position.
	Dims map[string][]float64

	// Text holds string-valued results (gas species, valve names,
	// logbook entries, gyrotron names). Exclusive with Data.
	Text []string
}

// Scalar wraps a single value.
func Scalar(v float64) *Signal {
	return &Signal{Data: []float64{v}}
}

// Strings wraps a list of string values.
func Strings(vals ...string) *Signal {
	return &Signal{Text: vals}
}

// Series wraps a one-dimensional time series.
func Series(times, data []float64) *Signal {
	return &Signal{Data: data, Shape: []int{len(data)}, Times: times}
}

// Matrix builds a time-major two-dimensional signal from rows, one row per
// time slice.
func Matrix(times []float64, rows [][]float64) *Signal {
	s := &Signal{Times: times}
	if len(rows) == 0 {
		return s
	}
	n := len(rows[0])
	s.Shape = []int{len(rows), n}
	s.Data = make([]float64, 0, len(rows)*n)
	for _, row := range rows {
		s.Data = append(s.Data, row...)
	}
	return s
}

// IsScalar reports whether the signal holds a single value with no axes.
func (s *Signal) IsScalar() bool {
	return s != nil && len(s.Shape) == 0 && len(s.Data) == 1
}

// ScalarValue returns the single held value, or NaN when the signal is not
// a scalar.
func (s *Signal) ScalarValue() float64 {
	if !s.IsScalar() {
		return math.NaN()
	}
	return s.Data[0]
}

// NT returns the length of the leading (time) axis.
func (s *Signal) NT() int {
	if s == nil || len(s.Shape) == 0 {
		return 0
	}
	return s.Shape[0]
}

// BlockSize returns the number of values per time slice.
func (s *Signal) BlockSize() int {
	if s == nil || len(s.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.Shape[1:] {
		n *= d
	}
	return n
}

// Block returns the i-th time slice as a view into the flattened data.
func (s *Signal) Block(i int) []float64 {
	bs := s.BlockSize()
	return s.Data[i*bs : (i+1)*bs]
}

// Rows returns a time-major 2-D signal as a slice of row views.
func (s *Signal) Rows() [][]float64 {
	nt := s.NT()
	rows := make([][]float64, nt)
	for i := 0; i < nt; i++ {
		rows[i] = s.Block(i)
	}
	return rows
}

// Column copies out column j of a time-major 2-D signal.
func (s *Signal) Column(j int) []float64 {
	nt := s.NT()
	bs := s.BlockSize()
	col := make([]float64, nt)
	for i := 0; i < nt; i++ {
		col[i] = s.Data[i*bs+j]
	}
	return col
}

// Clone deep-copies the signal.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := &Signal{
		Data:  append([]float64(nil), s.Data...),
		Shape: append([]int(nil), s.Shape...),
		Times: append([]float64(nil), s.Times...),
		Text:  append([]string(nil), s.Text...),
	}
	if s.Dims != nil {
		c.Dims = make(map[string][]float64, len(s.Dims))
		for k, v := range s.Dims {
			c.Dims[k] = append([]float64(nil), v...)
		}
	}
	return c
}

// Dim returns a named non-time axis, or nil.
func (s *Signal) Dim(name string) []float64 {
	if s == nil || s.Dims == nil {
		return nil
	}
	return s.Dims[name]
}
