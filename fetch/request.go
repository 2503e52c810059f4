// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package fetch retrieves raw diagnostic signals for a shot from the
// acquisition gateway, with optional redis caching and file-backed
// fixtures for offline runs.
package fetch

// Address locates a signal on the acquisition side.
type Address interface {
	addr()
}

// Point names a plasma control system digitizer point.
type Point struct {
	Name string
}

// Tree names a node in an MDSplus tree. Dims lists the non-time
// dimensions the node carries, innermost first.
type Tree struct {
	Tree     string
	Node     string
	Location string
	Dims     []string
}

func (Point) addr() {}
func (Tree) addr()  {}

// Request pairs a signal address with the record key the fetched
// signal is stored under.
type Request struct {
	Name string
	Addr Address
}
