// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package archive

import (
	"fmt"
	"sort"

	"github.com/fusionml/shotarchive/shot"
)

// Mem is an in-memory archive for tests and dry runs.
type Mem struct {
	Times    []float64
	Spatial  []float64
	Groups   map[int]map[string]*shot.Signal
	Finished map[int]bool
}

func NewMem() *Mem {
	return &Mem{
		Groups:   make(map[int]map[string]*shot.Signal),
		Finished: make(map[int]bool),
	}
}

func (a *Mem) EnsureShared(times, spatial []float64) error {
	if a.Times != nil && !gridsEqual(a.Times, times) {
		return fmt.Errorf("times in existing archive differs from the configured grid")
	}
	if a.Spatial != nil && !gridsEqual(a.Spatial, spatial) {
		return fmt.Errorf("spatial_coordinates in existing archive differs from the configured grid")
	}
	a.Times = append([]float64(nil), times...)
	a.Spatial = append([]float64(nil), spatial...)
	return nil
}

func (a *Mem) HasShot(shotNum int) bool {
	return a.Finished[shotNum]
}

func (a *Mem) DeleteShot(shotNum int) error {
	delete(a.Groups, shotNum)
	delete(a.Finished, shotNum)
	return nil
}

func (a *Mem) FinishShot(shotNum int) error {
	if _, ok := a.Groups[shotNum]; !ok {
		a.Groups[shotNum] = make(map[string]*shot.Signal)
	}
	a.Finished[shotNum] = true
	return nil
}

func (a *Mem) WriteSignal(shotNum int, name string, sig *shot.Signal) error {
	g, ok := a.Groups[shotNum]
	if !ok {
		g = make(map[string]*shot.Signal)
		a.Groups[shotNum] = g
	}
	g[name] = sig
	return nil
}

func (a *Mem) Grids() (times, spatial []float64, err error) {
	return a.Times, a.Spatial, nil
}

func (a *Mem) SignalNames(shotNum int) ([]string, error) {
	g, ok := a.Groups[shotNum]
	if !ok {
		return nil, fmt.Errorf("no shot %v", shotNum)
	}
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *Mem) ReadSignal(shotNum int, name string) (*shot.Signal, error) {
	sig := a.Groups[shotNum][name]
	if sig == nil {
		return nil, fmt.Errorf("no signal %v in shot %v", name, shotNum)
	}
	return sig, nil
}

func (a *Mem) Shots() ([]int, error) {
	shots := make([]int, 0, len(a.Groups))
	for s := range a.Groups {
		shots = append(shots, s)
	}
	sort.Ints(shots)
	return shots, nil
}

func (a *Mem) Close() error {
	return nil
}

var (
	_ Archive = (*Mem)(nil)
	_ Reader  = (*Mem)(nil)
	_ Archive = (*H5)(nil)
	_ Reader  = (*H5)(nil)
)
