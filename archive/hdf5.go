// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package archive

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/hdf5"

	"github.com/fusionml/shotarchive/shot"
)

// H5 stores the archive in a single HDF5 file: shared grids at the
// root, one group per shot, one dataset per signal.
type H5 struct {
	path string
	f    *hdf5.File
}

func OpenH5(path string) (*H5, error) {
	var f *hdf5.File
	var err error
	if _, serr := os.Stat(path); serr == nil {
		f, err = hdf5.OpenFile(path, hdf5.F_ACC_RDWR)
	} else {
		f, err = hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	}
	if err != nil {
		return nil, fmt.Errorf("opening archive %v: %w", path, err)
	}
	return &H5{path: path, f: f}, nil
}

func (a *H5) rootNames() (map[string]bool, error) {
	n, err := a.f.NumObjects()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, n)
	for i := uint(0); i < n; i++ {
		names[a.f.ObjectNameByIndex(i)] = true
	}
	return names, nil
}

func (a *H5) readGrid(name string) ([]float64, error) {
	dset, err := a.f.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	buf := make([]float64, dset.Space().SimpleExtentNPoints())
	if err := dset.Read(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *H5) writeGrid(name string, grid []float64) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(grid))}, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := a.f.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer dset.Close()
	return dset.Write(&grid)
}

func gridsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func (a *H5) EnsureShared(times, spatial []float64) error {
	names, err := a.rootNames()
	if err != nil {
		return err
	}
	for name, grid := range map[string][]float64{"times": times, "spatial_coordinates": spatial} {
		if names[name] {
			existing, err := a.readGrid(name)
			if err != nil {
				return err
			}
			if !gridsEqual(existing, grid) {
				return fmt.Errorf("%v in existing archive %v differs from the configured grid", name, a.path)
			}
			continue
		}
		if err := a.writeGrid(name, grid); err != nil {
			return err
		}
	}
	return nil
}

// completeAttr is the group attribute that marks a fully written shot.
const completeAttr = "complete"

func (a *H5) HasShot(shotNum int) bool {
	g, err := a.f.OpenGroup(strconv.Itoa(shotNum))
	if err != nil {
		return false
	}
	defer g.Close()

	attr, err := g.OpenAttribute(completeAttr)
	if err != nil {
		return false
	}
	attr.Close()
	return true
}

func (a *H5) FinishShot(shotNum int) error {
	// a shot whose every signal failed still gets an (empty) group
	g, err := a.openOrCreateGroup(strconv.Itoa(shotNum))
	if err != nil {
		return err
	}
	defer g.Close()

	space, err := hdf5.CreateSimpleDataspace([]uint{1}, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	attr, err := g.CreateAttribute(completeAttr, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	mark := 1.0
	return attr.Write(&mark, hdf5.T_NATIVE_DOUBLE)
}

// DeleteShot is unsupported: the HDF5 library can unlink a group but
// never reclaims its space, so overwrite runs recreate the file
// instead.
func (a *H5) DeleteShot(int) error {
	return ErrUnsupported
}

func (a *H5) openOrCreateGroup(name string) (*hdf5.Group, error) {
	if a.f.LinkExists(name) {
		return a.f.OpenGroup(name)
	}
	return a.f.CreateGroup(name)
}

// openOrCreateDataset reuses a dataset left behind by an interrupted
// run so the shot can be rewritten in place.
func openOrCreateDataset(g *hdf5.Group, name string, dtype *hdf5.Datatype, space *hdf5.Dataspace) (*hdf5.Dataset, error) {
	if g.LinkExists(name) {
		return g.OpenDataset(name)
	}
	return g.CreateDataset(name, dtype, space)
}

func (a *H5) WriteSignal(shotNum int, name string, sig *shot.Signal) error {
	g, err := a.openOrCreateGroup(strconv.Itoa(shotNum))
	if err != nil {
		return err
	}
	defer g.Close()

	if len(sig.Text) > 0 {
		space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(sig.Text))}, nil)
		if err != nil {
			return err
		}
		defer space.Close()
		dset, err := openOrCreateDataset(g, name, hdf5.T_GO_STRING, space)
		if err != nil {
			return err
		}
		defer dset.Close()
		return dset.Write(&sig.Text)
	}

	dims := make([]uint, 0, len(sig.Shape))
	for _, d := range sig.Shape {
		dims = append(dims, uint(d))
	}
	if len(dims) == 0 {
		dims = []uint{1}
	}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := openOrCreateDataset(g, name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer dset.Close()
	return dset.Write(&sig.Data)
}

// Grids reads the shared grids back.
func (a *H5) Grids() (times, spatial []float64, err error) {
	if times, err = a.readGrid("times"); err != nil {
		return nil, nil, err
	}
	if spatial, err = a.readGrid("spatial_coordinates"); err != nil {
		return nil, nil, err
	}
	return times, spatial, nil
}

// SignalNames lists the datasets stored for one shot.
func (a *H5) SignalNames(shotNum int) ([]string, error) {
	g, err := a.f.OpenGroup(strconv.Itoa(shotNum))
	if err != nil {
		return nil, err
	}
	defer g.Close()

	n, err := g.NumObjects()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		names = append(names, g.ObjectNameByIndex(i))
	}
	sort.Strings(names)
	return names, nil
}

// ReadSignal reads one dataset back with its shape.
func (a *H5) ReadSignal(shotNum int, name string) (*shot.Signal, error) {
	g, err := a.f.OpenGroup(strconv.Itoa(shotNum))
	if err != nil {
		return nil, err
	}
	defer g.Close()

	dset, err := g.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	dims, _, err := dset.Space().SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	n := 1
	shape := make([]int, 0, len(dims))
	for _, d := range dims {
		shape = append(shape, int(d))
		n *= int(d)
	}

	dtype, err := dset.Datatype()
	if err != nil {
		return nil, err
	}
	defer dtype.Close()
	if dtype.Class() == hdf5.T_STRING {
		text := make([]string, n)
		if err := dset.Read(&text); err != nil {
			return nil, err
		}
		return &shot.Signal{Text: text}, nil
	}

	data := make([]float64, n)
	if err := dset.Read(&data); err != nil {
		return nil, err
	}
	return &shot.Signal{Data: data, Shape: shape}, nil
}

func (a *H5) Shots() ([]int, error) {
	names, err := a.rootNames()
	if err != nil {
		return nil, err
	}
	var shots []int
	for name := range names {
		if n, err := strconv.Atoi(name); err == nil {
			shots = append(shots, n)
		}
	}
	sort.Ints(shots)
	return shots, nil
}

func (a *H5) Close() error {
	return a.f.Close()
}
