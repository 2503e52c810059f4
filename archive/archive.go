// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package archive writes the per-shot output store: one hierarchical
// file holding the shared time and spatial grids at the root and one
// group per shot. Local files are HDF5; gs URLs stage to a local file
// and upload on close.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/fusionml/shotarchive/shot"
)

// ErrUnsupported is returned for operations the backing store cannot
// express, such as deleting a group from an HDF5 file in place.
var ErrUnsupported = errors.New("operation not supported by archive backend")

// Archive is the per-shot output store. Implementations are not safe
// for concurrent writers; the job serializes writes.
type Archive interface {
	// EnsureShared verifies the shared grids against an existing
	// store, or creates them in a fresh one. A grid mismatch is an
	// error: mixing time bases in one archive would corrupt it.
	EnsureShared(times, spatial []float64) error
	// HasShot reports shots that were finished, not merely started:
	// a group left behind by a killed run is redone rather than
	// silently skipped.
	HasShot(shotNum int) bool
	// DeleteShot removes a shot group where the backend allows it.
	DeleteShot(shotNum int) error
	WriteSignal(shotNum int, name string, sig *shot.Signal) error
	// FinishShot marks a shot group complete once every signal for it
	// has been written.
	FinishShot(shotNum int) error
	Shots() ([]int, error)
	Close() error
}

// Reader is the read side implemented by backends that can be
// inspected after the fact. The job never needs it; the plot and
// inspect tools do.
type Reader interface {
	Grids() (times, spatial []float64, err error)
	SignalNames(shotNum int) ([]string, error)
	ReadSignal(shotNum int, name string) (*shot.Signal, error)
}

// Open constructs an archive for the given URL. file URLs open an
// HDF5 file in place; gs URLs stage to a temporary local file that is
// uploaded to the bucket when the archive is closed.
func Open(ctx context.Context, urlString, credentials string) (Archive, error) {
	thisUrl, err := url.Parse(urlString)
	if err != nil {
		return nil, err
	}

	switch thisUrl.Scheme {
	case "gs":
		return openGcsArchive(
			ctx,
			thisUrl.Host,
			strings.TrimLeft(thisUrl.Path, "/"),
			[]byte(credentials),
		)
	case "file":
		return OpenH5(filepath.Clean(fmt.Sprintf("%v/%v", thisUrl.Host, thisUrl.Path)))
	default:
		return nil, errors.New("bad url scheme")
	}
}
