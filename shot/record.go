// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package shot

import "sort"

// Record is the working dictionary for one shot as it moves through the
// pipeline. Fetch and transform failures are recorded per signal instead of
// aborting the record; a partial record is still archived.
type Record struct {
	Shot    int
	Signals map[string]*Signal
	Errors  map[string]error
}

func NewRecord(shot int) *Record {
	return &Record{
		Shot:    shot,
		Signals: make(map[string]*Signal),
		Errors:  make(map[string]error),
	}
}

// Set stores a signal under name, replacing any previous value.
func (r *Record) Set(name string, s *Signal) {
	r.Signals[name] = s
}

// Get returns the named signal, or nil when absent or failed.
func (r *Record) Get(name string) *Signal {
	return r.Signals[name]
}

// Has reports whether a non-nil signal is stored under name.
func (r *Record) Has(name string) bool {
	return r.Signals[name] != nil
}

// Fail records a per-signal error.
func (r *Record) Fail(name string, err error) {
	if err == nil {
		return
	}
	r.Errors[name] = err
}

// Remove drops the named signal.
func (r *Record) Remove(name string) {
	delete(r.Signals, name)
}

// Keep discards every signal not listed. Mirrors the final pipeline step
// that trims intermediate *_full entries before archiving.
func (r *Record) Keep(names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	for n := range r.Signals {
		if !keep[n] {
			delete(r.Signals, n)
		}
	}
}

// Names returns the stored signal names in sorted order.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.Signals))
	for n := range r.Signals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
