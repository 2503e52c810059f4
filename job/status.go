// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package job batches shots through the fetch and transform pipeline
// and into the archive, and keeps the run alive across acquisition
// backend crashes by relaunching itself past the shot that broke.
package job

import (
	"sync"
)

// Status mirrors the job's progress for the monitor. Keys preserve
// insertion order so the status page reads top to bottom the way the
// run advanced.
type Status struct {
	mu         sync.RWMutex
	keys       []string
	stringData map[string]string
	completed  []int
}

func (s *Status) SetString(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stringData == nil {
		s.stringData = make(map[string]string)
	}
	if _, ok := s.stringData[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.stringData[key] = value
}

// Complete records a shot as fully archived.
func (s *Status) Complete(shotNum int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, shotNum)
}

// Snapshot is a point-in-time copy of the status, safe to marshal
// while the job keeps writing.
type Snapshot struct {
	Keys       []string          `json:"keys"`
	StringData map[string]string `json:"string_data"`
	Completed  []int             `json:"completed"`
}

func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Keys:       append([]string(nil), s.keys...),
		StringData: make(map[string]string, len(s.stringData)),
		Completed:  append([]int(nil), s.completed...),
	}
	for k, v := range s.stringData {
		snap.StringData[k] = v
	}
	return snap
}
