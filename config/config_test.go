// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != 1 {
		t.Errorf("version = %d, want 1", cfg.Version)
	}
	if cfg.Data.TimeStep <= 0 {
		t.Errorf("time_step = %v, want > 0", cfg.Data.TimeStep)
	}
	if cfg.Logistics.MaxShotsPerRun < 1 {
		t.Errorf("max_shots_per_run = %d", cfg.Logistics.MaxShotsPerRun)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
data:
  shots: [180000, 180001]
  tmin: 100.0
  tmax: 200.0
  time_step: 25.0
logistics:
  output: "file://out.h5"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.TMin != 100 || cfg.Data.TMax != 200 {
		t.Errorf("time bounds = [%v, %v]", cfg.Data.TMin, cfg.Data.TMax)
	}
	// defaults survive the overlay
	if cfg.Data.NumX < 2 {
		t.Errorf("num_x_points = %d", cfg.Data.NumX)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("data:\n  no_such_key: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfiguration(path); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestStandardTimes(t *testing.T) {
	d := DataConfig{TMin: 0, TMax: 100, TimeStep: 25}
	ts := d.StandardTimes()
	want := []float64{0, 25, 50, 75}
	if len(ts) != len(want) {
		t.Fatalf("len = %d, want %d", len(ts), len(want))
	}
	for i := range want {
		if math.Abs(ts[i]-want[i]) > 1e-12 {
			t.Errorf("times[%d] = %v, want %v", i, ts[i], want[i])
		}
	}
}

func TestStandardX(t *testing.T) {
	d := DataConfig{NumX: 5}
	xs := d.StandardX()
	if xs[0] != 0 || xs[4] != 1 {
		t.Errorf("endpoints = %v, %v", xs[0], xs[4])
	}
	if math.Abs(xs[2]-0.5) > 1e-12 {
		t.Errorf("midpoint = %v", xs[2])
	}
}

func TestShotListDescending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shots.txt")
	if err := os.WriteFile(path, []byte("# campaign 2019\n175000\n180000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	d := DataConfig{Shots: []int{170000}, ShotsFile: path}
	shots, err := d.ShotList()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{180000, 175000, 170000}
	if len(shots) != 3 {
		t.Fatalf("len = %d", len(shots))
	}
	for i := range want {
		if shots[i] != want[i] {
			t.Errorf("shots[%d] = %d, want %d", i, shots[i], want[i])
		}
	}
}
