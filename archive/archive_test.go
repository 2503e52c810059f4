// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"testing"

	"github.com/fusionml/shotarchive/shot"
)

func TestMemEnsureShared(t *testing.T) {
	a := NewMem()
	times := []float64{0, 50, 100}
	spatial := []float64{0, 0.5, 1}

	if err := a.EnsureShared(times, spatial); err != nil {
		t.Fatal(err)
	}
	// identical grids verify fine
	if err := a.EnsureShared(times, spatial); err != nil {
		t.Fatal(err)
	}
	if err := a.EnsureShared([]float64{0, 25, 50}, spatial); err == nil {
		t.Error("mismatched time grid should be rejected")
	}
}

func TestMemShots(t *testing.T) {
	a := NewMem()
	a.WriteSignal(180001, "ip", shot.Scalar(1))
	a.WriteSignal(170000, "ip", shot.Scalar(2))
	a.FinishShot(180001)
	a.FinishShot(170000)

	if !a.HasShot(180001) || a.HasShot(123) {
		t.Error("HasShot wrong")
	}
	shots, err := a.Shots()
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 2 || shots[0] != 170000 {
		t.Errorf("shots = %v", shots)
	}

	a.DeleteShot(180001)
	if a.HasShot(180001) {
		t.Error("shot survived deletion")
	}
}

func TestUnfinishedShotNotReported(t *testing.T) {
	a := NewMem()
	// signals written but the run died before the shot was finished
	a.WriteSignal(180001, "ip", shot.Scalar(1))

	if a.HasShot(180001) {
		t.Error("partially written shot reported as archived")
	}

	// the rewrite lands over the leftovers and completes the shot
	a.WriteSignal(180001, "ip", shot.Scalar(2))
	if err := a.FinishShot(180001); err != nil {
		t.Fatal(err)
	}
	if !a.HasShot(180001) {
		t.Error("finished shot not reported")
	}
	if a.Groups[180001]["ip"].Data[0] != 2 {
		t.Errorf("rewrite did not replace the leftover value")
	}
}

func TestCombineGasTypes(t *testing.T) {
	flows := map[string]*shot.Signal{
		"gasA": {Data: []float64{1, 1, 1}, Shape: []int{3}},
		"pfx1": {Data: []float64{2, 2, 2}, Shape: []int{3}},
		"gasB": {Data: []float64{9, 9, 9}, Shape: []int{3}},
	}
	// valve A and PFX1 carry deuterium, valve B carries neon
	gases := []string{"D2   ", "D2", "Ne   "}
	valves := []string{"A", "PFX1", "B"}

	out := CombineGasTypes([]string{"D_tot", "N_tot"}, 3, gases, valves, flows)

	d := out["D_tot"].Data
	if d[0] != 3 || d[1] != 3 || d[2] != 3 {
		t.Errorf("D_tot = %v", d)
	}
	// neon was not requested; nitrogen total exists but stays zero
	if _, ok := out["Ne_tot"]; ok {
		t.Error("unrequested species produced")
	}
	if n := out["N_tot"].Data; n[0] != 0 {
		t.Errorf("N_tot = %v", n)
	}
}

func TestCombineGasTypesDuplicateValve(t *testing.T) {
	flows := map[string]*shot.Signal{
		"gasA": {Data: []float64{1, 1}, Shape: []int{2}},
	}
	// repeated gasvalves rows for valve A: the first species wins
	gases := []string{"D2", "N2"}
	valves := []string{"A", "A"}

	out := CombineGasTypes([]string{"D_tot", "N_tot"}, 2, gases, valves, flows)

	if d := out["D_tot"].Data; d[0] != 1 {
		t.Errorf("D_tot = %v", d)
	}
	if n := out["N_tot"].Data; n[0] != 0 {
		t.Errorf("N_tot = %v, want the later duplicate ignored", n)
	}
}

func TestOpenRejectsBadScheme(t *testing.T) {
	if _, err := Open(context.Background(), "ftp://nope", ""); err == nil || err.Error() != "bad url scheme" {
		t.Errorf("err = %v, want bad url scheme", err)
	}
}
