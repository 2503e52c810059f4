// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package archive

import (
	"strings"

	"github.com/fusionml/shotarchive/shot"
)

// The machine plumbs gas by valve (gasA, gasB, ... pfx1, ...) while
// analysis wants totals per gas species. Summing every valve carrying
// a given species is a decent approximation.
var valveMapping = map[string]string{
	"gasA": "A", "gasB": "B", "gasC": "C", "gasD": "D", "gasE": "E",
	"pfx1": "PFX1", "pfx2": "PFX2", "pfx3": "PFX3", "uob": "UOB",
}

var gasMapping = map[string]string{
	"D2": "D_tot", "N2": "N_tot", "H2": "H_tot",
	"HE": "He_tot", "NE": "Ne_tot", "AR": "Ar_tot",
}

// CombineGasTypes sums calibrated per-valve flows into per-species
// totals. gases and valves are the parallel lists from the gasvalves
// table, flows holds the calibrated valve signals already resampled
// onto the standard time base of length nt. Only species named in
// combined are produced; each is present even when no valve feeds it.
func CombineGasTypes(combined []string, nt int, gases, valves []string, flows map[string]*shot.Signal) map[string]*shot.Signal {
	want := make(map[string]bool, len(combined))
	out := make(map[string]*shot.Signal, len(combined))
	for _, gas := range combined {
		want[gas] = true
		out[gas] = &shot.Signal{Data: make([]float64, nt), Shape: []int{nt}}
	}

	// duplicate rows keep the first species listed for a valve
	valveGas := make(map[string]string, len(valves))
	for i, v := range valves {
		if i >= len(gases) {
			break
		}
		if _, ok := valveGas[v]; !ok {
			valveGas[v] = gases[i]
		}
	}

	for valve, plumbed := range valveMapping {
		flow, ok := flows[valve]
		if !ok {
			continue
		}
		gas, ok := valveGas[plumbed]
		if !ok {
			continue
		}
		mapped, ok := gasMapping[strings.ToUpper(strings.TrimSpace(gas))]
		if !ok || !want[mapped] {
			continue
		}
		total := out[mapped]
		for i := 0; i < nt && i < len(flow.Data); i++ {
			total.Data[i] += flow.Data[i]
		}
	}
	return out
}
