// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"

	"github.com/fusionml/shotarchive/config"
)

// Needed returns the list of output signal names implied by the
// configuration. Only these names survive into the archive; every
// intermediate the transforms produce is discarded.
func Needed(d *config.DataConfig) []string {
	var sigs []string
	sigs = append(sigs, d.ScalarSigNames...)
	sigs = append(sigs, d.NBSigNames...)
	sigs = append(sigs, d.StabilitySigNames...)
	sigs = append(sigs, d.GasCalSigNames...)
	sigs = append(sigs, d.PCSSigNames...)
	sigs = append(sigs, d.AOTScalarSigNames...)
	sigs = append(sigs, d.AOTProfSigNames...)
	if len(d.AOTProfSigNames) > 0 {
		sigs = append(sigs, "aot_prof_rho")
	}
	for _, efitType := range d.EfitTypes {
		for _, name := range d.EfitProfileSigNames {
			sigs = append(sigs, fmt.Sprintf("%s_%s", name, efitType))
		}
		for _, name := range d.EfitScalarSigNames {
			sigs = append(sigs, fmt.Sprintf("%s_%s", name, efitType))
		}
	}
	if d.IncludePsirz {
		sigs = append(sigs, "psirz", "psirz_r", "psirz_z")
	}
	if d.IncludeRhovn {
		sigs = append(sigs, "rhovn")
	}
	for _, name := range d.CerSigNames {
		// no real uncertainty for CER
		sigs = append(sigs,
			fmt.Sprintf("cer_%s_raw_1d", name),
			fmt.Sprintf("cer_%s_psi_raw_1d", name),
			fmt.Sprintf("cer_%s_r_raw_1d", name))
	}
	for _, name := range d.ThomsonSigNames {
		sigs = append(sigs,
			fmt.Sprintf("thomson_%s_raw_1d", name),
			fmt.Sprintf("thomson_%s_uncertainty_raw_1d", name),
			fmt.Sprintf("thomson_%s_psi_raw_1d", name))
	}
	if d.IncludeRadiation {
		for i := 1; i <= 24; i++ {
			for _, position := range []string{"L", "U"} {
				sigs = append(sigs, fmt.Sprintf("prad%s%d", position, i))
			}
		}
		for _, key := range []string{"KAPPA", "PRAD_DIVL", "PRAD_DIVU", "PRAD_TOT"} {
			sigs = append(sigs, "prad"+key)
		}
	}
	if d.IncludeFullEchData {
		sigs = append(sigs, "ech_names", "ech_frequency", "ech_R", "ech_Z",
			"ech_pwr", "ech_aziang", "ech_polang", "ech_pwr_total")
	}
	if d.IncludeFullNbData {
		sigs = append(sigs, "nb_pinj", "nb_tinj", "nb_vinj", "nb_vinj_scalar",
			"nb_210_rtan", "nb_150_tilt")
	}
	for _, trialFit := range d.TrialFits {
		for _, name := range d.CerSigNames {
			sigs = append(sigs, fmt.Sprintf("cer_%s_%s", name, trialFit))
		}
		for _, name := range d.ThomsonSigNames {
			sigs = append(sigs, fmt.Sprintf("thomson_%s_%s", name, trialFit))
		}
	}
	for _, name := range d.ZipfitSigNames {
		sigs = append(sigs, fmt.Sprintf("zipfit_%s_rho", name))
	}
	for _, name := range d.ZipfitSigNames {
		sigs = append(sigs, fmt.Sprintf("zipfit_%s_psi", name))
	}
	return sigs
}

// PsirzNeeded reports whether the flux map must be fetched even when
// it is not archived itself: mapping CER and Thomson chords onto flux
// coordinates requires it.
func PsirzNeeded(d *config.DataConfig) bool {
	return len(d.CerSigNames) > 0 || len(d.ThomsonSigNames) > 0
}

// RhovnNeeded reports whether the rho-of-psi map must be fetched.
func RhovnNeeded(d *config.DataConfig) bool {
	return d.IncludeRhovn || len(d.ZipfitSigNames) > 0
}
