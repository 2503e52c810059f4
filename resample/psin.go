// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package resample

import (
	"fmt"

	"github.com/fusionml/shotarchive/shot"
)

// NormalizePsi converts a poloidal flux cube (time, r, z) to normalized
// flux in place: psin = (psi - ssimag) / (ssibry - ssimag). Time slices
// where boundary and axis flux coincide would divide by zero; those slices
// are forced to zero instead.
func NormalizePsi(psirz *shot.Signal, ssimag, ssibry []float64) error {
	nt := psirz.NT()
	if len(ssimag) != nt || len(ssibry) != nt {
		return fmt.Errorf("resample: flux series length %d/%d does not match %d time slices",
			len(ssimag), len(ssibry), nt)
	}

	for t := 0; t < nt; t++ {
		block := psirz.Block(t)
		den := ssibry[t] - ssimag[t]
		if den == 0 {
			for i := range block {
				block[i] = 0
			}
			continue
		}
		for i := range block {
			block[i] = (block[i] - ssimag[t]) / den
		}
	}
	return nil
}
