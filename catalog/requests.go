// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fusionml/shotarchive/config"
	"github.com/fusionml/shotarchive/fetch"
)

// remoteAtlas is the MDSplus server fronting the offline trees.
const remoteAtlas = "remote://atlas.gat.com"

func mds(name, node, tree string, dims ...string) fetch.Request {
	return fetch.Request{
		Name: name,
		Addr: fetch.Tree{Tree: tree, Node: node, Location: remoteAtlas, Dims: dims},
	}
}

func point(name, pt string) fetch.Request {
	return fetch.Request{Name: name, Addr: fetch.Point{Name: pt}}
}

// Requests enumerates every signal the configured job must fetch for
// a shot. The request names double as the record keys the transforms
// read from.
func (c *Catalog) Requests(d *config.DataConfig) []fetch.Request {
	var reqs []fetch.Request

	for _, name := range d.ScalarSigNames {
		reqs = append(reqs, point(name+"_full", name))
	}
	for _, name := range d.StabilitySigNames {
		reqs = append(reqs, mds(name+"_full", ".MIRNOV."+name, "MHD"))
	}
	for _, name := range d.NBSigNames {
		reqs = append(reqs, mds(name+"_full", name, "NB"))
	}

	for _, efitType := range d.EfitTypes {
		for _, name := range d.EfitProfileSigNames {
			reqs = append(reqs, mds(
				fmt.Sprintf("%s_%s_full", name, efitType),
				"RESULTS.GEQDSK."+name, efitType, "psi", "times"))
		}
		for _, name := range d.EfitScalarSigNames {
			reqs = append(reqs, mds(
				fmt.Sprintf("%s_%s_full", name, efitType),
				`\`+strings.ToUpper(name), efitType))
		}
	}

	for _, name := range d.AOTScalarSigNames {
		reqs = append(reqs, mds(name+"_full", strings.ToUpper(name), "AOT"))
	}
	for _, name := range d.AOTProfSigNames {
		reqs = append(reqs, mds(name+"_full", strings.ToUpper(name), "AOT"))
	}

	for _, name := range d.GasCalSigNames {
		reqs = append(reqs, fetch.Request{
			Name: name + "_full",
			Addr: fetch.Tree{Tree: "NEUTRALS", Node: fmt.Sprintf(".GASFLOW.%s.FLOW", name)},
		})
	}

	// flux map comes from the first EFIT only
	if (d.IncludePsirz || PsirzNeeded(d)) && len(d.EfitTypes) > 0 {
		efitType := d.EfitTypes[0]
		reqs = append(reqs,
			mds("psirz_full", `\psirz`, efitType, "r", "z", "times"),
			mds("ssimag_full", `\ssimag`, efitType),
			mds("ssibry_full", `\ssibry`, efitType))
	}
	if RhovnNeeded(d) && len(d.EfitTypes) > 0 {
		reqs = append(reqs, mds("rhovn_full", `\rhovn`, d.EfitTypes[0], "psi", "times"))
	}

	reqs = append(reqs, c.thomsonRequests(d)...)
	reqs = append(reqs, c.cerRequests(d)...)

	for _, name := range d.ZipfitSigNames {
		reqs = append(reqs, mds(
			fmt.Sprintf("zipfit_%s_full", name),
			fmt.Sprintf(`\ZIPFIT01::TOP.PROFILES.%s`, name), "ZIPFIT01", "rhon", "times"))
	}

	for _, name := range d.PCSSigNames {
		reqs = append(reqs, point(name+"_full", name))
	}

	if d.IncludeRadiation {
		for i := 1; i <= 24; i++ {
			for _, position := range []string{"L", "U"} {
				reqs = append(reqs, mds(
					fmt.Sprintf("prad%s%d_full", position, i),
					fmt.Sprintf(`\SPECTROSCOPY::TOP.PRAD.BOLOM.PRAD_01.POWER.BOL_%s%02d_P`, position, i),
					"SPECTROSCOPY"))
			}
		}
		for _, key := range []string{"KAPPA", "PRAD_DIVL", "PRAD_DIVU", "PRAD_TOT"} {
			reqs = append(reqs, mds(
				fmt.Sprintf("prad%s_full", key),
				`\SPECTROSCOPY::TOP.PRAD.BOLOM.PRAD_01.PRAD.`+key,
				"SPECTROSCOPY"))
		}
	}

	if d.IncludeFullEchData {
		reqs = append(reqs, c.echRequests()...)
	}
	if d.IncludeFullNbData {
		reqs = append(reqs, c.nbRequests()...)
	}

	return reqs
}

func (c *Catalog) thomsonRequests(d *config.DataConfig) []fetch.Request {
	var reqs []fetch.Request
	for _, name := range d.ThomsonSigNames {
		for _, area := range c.ThomsonAreas(d.IncludeRTThomson) {
			reqs = append(reqs, mds(
				fmt.Sprintf("thomson_%s_%s_full", area, name),
				fmt.Sprintf("TS.BLESSED.%s.%s", area, name),
				"ELECTRONS", "times", "position"))
			if d.IncludeThomsonUncertainty {
				reqs = append(reqs, mds(
					fmt.Sprintf("thomson_%s_%s_uncertainty_full", area, name),
					fmt.Sprintf("TS.BLESSED.%s.%s_E", area, name),
					"ELECTRONS"))
			}
			if d.IncludeRTThomson {
				for channel := 1; channel <= c.Thomson.PCSMaxChannels[area]; channel++ {
					reqs = append(reqs, point(
						fmt.Sprintf("thomson_rt_%s_%s_%d_full", area, name, channel),
						fmt.Sprintf("tss%s%s%02d",
							c.Thomson.PCSAreaMapping[area],
							c.Thomson.PCSSignalMapping[name],
							channel)))
				}
			}
		}
	}
	return reqs
}

func (c *Catalog) cerRequests(d *config.DataConfig) []fetch.Request {
	if len(d.CerSigNames) == 0 {
		return nil
	}
	channels := c.CerChannels(d.CerRealtimeChannels)

	var reqs []fetch.Request
	for _, area := range c.Cer.Areas {
		for _, channel := range channels[area] {
			node := func(leaf string) string {
				return fmt.Sprintf("CER.%s.%s.CHANNEL%02d.%s", d.CerType, area, channel, leaf)
			}
			reqs = append(reqs,
				mds(fmt.Sprintf("cer_%s_%d_R_full", area, channel), node("R"), "IONS"),
				mds(fmt.Sprintf("cer_%s_%d_Z_full", area, channel), node("Z"), "IONS"))

			for _, name := range d.CerSigNames {
				// rotation uses the corrected node
				correction := ""
				if name == "rot" {
					correction = "c"
				}
				reqs = append(reqs,
					mds(fmt.Sprintf("cer_%s_%s_%d_full", area, name, channel), node(name+correction), "IONS"),
					mds(fmt.Sprintf("cer_%s_%s_%d_error_full", area, name, channel), node(name+"_ERR"), "IONS"))
			}
		}
	}
	return reqs
}

func (c *Catalog) echRequests() []fetch.Request {
	reqs := []fetch.Request{
		{Name: "ech_num_systems", Addr: fetch.Tree{Tree: "RF", Node: "ECH.NUM_SYSTEMS"}},
	}
	for i := 1; i <= 6; i++ {
		sys := fmt.Sprintf("ECH.SYSTEM_%d", i)
		reqs = append(reqs,
			mds(fmt.Sprintf("ech_name_%d", i), sys+".GYROTRON.NAME", "RF"),
			mds(fmt.Sprintf("ech_frequency_%d", i), sys+".GYROTRON.FREQUENCY", "RF"),
			mds(fmt.Sprintf("ech_R_%d", i), sys+".ANTENNA.LAUNCH_R", "RF"),
			mds(fmt.Sprintf("ech_Z_%d", i), sys+".ANTENNA.LAUNCH_Z", "RF"))
	}
	reqs = append(reqs, mds("ech_pwr_total_full", `\echpwrc`, "RF"))
	for _, gyro := range c.Gyrotrons {
		prefix := fmt.Sprintf("ECH.%s.EC%s", gyro, gyro[:3])
		reqs = append(reqs,
			mds("ech_aziang_"+gyro, prefix+"AZIANG", "RF"),
			mds("ech_polang_"+gyro, prefix+"POLANG", "RF"),
			mds("ech_pwr_"+gyro, prefix+"FPWRC", "RF"),
			mds("ech_xmfrac_"+gyro, prefix+"XMFRAC", "RF"),
			mds("ech_stat_"+gyro, prefix+"STAT", "RF"))
	}
	return reqs
}

func (c *Catalog) nbRequests() []fetch.Request {
	var reqs []fetch.Request
	for _, beam := range c.Beams {
		beamName := strconv.Itoa(beam)[:2]
		for _, side := range []string{"L", "R"} {
			src := fmt.Sprintf("NB%s%s", beamName, side)
			reqs = append(reqs,
				mds(fmt.Sprintf("nb_%d%s_pinj", beam, side),
					fmt.Sprintf("%s.PINJ_%s%s", src, beamName, side), "NB"),
				mds(fmt.Sprintf("nb_%d%s_tinj", beam, side),
					fmt.Sprintf("%s.TINJ_%s%s", src, beamName, side), "NB"),
				mds(fmt.Sprintf("nb_%d%s_vinj", beam, side), src+".VBEAM", "NB"),
				mds(fmt.Sprintf("nb_%d%s_vinj_scalar", beam, side), src+".NBVAC_SCALAR", "NB"))
		}
	}
	// the 150 line can tilt and the 210 line can swing off-axis
	reqs = append(reqs,
		mds("nb_150_tilt", "NB15L.OANB.BLPTCH_CAD", "NB"),
		mds("nb_210_rtan", "NB21L.CCOANB.BLROT", "NB"))
	return reqs
}
