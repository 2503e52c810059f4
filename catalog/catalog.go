// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package catalog carries the machine constants that describe the
// diagnostic layout: chord and channel rosters, calibration scales,
// name mappings between offline trees and realtime points. The
// defaults are compiled into the binary so a batch job needs no
// site files to run.
package catalog

import (
	"log"
	"strings"
	"sync"

	"github.com/gobuffalo/packr"
	yaml "gopkg.in/yaml.v3"
)

var DefaultsBox = packr.NewBox("defaults")

type CerConfig struct {
	Areas            []string         `yaml:"areas"`
	ChannelsAll      map[string][]int `yaml:"channels_all"`
	ChannelsRealtime map[string][]int `yaml:"channels_realtime"`
	Scale            map[string]float64 `yaml:"scale"`
}

type ThomsonConfig struct {
	MDSAreas      []string           `yaml:"mds_areas"`
	PCSAreas      []string           `yaml:"pcs_areas"`
	MDSScale      map[string]float64 `yaml:"mds_scale"`
	PCSScale      map[string]float64 `yaml:"pcs_scale"`
	PCSAreaMapping   map[string]string `yaml:"pcs_area_mapping"`
	PCSSignalMapping map[string]string `yaml:"pcs_signal_mapping"`
	PCSMaxChannels   map[string]int    `yaml:"pcs_max_channels"`
}

type Catalog struct {
	Cer     CerConfig     `yaml:"cer"`
	Thomson ThomsonConfig `yaml:"thomson"`

	// ZipfitPairs maps each zipfit profile to the diagnostic family
	// it is fitted from, for side-by-side comparison plots.
	ZipfitPairs map[string]string `yaml:"zipfit_pairs"`

	// ModalSigNames lists discrete-valued signals that must be
	// resampled with the windowed mode rather than the mean.
	ModalSigNames []string `yaml:"modal_sig_names"`

	// PCSLength caps the number of samples taken from a realtime
	// point; the PCS archives keep recording long after the plasma
	// is gone.
	PCSLength int `yaml:"pcs_length"`

	// Gyrotrons is the full roster ever installed, including retired
	// units. Older shots reference gyrotrons that no longer exist.
	Gyrotrons []string `yaml:"gyrotrons"`

	// Beams lists the neutral beam lines by injection angle; each
	// has a left and a right source.
	Beams []int `yaml:"beams"`
}

var catalogMutex sync.RWMutex
var defaultCatalog *Catalog

func unmarshalDefaults() {
	catalogMutex.Lock()
	data, err := DefaultsBox.Find("catalog.yaml")
	if err != nil {
		log.Println("cannot find catalog.yaml:", err)
	}
	defaultCatalog = &Catalog{}
	if err := yaml.Unmarshal(data, defaultCatalog); err != nil {
		log.Println("cannot parse catalog.yaml:", err)
	}
	catalogMutex.Unlock()
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	catalogMutex.RLock()
	if defaultCatalog == nil {
		catalogMutex.RUnlock()
		unmarshalDefaults()
		catalogMutex.RLock()
	}
	defer catalogMutex.RUnlock()
	return defaultCatalog
}

// Load parses a catalog from YAML, for sites that override the
// defaults.
func Load(data []byte) (*Catalog, error) {
	cat := &Catalog{}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// CerChannels returns the channel roster per area, restricted to the
// realtime subset when realtime is set.
func (c *Catalog) CerChannels(realtime bool) map[string][]int {
	if realtime {
		return c.Cer.ChannelsRealtime
	}
	return c.Cer.ChannelsAll
}

// ThomsonAreas returns the area list for the offline or realtime
// Thomson system.
func (c *Catalog) ThomsonAreas(realtime bool) []string {
	if realtime {
		return c.Thomson.PCSAreas
	}
	return c.Thomson.MDSAreas
}

// IsModal reports whether the named signal is discrete-valued.
// Matching is case-insensitive the way casefolded site lists are.
func (c *Catalog) IsModal(name string) bool {
	for _, m := range c.ModalSigNames {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}
