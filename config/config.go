// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package config loads and validates the YAML job configuration and
// prepares the shared logger.
package config

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// DataConfig selects which diagnostic signals the job gathers and
	// defines the standard grids everything is resampled onto.
	DataConfig struct {
		Shots     []int   `yaml:"shots"`
		ShotsFile string  `yaml:"shots_file,omitempty" validate:"omitempty,filepath"`
		TMin      float64 `yaml:"tmin"`
		TMax      float64 `yaml:"tmax" validate:"gtefield=TMin"`
		TimeStep  float64 `yaml:"time_step" validate:"gt=0"`
		NumX      int     `yaml:"num_x_points" validate:"min=2"`

		ScalarSigNames    []string `yaml:"scalar_sig_names"`
		NBSigNames        []string `yaml:"nb_sig_names"`
		StabilitySigNames []string `yaml:"stability_sig_names"`
		GasCalSigNames    []string `yaml:"gas_cal_sig_names"`
		PCSSigNames       []string `yaml:"pcs_sig_names"`
		AOTScalarSigNames []string `yaml:"aot_scalar_sig_names"`
		AOTProfSigNames   []string `yaml:"aot_prof_sig_names"`

		EfitTypes           []string `yaml:"efit_types"`
		EfitProfileSigNames []string `yaml:"efit_profile_sig_names"`
		EfitScalarSigNames  []string `yaml:"efit_scalar_sig_names"`

		CerSigNames             []string `yaml:"cer_sig_names"`
		CerType                 string   `yaml:"cer_type" validate:"omitempty,oneof=cerquick cerauto cerfit"`
		CerRealtimeChannels     bool     `yaml:"cer_realtime_channels"`
		CerRotationUnitsOfKrad  bool     `yaml:"cer_rotation_units_of_krad"`
		ThomsonSigNames         []string `yaml:"thomson_sig_names"`
		IncludeThomsonUncertainty bool   `yaml:"include_thomson_uncertainty"`
		IncludeRTThomson        bool     `yaml:"include_rt_thomson"`
		ZipfitSigNames          []string `yaml:"zipfit_sig_names"`
		SQLSigNames             []string `yaml:"sql_sig_names"`

		IncludePsirz        bool `yaml:"include_psirz"`
		IncludeRhovn        bool `yaml:"include_rhovn"`
		IncludeRadiation    bool `yaml:"include_radiation"`
		IncludeFullEchData  bool `yaml:"include_full_ech_data"`
		IncludeFullNbData   bool `yaml:"include_full_nb_data"`
		IncludeGasValveInfo bool `yaml:"include_gas_valve_info"`
		IncludeLogInfo      bool `yaml:"include_log_info"`
		GatherRaw           bool `yaml:"gather_raw"`

		TrialFits        []string `yaml:"trial_fits" validate:"dive,oneof=linear_interp_1d spline_1d mtanh_1d csaps_1d nn_interp_2d linear_interp_2d rbf_interp_2d"`
		CombinedGasTypes []string `yaml:"combined_gas_types"`
	}

	// LogisticsConfig holds everything about where the job runs and
	// where its output goes, as opposed to what it gathers.
	LogisticsConfig struct {
		Output         string `yaml:"output" validate:"required"`
		MaxShotsPerRun int    `yaml:"max_shots_per_run" validate:"min=1"`
		NumProcesses   int    `yaml:"num_processes" validate:"min=1"`
		OverwriteShots bool   `yaml:"overwrite_shots"`
		PrintErrors    bool   `yaml:"print_errors"`
		Debug          bool   `yaml:"debug"`
		DebugSigName   string `yaml:"debug_sig_name,omitempty"`

		MonitorAddr    string `yaml:"monitor_addr,omitempty"`
		FetchURL       string `yaml:"fetch_url" validate:"required,url"`
		CacheAddr      string `yaml:"cache_addr,omitempty"`
		SQLAddr        string `yaml:"sql_addr,omitempty"`
		GCSCredentials string `yaml:"gcs_credentials,omitempty" sanitize:"path_clean" validate:"omitempty,filepath"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Data      DataConfig      `yaml:"data"`
		Logistics LogisticsConfig `yaml:"logistics"`
		Logging   LoggingConfig   `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of the expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates a configuration file from the embedded template and
// returns it as a byte slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// StandardTimes returns the standard time base in ms, [tmin, tmax) with the
// configured step.
func (d *DataConfig) StandardTimes() []float64 {
	var out []float64
	for t := d.TMin; t < d.TMax; t += d.TimeStep {
		out = append(out, t)
	}
	return out
}

// StandardX returns num_x_points nodes evenly spaced on [0, 1].
func (d *DataConfig) StandardX() []float64 {
	out := make([]float64, d.NumX)
	for i := range out {
		out[i] = float64(i) / float64(d.NumX-1)
	}
	return out
}

// ShotList resolves the shot list, reading shots_file when set, and returns
// it sorted in descending order. Newest shots are the most likely to be
// requested so they are archived first.
func (d *DataConfig) ShotList() ([]int, error) {
	shots := append([]int(nil), d.Shots...)
	if d.ShotsFile != "" {
		f, err := os.Open(d.ShotsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open shots file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			n, err := strconv.Atoi(line)
			if err != nil {
				return nil, fmt.Errorf("bad shot number %q in %s: %w", line, d.ShotsFile, err)
			}
			shots = append(shots, n)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(shots)))
	return shots, nil
}
