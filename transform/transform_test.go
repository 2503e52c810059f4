// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package transform

import (
	"math"
	"testing"

	"github.com/fusionml/shotarchive/catalog"
	"github.com/fusionml/shotarchive/config"
	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/shot"
)

func testParams(d *config.DataConfig) *Params {
	if d.TMax == 0 {
		d.TMin, d.TMax, d.TimeStep = 0, 100, 50
	}
	if d.NumX == 0 {
		d.NumX = 3
	}
	return NewParams(d, catalog.Default())
}

func runOp(record *shot.Record, op pipeline.Op) {
	in := make(chan *shot.Record, 1)
	in <- record
	close(in)
	for range op.Run(in) {
	}
}

func TestTimebase(t *testing.T) {
	p := testParams(&config.DataConfig{})
	record := shot.NewRecord(1)
	runOp(record, p.Timebase())

	st := record.Get("standard_time")
	if st == nil || st.NT() != 2 || st.Data[1] != 50 {
		t.Fatalf("standard_time = %+v", st)
	}
}

func TestChangeTimebaseScalarAndProfile(t *testing.T) {
	d := &config.DataConfig{
		ScalarSigNames:      []string{"ip"},
		EfitTypes:           []string{"EFIT01"},
		EfitProfileSigNames: []string{"qpsi"},
	}
	p := testParams(d)

	record := shot.NewRecord(1)
	record.Set("ip_full", shot.Series([]float64{10, 20, 60, 70}, []float64{1, 3, 5, 7}))

	// profile constant in time, linear in psi: q(psi) = 1 + psi
	psi := []float64{0, 0.5, 1}
	prof := shot.Matrix([]float64{-10, 40}, [][]float64{{1, 1.5, 2}, {1, 1.5, 2}})
	prof.Dims = map[string][]float64{"psi": psi}
	record.Set("qpsi_EFIT01_full", prof)

	runOp(record, p.ChangeTimebase())

	ip := record.Get("ip")
	if ip == nil || ip.NT() != 2 {
		t.Fatalf("ip = %+v", ip)
	}
	// nothing precedes the first grid point
	if !math.IsNaN(ip.Data[0]) {
		t.Errorf("ip[0] = %v, want NaN", ip.Data[0])
	}
	// window (0, 50]: samples 1, 3 -> mean 2
	if math.Abs(ip.Data[1]-2) > 1e-9 {
		t.Errorf("ip[1] = %v, want 2", ip.Data[1])
	}

	q := record.Get("qpsi_EFIT01")
	if q == nil || len(q.Shape) != 2 || q.Shape[1] != 3 {
		t.Fatalf("qpsi = %+v", q)
	}
	// standard x {0, 0.5, 1} reproduces the line
	row := q.Block(0)
	for i, x := range p.StandardX {
		if math.Abs(row[i]-(1+x)) > 1e-9 {
			t.Errorf("q(%v) = %v, want %v", x, row[i], 1+x)
		}
	}
}

// flatFlux installs a flux map whose normalized value equals the
// major radius coordinate, making psi lookups easy to predict.
func flatFlux(record *shot.Record, nt int) {
	rs := []float64{1.0, 1.5, 2.0, 2.5}
	zs := []float64{-1, 0, 1}
	times := make([]float64, nt)
	var data []float64
	for t := range times {
		times[t] = float64(t) * 50
		for range zs {
			for ri := range rs {
				// psi = (r - 1) / 2 in [0, 0.75]
				data = append(data, (rs[ri]-1)/2)
			}
		}
	}
	sig := &shot.Signal{
		Data:  data,
		Shape: []int{nt, len(zs), len(rs)},
		Times: times,
		Dims:  map[string][]float64{"r": rs, "z": zs},
	}
	record.Set("psirz_full", sig)
	record.Set("ssimag_full", shot.Series(times, make([]float64, nt)))
	ones := make([]float64, nt)
	for i := range ones {
		ones[i] = 1
	}
	record.Set("ssibry_full", shot.Series(times, ones))
}

func TestPsinAndThomsonMap(t *testing.T) {
	d := &config.DataConfig{
		ThomsonSigNames:           []string{"temp"},
		IncludeThomsonUncertainty: true,
		TrialFits:                 []string{"linear_interp_1d"},
	}
	p := testParams(d)
	nt := len(p.StandardTimes)

	record := shot.NewRecord(1)
	flatFlux(record, nt)

	// two tangential channels at r = 1.5 and r = 2.0
	positions := []float64{1.5, 2.0}
	times := []float64{-10, 40}
	temp := shot.Matrix(times, [][]float64{{2000, 1000}, {2000, 1000}})
	temp.Dims = map[string][]float64{"position": positions}
	record.Set("thomson_TANGENTIAL_temp_full", temp)
	uncert := shot.Matrix(times, [][]float64{{100, 50}, {100, 50}})
	record.Set("thomson_TANGENTIAL_temp_uncertainty_full", uncert)

	runOp(record, p.Psin())
	runOp(record, p.ThomsonMap())

	psirz := record.Get("psirz")
	if psirz == nil || psirz.NT() != nt {
		t.Fatalf("psirz = %+v", psirz)
	}

	psi := record.Get("thomson_temp_psi_raw_1d")
	if psi == nil {
		t.Fatal("no mapped psi")
	}
	// channel at r=1.5 sits at psi 0.25, r=2.0 at 0.5
	if math.Abs(psi.Block(0)[0]-0.25) > 1e-6 || math.Abs(psi.Block(0)[1]-0.5) > 1e-6 {
		t.Errorf("psi row = %v", psi.Block(0))
	}

	val := record.Get("thomson_temp_raw_1d")
	// mds scale 1000 converts eV to keV
	if math.Abs(val.Block(0)[0]-2) > 1e-9 {
		t.Errorf("value = %v, want 2", val.Block(0)[0])
	}

	if record.Get("thomson_temp_linear_interp_1d") == nil {
		t.Error("trial fit output missing")
	}
}

func TestThomsonZeroBecomesNaN(t *testing.T) {
	d := &config.DataConfig{ThomsonSigNames: []string{"density"}}
	p := testParams(d)
	nt := len(p.StandardTimes)

	record := shot.NewRecord(1)
	flatFlux(record, nt)

	density := shot.Matrix([]float64{-10, 40}, [][]float64{{0, 1e19}, {0, 1e19}})
	density.Dims = map[string][]float64{"position": []float64{1.5, 2.0}}
	record.Set("thomson_TANGENTIAL_density_full", density)

	runOp(record, p.Psin())
	runOp(record, p.ThomsonMap())

	val := record.Get("thomson_density_raw_1d")
	if !math.IsNaN(val.Block(0)[0]) {
		t.Errorf("dead channel = %v, want NaN", val.Block(0)[0])
	}
	// without uncertainty data the weights default to one
	u := record.Get("thomson_density_uncertainty_raw_1d")
	if u.Block(0)[1] != 1 {
		t.Errorf("uncertainty = %v, want 1", u.Block(0)[1])
	}
}

func TestThomsonMissingUncertainty(t *testing.T) {
	d := &config.DataConfig{
		ThomsonSigNames:           []string{"temp"},
		IncludeThomsonUncertainty: true,
	}
	p := testParams(d)
	nt := len(p.StandardTimes)

	record := shot.NewRecord(1)
	flatFlux(record, nt)

	times := []float64{-10, 40}
	tang := shot.Matrix(times, [][]float64{{2000, 1000}, {2000, 1000}})
	tang.Dims = map[string][]float64{"position": []float64{1.5, 2.0}}
	record.Set("thomson_TANGENTIAL_temp_full", tang)
	tangU := shot.Matrix(times, [][]float64{{100, 50}, {100, 50}})
	record.Set("thomson_TANGENTIAL_temp_uncertainty_full", tangU)

	// the core array fetched but its uncertainty did not
	core := shot.Matrix(times, [][]float64{{3000}, {3000}})
	core.Dims = map[string][]float64{"position": []float64{0}}
	record.Set("thomson_CORE_temp_full", core)

	runOp(record, p.Psin())
	runOp(record, p.ThomsonMap())

	if record.Errors["thomson"] == nil {
		t.Fatal("missing uncertainty array should fail the op")
	}
	// no partially aligned output may reach the archive
	if record.Get("thomson_temp_raw_1d") != nil ||
		record.Get("thomson_temp_uncertainty_raw_1d") != nil {
		t.Error("misaligned thomson output was stored")
	}
}

func TestCerMap(t *testing.T) {
	d := &config.DataConfig{
		CerSigNames:            []string{"rot"},
		CerRotationUnitsOfKrad: true,
	}
	p := testParams(d)
	nt := len(p.StandardTimes)

	record := shot.NewRecord(1)
	flatFlux(record, nt)

	times := []float64{-10, 40}
	record.Set("cer_TANGENTIAL_1_R_full", shot.Series(times, []float64{2, 2}))
	record.Set("cer_TANGENTIAL_1_Z_full", shot.Series(times, []float64{0, 0}))
	record.Set("cer_TANGENTIAL_rot_1_full", shot.Series(times, []float64{100, 100}))
	record.Set("cer_TANGENTIAL_rot_1_error_full", shot.Series(times, []float64{0, 1}))

	runOp(record, p.Psin())
	runOp(record, p.CerMap())

	val := record.Get("cer_rot_raw_1d")
	if val == nil {
		t.Fatal("no cer output")
	}
	// 100 km/s at R = 2 m is 50 krad/s
	if math.Abs(val.Block(0)[0]-50) > 1e-9 {
		t.Errorf("rot = %v, want 50", val.Block(0)[0])
	}
	// second slice carries the failed-fit flag
	if !math.IsNaN(val.Block(1)[0]) {
		t.Errorf("flagged sample = %v, want NaN", val.Block(1)[0])
	}

	psi := record.Get("cer_rot_psi_raw_1d")
	if math.Abs(psi.Block(0)[0]-0.5) > 1e-6 {
		t.Errorf("cer psi = %v, want 0.5", psi.Block(0)[0])
	}
}

func TestEchInfo(t *testing.T) {
	d := &config.DataConfig{IncludeFullEchData: true}
	p := testParams(d)

	record := shot.NewRecord(1)
	record.Set("ech_pwr_total_full", shot.Series([]float64{10, 60}, []float64{1, 2}))
	record.Set("ech_num_systems", shot.Scalar(1))
	record.Set("ech_name_1", shot.Strings("leia"))
	record.Set("ech_frequency_1", shot.Scalar(110e9))
	record.Set("ech_R_1", shot.Scalar(2.4))
	record.Set("ech_Z_1", shot.Scalar(0.67))
	record.Set("ech_pwr_LEIA", shot.Series([]float64{10, 60}, []float64{0.5, 0.6}))
	record.Set("ech_aziang_LEIA", shot.Series([]float64{10, 60}, []float64{90, 90}))
	record.Set("ech_polang_LEIA", shot.Series([]float64{10, 60}, []float64{60, 60}))

	runOp(record, p.EchInfo())

	names := record.Get("ech_names")
	if len(names.Text) != 1 || names.Text[0] != "LEIA" {
		t.Errorf("ech_names = %v", names.Text)
	}
	if f := record.Get("ech_frequency"); f.Data[0] != 110e9 {
		t.Errorf("frequency = %v", f.Data)
	}
	pwr := record.Get("ech_pwr")
	if len(pwr.Shape) != 2 || pwr.Shape[0] != 1 || pwr.Shape[1] != 2 {
		t.Errorf("ech_pwr shape = %v", pwr.Shape)
	}
	if record.Get("ech_pwr_total") == nil {
		t.Error("ech_pwr_total missing")
	}
}

func TestNbInfo(t *testing.T) {
	d := &config.DataConfig{IncludeFullNbData: true}
	p := testParams(d)

	record := shot.NewRecord(1)
	record.Set("nb_30L_pinj", shot.Series([]float64{10, 60}, []float64{1e6, 2e6}))
	record.Set("nb_30L_vinj_scalar", shot.Scalar(80))
	record.Set("nb_210_rtan", shot.Scalar(1.15))

	runOp(record, p.NbInfo())

	pinj := record.Get("nb_pinj")
	if pinj.Shape[0] != 1 {
		t.Errorf("nb_pinj rows = %v", pinj.Shape)
	}
	vs := record.Get("nb_vinj_scalar")
	if len(vs.Data) != 8 || vs.Data[0] != 80 || !math.IsNaN(vs.Data[1]) {
		t.Errorf("nb_vinj_scalar = %v", vs.Data)
	}
	if record.Get("nb_210_rtan").ScalarValue() != 1.15 {
		t.Error("nb_210_rtan lost")
	}
	if !math.IsNaN(record.Get("nb_150_tilt").ScalarValue()) {
		t.Error("missing tilt should become NaN")
	}
}

func TestZipfitRho(t *testing.T) {
	d := &config.DataConfig{ZipfitSigNames: []string{"etempfit"}}
	p := testParams(d)

	// profile linear in rhon, constant in time
	prof := shot.Matrix([]float64{-10, 40}, [][]float64{{0, 0.5, 1}, {0, 0.5, 1}})
	prof.Dims = map[string][]float64{"rhon": []float64{0, 0.5, 1}}
	record := shot.NewRecord(1)
	record.Set("zipfit_etempfit_full", prof)

	runOp(record, p.ZipfitRho())

	rho := record.Get("zipfit_etempfit_rho")
	if rho == nil {
		t.Fatal("no zipfit rho output")
	}
	for i, x := range p.StandardX {
		if math.Abs(rho.Block(0)[i]-x) > 1e-9 {
			t.Errorf("rho[%d] = %v, want %v", i, rho.Block(0)[i], x)
		}
	}
	if record.Get("zipfit_etempfit_rhon_basis") == nil {
		t.Error("rhon basis missing for the psi re-base")
	}
}

func TestZipfitPsi(t *testing.T) {
	d := &config.DataConfig{ZipfitSigNames: []string{"etempfit"}}
	p := testParams(d)
	nt := len(p.StandardTimes)

	record := shot.NewRecord(1)

	// rho = sqrt(psi) sampled on the psi grid, constant in time
	psiGrid := []float64{0, 0.25, 1}
	rhoRows := make([][]float64, nt)
	for i := range rhoRows {
		rhoRows[i] = []float64{0, 0.5, 1}
	}
	record.Set("rhovn", shot.Matrix(p.StandardTimes, rhoRows))
	record.Set("rhovn_full", &shot.Signal{
		Dims: map[string][]float64{"psi": psiGrid},
	})

	// profile value equals the rho node it sits on
	rhon := []float64{0, 0.5, 1}
	basisRows := make([][]float64, nt)
	for i := range basisRows {
		basisRows[i] = []float64{0, 0.5, 1}
	}
	record.Set("zipfit_etempfit_rhon_basis", shot.Matrix(p.StandardTimes, basisRows))
	record.Set("zipfit_etempfit_full", &shot.Signal{
		Dims: map[string][]float64{"rhon": rhon},
	})

	runOp(record, p.ZipfitPsi())

	out := record.Get("zipfit_etempfit_psi")
	if out == nil {
		t.Fatal("no zipfit psi output")
	}
	// inverting rho = sqrt(psi) puts the nodes at psi {0, 0.25, 1};
	// linear interpolation between (0.25, 0.5) and (1, 1) gives 2/3
	// at psi 0.5
	want := []float64{0, 2.0 / 3.0, 1}
	row := out.Block(0)
	for i := range want {
		if math.Abs(row[i]-want[i]) > 1e-9 {
			t.Errorf("psi profile[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestKeepNeeded(t *testing.T) {
	d := &config.DataConfig{ScalarSigNames: []string{"ip"}}
	p := testParams(d)

	record := shot.NewRecord(1)
	record.Set("ip", shot.Scalar(1))
	record.Set("ip_full", shot.Scalar(1))
	record.Set("standard_time", shot.Scalar(0))

	runOp(record, p.KeepNeeded())

	if !record.Has("ip") {
		t.Error("needed signal dropped")
	}
	if record.Has("ip_full") || record.Has("standard_time") {
		t.Error("intermediates survived")
	}
}
