// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionml/shotarchive/archive"
	"github.com/fusionml/shotarchive/catalog"
	"github.com/fusionml/shotarchive/config"
	"github.com/fusionml/shotarchive/fetch"
	"github.com/fusionml/shotarchive/shot"
)

// fakeClient serves a tiny fixed signal set and can simulate a
// backend crash on one shot.
type fakeClient struct {
	crashShot int
}

func (c *fakeClient) Fetch(ctx context.Context, shotNum int, req fetch.Request) (*shot.Signal, error) {
	if c.crashShot != 0 && shotNum == c.crashShot {
		return nil, &fetch.BackendError{Request: req.Name, Msg: "Failure to complete operation"}
	}
	switch req.Name {
	case "ip_full":
		return shot.Series([]float64{-10, 40}, []float64{1, 3}), nil
	case "gasA_full":
		return shot.Series([]float64{-10, 40}, []float64{2, 2}), nil
	}
	return nil, &fetch.BackendError{Request: req.Name, Msg: "no data"}
}

func testConfig() *config.Config {
	return &config.Config{
		Data: config.DataConfig{
			Shots:            []int{1, 2},
			TMin:             0,
			TMax:             100,
			TimeStep:         50,
			NumX:             3,
			ScalarSigNames:   []string{"ip"},
			GasCalSigNames:   []string{"gasA"},
			CombinedGasTypes: []string{"D_tot"},
		},
		Logistics: config.LogisticsConfig{
			MaxShotsPerRun: 1,
			NumProcesses:   2,
		},
	}
}

func TestRunnerArchivesShots(t *testing.T) {
	arc := archive.NewMem()
	r := &Runner{
		Cfg:    testConfig(),
		Cat:    catalog.Default(),
		Client: &fakeClient{},
		Arc:    arc,
	}
	require.NoError(t, r.Run(context.Background()))

	shots, err := arc.Shots()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, shots)

	ip := arc.Groups[2]["ip"]
	require.NotNil(t, ip)
	assert.Equal(t, []int{2}, ip.Shape)
	assert.Equal(t, 1.0, ip.Data[0])
	assert.Equal(t, 3.0, ip.Data[1])

	// no gas plumbing info, so the requested total is present but zero
	dtot := arc.Groups[2]["D_tot"]
	require.NotNil(t, dtot)
	assert.Equal(t, []float64{0, 0}, dtot.Data)

	snap := r.Status.Snapshot()
	assert.Equal(t, []int{2, 1}, snap.Completed)
}

func TestRunnerSkipsArchivedShots(t *testing.T) {
	arc := archive.NewMem()
	require.NoError(t, arc.WriteSignal(2, "ip", shot.Scalar(1)))
	require.NoError(t, arc.FinishShot(2))

	r := &Runner{
		Cfg:    testConfig(),
		Cat:    catalog.Default(),
		Client: &fakeClient{},
		Arc:    arc,
	}
	require.NoError(t, r.Run(context.Background()))

	snap := r.Status.Snapshot()
	assert.Equal(t, []int{1}, snap.Completed)
}

func TestRunnerRedoesPartialShots(t *testing.T) {
	arc := archive.NewMem()
	// a killed run left shot 2's group without its completion mark
	require.NoError(t, arc.WriteSignal(2, "ip", shot.Scalar(99)))

	r := &Runner{
		Cfg:    testConfig(),
		Cat:    catalog.Default(),
		Client: &fakeClient{},
		Arc:    arc,
	}
	require.NoError(t, r.Run(context.Background()))

	snap := r.Status.Snapshot()
	assert.Equal(t, []int{2, 1}, snap.Completed)
	assert.True(t, arc.HasShot(2))
	assert.Equal(t, []float64{1, 3}, arc.Groups[2]["ip"].Data)
}

func TestRunnerOverwritesShots(t *testing.T) {
	arc := archive.NewMem()
	require.NoError(t, arc.WriteSignal(2, "stale", shot.Scalar(1)))
	require.NoError(t, arc.FinishShot(2))

	cfg := testConfig()
	cfg.Logistics.OverwriteShots = true
	r := &Runner{
		Cfg:    cfg,
		Cat:    catalog.Default(),
		Client: &fakeClient{},
		Arc:    arc,
	}
	require.NoError(t, r.Run(context.Background()))

	assert.Nil(t, arc.Groups[2]["stale"])
	assert.NotNil(t, arc.Groups[2]["ip"])
}

func TestRunnerReportsCrash(t *testing.T) {
	arc := archive.NewMem()
	r := &Runner{
		Cfg:    testConfig(),
		Cat:    catalog.Default(),
		Client: &fakeClient{crashShot: 2},
		Arc:    arc,
	}
	err := r.Run(context.Background())
	require.Error(t, err)

	var crash *BatchCrash
	require.True(t, errors.As(err, &crash))
	assert.Equal(t, 2, crash.Shot)
	assert.Equal(t, []int{1}, crash.Pending)
	assert.False(t, arc.HasShot(2))
}

func TestMonitorEvents(t *testing.T) {
	status := &Status{}
	status.SetString("state", "running")
	status.Complete(7)

	m := NewMonitor(status, nil)
	sub := m.subscribe()
	defer m.unsubscribe(sub)

	m.Publish(Event{Shot: 7, Signals: 3})
	ev := <-sub
	assert.Equal(t, 7, ev.Shot)
	assert.Equal(t, 3, ev.Signals)

	snap := status.Snapshot()
	assert.Equal(t, "running", snap.StringData["state"])
	assert.Equal(t, []int{7}, snap.Completed)
}
