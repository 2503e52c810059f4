// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/fusionml/shotarchive/archive"
	"github.com/fusionml/shotarchive/catalog"
	"github.com/fusionml/shotarchive/config"
	"github.com/fusionml/shotarchive/fetch"
	"github.com/fusionml/shotarchive/pipeline"
	"github.com/fusionml/shotarchive/shot"
	"github.com/fusionml/shotarchive/shotdb"
	"github.com/fusionml/shotarchive/transform"
)

// BatchCrash reports that the acquisition backend crashed while a
// batch was in flight. Pending lists the shots left unarchived, the
// crashed shot excluded so a relaunch cannot loop on it.
type BatchCrash struct {
	Shot    int
	Pending []int
}

func (e *BatchCrash) Error() string {
	return fmt.Sprintf("acquisition backend crashed on shot %v with %v shots pending",
		e.Shot, len(e.Pending))
}

// Runner drives one job: shots move in batches through SQL metadata
// queries, the fetch and transform pipeline, and into the archive.
type Runner struct {
	Cfg    *config.Config
	Cat    *catalog.Catalog
	Client fetch.Client
	DB     *shotdb.DB // nil disables the SQL phases
	Arc    archive.Archive
	Log    *zap.Logger

	Status  *Status
	Monitor *Monitor // optional event feed
}

// Run processes every configured shot not yet in the archive. A
// *BatchCrash return means the backend died mid-run and the remaining
// shots should go to a relaunched process.
func (r *Runner) Run(ctx context.Context) error {
	if r.Log == nil {
		r.Log = zap.NewNop()
	}
	if r.Status == nil {
		r.Status = &Status{}
	}

	shots, err := r.Cfg.Data.ShotList()
	if err != nil {
		return err
	}
	times := r.Cfg.Data.StandardTimes()
	if err := r.Arc.EnsureShared(times, r.Cfg.Data.StandardX()); err != nil {
		return err
	}

	var pending []int
	for _, s := range shots {
		if r.Arc.HasShot(s) {
			if !r.Cfg.Logistics.OverwriteShots {
				r.Log.Info("shot already archived", zap.Int("shot", s))
				continue
			}
			if err := r.Arc.DeleteShot(s); err != nil {
				if errors.Is(err, archive.ErrUnsupported) {
					return fmt.Errorf("cannot overwrite shot %v in place, point the job at a fresh output file: %w", s, err)
				}
				return fmt.Errorf("deleting shot %v: %w", s, err)
			}
		}
		pending = append(pending, s)
	}
	r.Status.SetString("shots pending", strconv.Itoa(len(pending)))
	r.Log.Info("starting run",
		zap.Int("configured", len(shots)),
		zap.Int("pending", len(pending)))

	params := transform.NewParams(&r.Cfg.Data, r.Cat)
	requests := r.Cat.Requests(&r.Cfg.Data)

	batchSize := r.Cfg.Logistics.MaxShotsPerRun
	if batchSize <= 0 {
		batchSize = len(pending)
	}

	done := make(map[int]bool, len(pending))
	for start := 0; start < len(pending); start += batchSize {
		batch := pending[start:min(start+batchSize, len(pending))]
		r.Status.SetString("current batch",
			fmt.Sprintf("%v..%v", batch[0], batch[len(batch)-1]))

		err := r.runBatch(ctx, params, requests, batch, done)
		var crash *BatchCrash
		if errors.As(err, &crash) {
			for _, s := range pending[start:] {
				if !done[s] && s != crash.Shot {
					crash.Pending = append(crash.Pending, s)
				}
			}
			r.Status.SetString("crashed on shot", strconv.Itoa(crash.Shot))
			return crash
		}
		if err != nil {
			return err
		}
	}

	r.Status.SetString("state", "finished")
	return nil
}

// runBatch moves one batch of shots through SQL, fetch, transform and
// archive. Shots are archived in order; done marks each as it lands.
func (r *Runner) runBatch(ctx context.Context, params *transform.Params, requests []fetch.Request, batch []int, done map[int]bool) error {
	sqlSigs, gasInfo, err := r.querySQL(ctx, batch)
	if err != nil {
		return err
	}

	records := make([]*shot.Record, len(batch))
	for i, s := range batch {
		records[i] = shot.NewRecord(s)
	}

	var crash *BatchCrash
	gate := r.crashGate(func(record *shot.Record, signal string) {
		r.Log.Warn("backend crash detected",
			zap.Int("shot", record.Shot), zap.String("signal", signal))
		crash = &BatchCrash{Shot: record.Shot}
	})

	ops := pipeline.OpArray{r.fetchOp(ctx, requests), gate}
	ops = append(ops, params.Ops()...)

	for record := range ops.Run(pipeline.Source(records)) {
		if err := r.archiveShot(params, record, sqlSigs[record.Shot], gasInfo[record.Shot]); err != nil {
			return fmt.Errorf("archiving shot %v: %w", record.Shot, err)
		}
		if err := r.Arc.FinishShot(record.Shot); err != nil {
			return fmt.Errorf("finishing shot %v: %w", record.Shot, err)
		}
		done[record.Shot] = true
		r.Status.Complete(record.Shot)
		r.Status.SetString("last archived shot", strconv.Itoa(record.Shot))
		if r.Monitor != nil {
			r.Monitor.Publish(Event{
				Shot:    record.Shot,
				Signals: len(record.Signals),
				Errors:  len(record.Errors),
			})
		}
		r.Log.Info("archived shot",
			zap.Int("shot", record.Shot),
			zap.Int("signals", len(record.Signals)),
			zap.Int("errors", len(record.Errors)))
	}
	if crash != nil {
		return crash
	}
	return nil
}

// querySQL runs the per-batch metadata queries up front; the results
// are written together with each shot's signals so a shot group in
// the archive is always complete.
func (r *Runner) querySQL(ctx context.Context, batch []int) (sqlSigs, gasInfo map[int]map[string]*shot.Signal, err error) {
	if r.DB == nil {
		return nil, nil, nil
	}

	sqlSigs = make(map[int]map[string]*shot.Signal, len(batch))
	merge := func(m map[int]map[string]*shot.Signal) {
		for s, sigs := range m {
			if sqlSigs[s] == nil {
				sqlSigs[s] = make(map[string]*shot.Signal)
			}
			for name, sig := range sigs {
				sqlSigs[s][name] = sig
			}
		}
	}

	if len(r.Cfg.Data.SQLSigNames) > 0 {
		summaries, err := r.DB.Summaries(ctx, r.Cfg.Data.SQLSigNames, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("summaries query: %w", err)
		}
		merge(summaries)
	}
	if r.Cfg.Data.IncludeGasValveInfo || len(r.Cfg.Data.CombinedGasTypes) > 0 {
		gasInfo, err = r.DB.GasValves(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("gasvalves query: %w", err)
		}
		if r.Cfg.Data.IncludeGasValveInfo {
			merge(gasInfo)
		}
	}
	if r.Cfg.Data.IncludeLogInfo {
		logs, err := r.DB.LogEntries(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("entries query: %w", err)
		}
		merge(logs)
	}
	return sqlSigs, gasInfo, nil
}

// fetchOp pulls every configured raw signal for a shot, with the
// configured number of shots in flight at once. Per-signal failures
// land in the record; a backend crash stops the shot's fetch early.
func (r *Runner) fetchOp(ctx context.Context, requests []fetch.Request) pipeline.Op {
	return pipeline.RecordOp{
		Description: "fetch raw signals",
		Concurrency: r.Cfg.Logistics.NumProcesses,
		Processor: func(record *shot.Record) {
			for _, req := range requests {
				sig, err := r.Client.Fetch(ctx, record.Shot, req)
				if err != nil {
					record.Fail(req.Name, err)
					if fetch.IsBackendCrash(err) {
						return
					}
					continue
				}
				record.Set(req.Name, sig)
			}
		},
	}
}

func crashedSignal(record *shot.Record) string {
	for name, err := range record.Errors {
		if fetch.IsBackendCrash(err) {
			return name
		}
	}
	return ""
}

// crashGate sits between fetch and transform and stops forwarding
// records once one carries the backend crash signature; the rest of
// the batch would only produce the same failure.
func (r *Runner) crashGate(onCrash func(*shot.Record, string)) pipeline.Op {
	return pipeline.StreamOp{
		Description: "stop the batch on a backend crash",
		StreamProcessor: func(in <-chan *shot.Record, out chan<- *shot.Record) {
			crashed := false
			for record := range in {
				if crashed {
					continue
				}
				if signal := crashedSignal(record); signal != "" {
					crashed = true
					onCrash(record, signal)
					continue
				}
				out <- record
			}
		},
	}
}

func (r *Runner) archiveShot(params *transform.Params, record *shot.Record, sqlSigs, gasInfo map[string]*shot.Signal) error {
	if r.Cfg.Logistics.PrintErrors {
		for name, err := range record.Errors {
			r.Log.Warn("signal failed",
				zap.Int("shot", record.Shot),
				zap.String("signal", name),
				zap.Error(err))
		}
	}
	if r.Cfg.Logistics.Debug && r.Cfg.Logistics.DebugSigName != "" {
		name := r.Cfg.Logistics.DebugSigName
		if sig := record.Get(name); sig != nil {
			r.Log.Debug("debug signal",
				zap.Int("shot", record.Shot),
				zap.String("signal", name),
				zap.Ints("shape", sig.Shape))
		} else {
			r.Log.Debug("debug signal absent",
				zap.Int("shot", record.Shot), zap.String("signal", name))
		}
	}

	for _, name := range record.Names() {
		if err := r.Arc.WriteSignal(record.Shot, name, record.Get(name)); err != nil {
			return err
		}
	}
	if err := r.writeSorted(record.Shot, sqlSigs); err != nil {
		return err
	}

	if len(r.Cfg.Data.CombinedGasTypes) > 0 {
		totals := archive.CombineGasTypes(
			r.Cfg.Data.CombinedGasTypes,
			len(params.StandardTimes),
			textList(gasInfo, "gas_sql"),
			textList(gasInfo, "valve_sql"),
			r.gasFlows(record),
		)
		if err := r.writeSorted(record.Shot, totals); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeSorted(shotNum int, sigs map[string]*shot.Signal) error {
	names := make([]string, 0, len(sigs))
	for name := range sigs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Arc.WriteSignal(shotNum, name, sigs[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) gasFlows(record *shot.Record) map[string]*shot.Signal {
	flows := make(map[string]*shot.Signal, len(r.Cfg.Data.GasCalSigNames))
	for _, name := range r.Cfg.Data.GasCalSigNames {
		if sig := record.Get(name); sig != nil {
			flows[name] = sig
		}
	}
	return flows
}

func textList(sigs map[string]*shot.Signal, name string) []string {
	if sig := sigs[name]; sig != nil {
		return sig.Text
	}
	return nil
}
