// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/fusionml/shotarchive/archive"
	"github.com/fusionml/shotarchive/catalog"
	"github.com/fusionml/shotarchive/config"
	"github.com/fusionml/shotarchive/fetch"
	"github.com/fusionml/shotarchive/job"
	"github.com/fusionml/shotarchive/shotdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:            "shotarch-build",
		Usage:           "gathers fusion experiment shots into a training archive",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Fetches, aligns and archives the configured shots",
				Action: run,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "shots-file", Usage: "process the shots listed in `FILE` instead of the configured ones"},
					&cli.IntFlag{Name: "first-shot", Usage: "process shots from `SHOT` down to --last-shot"},
					&cli.IntFlag{Name: "last-shot", Usage: "lowest `SHOT` of the --first-shot range"},
					&cli.BoolFlag{Name: "daemonize", Aliases: []string{"d"}, Usage: "detach and run in the background"},
					&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "replace shots already in the archive"},
					&cli.StringFlag{Name: "monitor", Usage: "serve progress over HTTP on `ADDR`"},
				},
			},
			{
				Name:   "dumpconfig",
				Usage:  "Dumps either default or actual configuration (YAML)",
				Action: dumpConfig,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				ArgsUsage: "DESTINATION",
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "shotarch-build: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadConfiguration(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("unable to prepare configuration: %w", err)
	}
	applyOverrides(cfg, cmd)

	if cmd.Bool("daemonize") {
		parent, err := job.Daemonize()
		if err != nil {
			return fmt.Errorf("unable to daemonize: %w", err)
		}
		if parent {
			return nil
		}
	}

	log, err := cfg.Logging.Prepare()
	if err != nil {
		return fmt.Errorf("unable to prepare logs: %w", err)
	}
	defer log.Sync()
	undo := zap.RedirectStdLog(log)
	defer undo()

	client, err := fetch.NewClient(cfg.Logistics.FetchURL, cfg.Logistics.CacheAddr, log)
	if err != nil {
		return fmt.Errorf("unable to reach acquisition gateway: %w", err)
	}

	var db *shotdb.DB
	if cfg.Logistics.SQLAddr != "" {
		if db, err = shotdb.Open("sqlserver", cfg.Logistics.SQLAddr, log); err != nil {
			return fmt.Errorf("unable to open shot database: %w", err)
		}
		defer db.Close()
	}

	var credentials string
	if cfg.Logistics.GCSCredentials != "" {
		data, err := os.ReadFile(cfg.Logistics.GCSCredentials)
		if err != nil {
			return fmt.Errorf("unable to read storage credentials: %w", err)
		}
		credentials = string(data)
	}
	arc, err := archive.Open(ctx, cfg.Logistics.Output, credentials)
	if err != nil {
		return fmt.Errorf("unable to open archive %v: %w", cfg.Logistics.Output, err)
	}
	defer func() {
		if arc != nil {
			arc.Close()
		}
	}()

	status := &job.Status{}
	runner := &job.Runner{
		Cfg:    cfg,
		Cat:    catalog.Default(),
		Client: client,
		DB:     db,
		Arc:    arc,
		Log:    log,
		Status: status,
	}
	if cfg.Logistics.MonitorAddr != "" {
		runner.Monitor = job.NewMonitor(status, log)
		go func() {
			if err := runner.Monitor.Serve(cfg.Logistics.MonitorAddr); err != nil {
				log.Warn("monitor stopped", zap.Error(err))
			}
		}()
	}

	err = runner.Run(ctx)
	var crash *job.BatchCrash
	if errors.As(err, &crash) && len(crash.Pending) > 0 {
		// the archive must be closed and uploaded before the
		// relaunched process opens it
		if cerr := arc.Close(); cerr != nil {
			log.Error("failed to close archive before relaunch", zap.Error(cerr))
		}
		arc = nil
		args := []string{os.Args[0], "run"}
		if cmd.String("config") != "" {
			args = append(args, "--config", cmd.String("config"))
		}
		if cmd.Bool("overwrite") {
			args = append(args, "--overwrite")
		}
		if relErr := job.Relaunch(args, crash.Pending, log); relErr != nil {
			return fmt.Errorf("backend crashed and relaunch failed: %w", relErr)
		}
	}
	return err
}

// applyOverrides folds command line flags into the loaded
// configuration. A shots file replaces the configured list entirely,
// it does not extend it; relaunches depend on that.
func applyOverrides(cfg *config.Config, cmd *cli.Command) {
	if f := cmd.String("shots-file"); f != "" {
		cfg.Data.Shots = nil
		cfg.Data.ShotsFile = f
	}
	if first := cmd.Int("first-shot"); first > 0 {
		last := cmd.Int("last-shot")
		if last <= 0 || last > first {
			last = first
		}
		cfg.Data.Shots = nil
		cfg.Data.ShotsFile = ""
		for s := first; s >= last; s-- {
			cfg.Data.Shots = append(cfg.Data.Shots, s)
		}
	}
	if cmd.Bool("overwrite") {
		cfg.Logistics.OverwriteShots = true
	}
	if addr := cmd.String("monitor"); addr != "" {
		cfg.Logistics.MonitorAddr = addr
	}
}

func dumpConfig(ctx context.Context, cmd *cli.Command) error {
	var (
		data []byte
		err  error
	)
	if cmd.Bool("default") {
		data, err = config.Prepare()
	} else {
		var cfg *config.Config
		if cfg, err = config.LoadConfiguration(cmd.String("config")); err == nil {
			data, err = config.Dump(cfg)
		}
	}
	if err != nil {
		return err
	}

	out := os.Stdout
	if fname := cmd.Args().Get(0); fname != "" {
		if out, err = os.Create(fname); err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}
	_, err = out.Write(data)
	return err
}
