// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/sevlyar/go-daemon"
	"go.uber.org/zap"
)

// Relaunch restarts the job as a detached process covering only the
// pending shots. The acquisition backend takes minutes to come back
// after a crash, so the dying process hands its remaining work to a
// fresh one instead of retrying in place.
//
// args is the command line to re-run, argv[0] first; a shots-file
// option pointing at the pending list is appended. The parent returns
// once the child is spawned.
func Relaunch(args []string, pending []int, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if len(args) == 0 {
		return fmt.Errorf("relaunch needs a command line")
	}

	runID := uuid.New().String()
	shotsFile := filepath.Join(os.TempDir(), "shotarchive-pending-"+runID+".txt")
	f, err := os.Create(shotsFile)
	if err != nil {
		return fmt.Errorf("writing pending shot list: %w", err)
	}
	fmt.Fprintf(f, "# relaunch %v\n", runID)
	for _, s := range pending {
		fmt.Fprintln(f, strconv.Itoa(s))
	}
	if err := f.Close(); err != nil {
		return err
	}

	// A process that was itself reborn still carries the daemon
	// marker; clear it so Reborn spawns a child instead of concluding
	// it already is one.
	os.Unsetenv(daemon.MARK_NAME)

	ctxt := &daemon.Context{
		Args:        append(append([]string(nil), args...), "--shots-file", shotsFile),
		LogFileName: filepath.Join(os.TempDir(), "shotarchive-"+runID+".log"),
	}
	child, err := ctxt.Reborn()
	if err != nil {
		return fmt.Errorf("failed to relaunch: %w", err)
	}
	if child != nil {
		log.Info("relaunched",
			zap.String("run_id", runID),
			zap.Int("pid", child.Pid),
			zap.Int("pending", len(pending)),
			zap.String("shots_file", shotsFile))
	}
	return nil
}

// Daemonize detaches the current process. It returns true in the
// parent, which should exit immediately; the child carries on.
func Daemonize() (bool, error) {
	ctxt := &daemon.Context{}
	child, err := ctxt.Reborn()
	if err != nil {
		return false, err
	}
	return child != nil, nil
}
