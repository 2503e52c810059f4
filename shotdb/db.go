// Copyright 2024 FusionML Collaboration
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package shotdb queries the relational shot database for per-shot
// metadata: run summaries, gas valve assignments and operator log
// entries. It is driver-agnostic; production runs use the mssql
// driver against the site database.
package shotdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fusionml/shotarchive/shot"
)

type DB struct {
	db  *sql.DB
	log *zap.Logger
}

func Open(driver, dsn string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: db, log: log}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// inList formats shot numbers into a SQL IN list. Shot numbers are
// integers under our control, never user text.
func inList(shots []int) string {
	parts := make([]string, len(shots))
	for i, s := range shots {
		parts[i] = strconv.Itoa(s)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// valueSignal converts a scanned SQL value into a signal. NULL becomes
// NaN so that missing metadata still lands in the archive, and
// timestamps become their string form.
func valueSignal(v any) *shot.Signal {
	switch t := v.(type) {
	case nil:
		return shot.Scalar(math.NaN())
	case time.Time:
		return shot.Strings(t.Format("2006-01-02 15:04:05"))
	case []byte:
		return shot.Strings(string(t))
	case string:
		return shot.Strings(t)
	case bool:
		if t {
			return shot.Scalar(1)
		}
		return shot.Scalar(0)
	case int64:
		return shot.Scalar(float64(t))
	case float64:
		return shot.Scalar(t)
	default:
		return shot.Strings(fmt.Sprint(t))
	}
}

// Summaries fetches the configured summary columns for the given
// shots. Signal names carry the "_sql" suffix to keep them apart from
// measured signals of the same name.
func (d *DB) Summaries(ctx context.Context, cols []string, shots []int) (map[int]map[string]*shot.Signal, error) {
	if len(cols) == 0 || len(shots) == 0 {
		return nil, nil
	}
	// more joins can be added here as columns from other tables are needed
	query := fmt.Sprintf(`SELECT summaries.shot,%s
		FROM summaries
		INNER JOIN shots ON summaries.shot=shots.shot
		WHERE summaries.shot in %s`,
		strings.Join(cols, ","), inList(shots))

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]map[string]*shot.Signal)
	for rows.Next() {
		dest := make([]any, len(cols)+1)
		var shotNum int
		dest[0] = &shotNum
		vals := make([]any, len(cols))
		for i := range vals {
			dest[i+1] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		sigs := make(map[string]*shot.Signal, len(cols))
		for i, col := range cols {
			sigs[col+"_sql"] = valueSignal(vals[i])
		}
		out[shotNum] = sigs
	}
	return out, rows.Err()
}

// stringLists collects the named string columns per shot, in row
// order, for tables with many rows per shot.
func (d *DB) stringLists(ctx context.Context, table string, cols []string, shots []int) (map[int]map[string]*shot.Signal, error) {
	if len(shots) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT shot,%s FROM %s WHERE shot in %s`,
		strings.Join(cols, ","), table, inList(shots))

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := make(map[int]map[string][]string)
	for _, s := range shots {
		lists[s] = make(map[string][]string, len(cols))
	}
	for rows.Next() {
		dest := make([]any, len(cols)+1)
		var shotNum int
		dest[0] = &shotNum
		vals := make([]any, len(cols))
		for i := range vals {
			dest[i+1] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if _, ok := lists[shotNum]; !ok {
			lists[shotNum] = make(map[string][]string, len(cols))
		}
		for i, col := range cols {
			lists[shotNum][col] = append(lists[shotNum][col], stringValue(vals[i]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[int]map[string]*shot.Signal, len(lists))
	for shotNum, byCol := range lists {
		sigs := make(map[string]*shot.Signal, len(cols))
		for _, col := range cols {
			sigs[col+"_sql"] = shot.Strings(byCol[col]...)
		}
		out[shotNum] = sigs
	}
	return out, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// GasValves returns which gas was plumbed to which valve for each
// shot, as parallel gas_sql/valve_sql string lists.
func (d *DB) GasValves(ctx context.Context, shots []int) (map[int]map[string]*shot.Signal, error) {
	return d.stringLists(ctx, "gasvalves", []string{"gas", "valve"}, shots)
}

// LogEntries returns the operator log for each shot as parallel
// text_sql/topic_sql/username_sql string lists.
func (d *DB) LogEntries(ctx context.Context, shots []int) (map[int]map[string]*shot.Signal, error) {
	return d.stringLists(ctx, "entries", []string{"text", "topic", "username"}, shots)
}
