// Package history persists past scan runs in a local SQLite database so the
// history command can list them later. The store is optional; scans only
// record when history_db is configured.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/example/msf-auditor/internal/report"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Run is one recorded CLI invocation.
type Run struct {
	ID         int64
	Command    string
	Target     string
	Modules    int
	Completed  int
	Failed     int
	ReportPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store wraps the SQLite database holding past runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations in lexical order.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}

	// The CLI is single-threaded; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := db.Exec(string(raw)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// RecordRun inserts a run and its per-module result rows in one
// transaction, returning the new run id.
func (s *Store) RecordRun(ctx context.Context, run Run, results []report.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin record run: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs(command, target, modules, completed, failed, report_path, started_at, finished_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Command, run.Target, run.Modules, run.Completed, run.Failed, run.ReportPath, run.StartedAt.Unix(), run.FinishedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_results(run_id, module, module_type, target, status, execution_time, error, details_json, timestamp)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		details := ""
		if r.Details != nil {
			if data, err := json.Marshal(r.Details); err == nil {
				details = string(data)
			}
		}
		if _, err := stmt.ExecContext(ctx, runID, r.Module, r.ModuleType, r.Target, r.Status, r.ExecutionTime, r.Error, details, r.Timestamp); err != nil {
			return 0, fmt.Errorf("insert result %s: %w", r.Module, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit record run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, target, modules, completed, failed, report_path, started_at, finished_at
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		if err := rows.Scan(&run.ID, &run.Command, &run.Target, &run.Modules, &run.Completed, &run.Failed, &run.ReportPath, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		run.FinishedAt = time.Unix(finished, 0).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunResults returns the result records of one run in insertion order.
func (s *Store) RunResults(ctx context.Context, runID int64) ([]report.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module, module_type, target, status, execution_time, error, details_json, timestamp
		FROM run_results
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run results: %w", err)
	}
	defer rows.Close()

	var results []report.Result
	for rows.Next() {
		var r report.Result
		var details string
		if err := rows.Scan(&r.Module, &r.ModuleType, &r.Target, &r.Status, &r.ExecutionTime, &r.Error, &details, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if details != "" {
			var decoded interface{}
			if err := json.Unmarshal([]byte(details), &decoded); err == nil {
				r.Details = decoded
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
