package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jandubois/smokecheck/internal/report"
)

// Run is one stored battery run.
type Run struct {
	ID              int64
	StartedAt       time.Time
	BaseURL         string
	Passed          bool
	TotalTests      int
	PassedTests     int
	FailedTests     int
	DurationSeconds float64
}

// ProbeRecord is one stored probe result.
type ProbeRecord struct {
	RunID        int64
	StartedAt    time.Time
	Name         string
	Passed       bool
	DurationMs   float64
	ErrorMessage *string
	Details      JSONMap
}

// SaveRun stores r and its results in one transaction and returns the run ID.
func (d *DB) SaveRun(ctx context.Context, r *report.Report) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, base_url, passed, total_tests, passed_tests, failed_tests, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, At(r.Timestamp), r.BaseURL, r.Passed, r.TotalTests, r.PassedTests, r.FailedTests, r.DurationSeconds)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO probe_results (run_id, position, name, passed, duration_ms, error_message, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, result := range r.Results {
		_, err := stmt.ExecContext(ctx, runID, i, result.Name, result.Passed, result.DurationMs, result.ErrorMessage, JSONMap(result.Details))
		if err != nil {
			return 0, fmt.Errorf("insert result %q: %w", result.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, started_at, base_url, passed, total_tests, passed_tests, failed_tests, duration_seconds
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started NullTime
		if err := rows.Scan(&run.ID, &started, &run.BaseURL, &run.Passed, &run.TotalTests, &run.PassedTests, &run.FailedTests, &run.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = started.Time
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunResults returns the results of one run in execution order.
func (d *DB) RunResults(ctx context.Context, runID int64) ([]ProbeRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT pr.run_id, r.started_at, pr.name, pr.passed, pr.duration_ms, pr.error_message, pr.details
		FROM probe_results pr
		JOIN runs r ON r.id = pr.run_id
		WHERE pr.run_id = ?
		ORDER BY pr.position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	return scanRecords(rows)
}

// ProbeTrend returns the last limit results of the named probe, newest first.
func (d *DB) ProbeTrend(ctx context.Context, name string, limit int) ([]ProbeRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT pr.run_id, r.started_at, pr.name, pr.passed, pr.duration_ms, pr.error_message, pr.details
		FROM probe_results pr
		JOIN runs r ON r.id = pr.run_id
		WHERE pr.name = ?
		ORDER BY r.started_at DESC, pr.run_id DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query probe trend: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]ProbeRecord, error) {
	defer rows.Close()

	var records []ProbeRecord
	for rows.Next() {
		var rec ProbeRecord
		var started NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&rec.RunID, &started, &rec.Name, &rec.Passed, &rec.DurationMs, &errMsg, &rec.Details); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		rec.StartedAt = started.Time
		if errMsg.Valid {
			rec.ErrorMessage = &errMsg.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneRuns deletes runs started before cutoff and returns how many were removed.
func (d *DB) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, At(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
