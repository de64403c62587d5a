// Package storage keeps the history of planning runs in a sqlite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix matches more than one run")
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  started_at   TEXT NOT NULL,
  finished_at  TEXT,
  status       TEXT NOT NULL CHECK (status IN ('running','succeeded','failed')),
  years        TEXT NOT NULL,
  solver       TEXT NOT NULL,
  data_source  TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE TABLE IF NOT EXISTS year_results (
  run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  year             INTEGER NOT NULL,
  status           TEXT NOT NULL CHECK (status IN ('ok','failed')),
  stage            TEXT,
  error            TEXT,
  tier             TEXT,
  objective        REAL NOT NULL DEFAULT 0,
  system_lole      REAL NOT NULL DEFAULT 0,
  unserved_energy  REAL NOT NULL DEFAULT 0,
  unit             TEXT,
  warnings         INTEGER NOT NULL DEFAULT 0,
  elapsed_ms       INTEGER NOT NULL DEFAULT 0,
  network_path     TEXT,
  lole_path        TEXT,
  PRIMARY KEY (run_id, year)
);
CREATE TABLE IF NOT EXISTS region_lole (
  run_id           TEXT NOT NULL,
  year             INTEGER NOT NULL,
  region           TEXT NOT NULL,
  lole             REAL NOT NULL,
  events           INTEGER NOT NULL,
  unserved_energy  REAL NOT NULL,
  peak_unserved    REAL NOT NULL,
  PRIMARY KEY (run_id, year, region),
  FOREIGN KEY (run_id, year) REFERENCES year_results(run_id, year) ON DELETE CASCADE
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// BeginRun records a new run in the running state.
func (d *DB) BeginRun(ctx context.Context, r Run) error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", r.ID, err)
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO runs(id, started_at, status, years, solver, data_source) VALUES(?,?,?,?,?,?)`,
		r.ID, formatTime(r.StartedAt), RunRunning, joinYears(r.Years), r.Solver, nullIfEmpty(r.DataSource))
	return err
}

// FinishRun closes a run with its final status.
func (d *DB) FinishRun(ctx context.Context, id, status string, finishedAt time.Time) error {
	if status != RunSucceeded && status != RunFailed {
		return fmt.Errorf("invalid final run status %q", status)
	}
	res, err := d.sql.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`, status, formatTime(finishedAt), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveYear stores a year outcome and its per-region rows in one transaction,
// replacing any earlier result for the same run and year.
func (d *DB) SaveYear(ctx context.Context, y YearRecord, regions []RegionRecord) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM region_lole WHERE run_id = ? AND year = ?`, y.RunID, y.Year); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO year_results(run_id, year, status, stage, error, tier, objective, system_lole, unserved_energy, unit, warnings, elapsed_ms, network_path, lole_path) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		y.RunID, y.Year, y.Status, nullIfEmpty(y.Stage), nullIfEmpty(y.Error), nullIfEmpty(y.Tier),
		y.Objective, y.SystemLOLE, y.UnservedEnergy, nullIfEmpty(y.Unit), y.Warnings, y.Elapsed.Milliseconds(),
		nullIfEmpty(y.NetworkPath), nullIfEmpty(y.LOLEPath))
	if err != nil {
		return err
	}

	for _, r := range regions {
		_, err = tx.ExecContext(ctx, `INSERT INTO region_lole(run_id, year, region, lole, events, unserved_energy, peak_unserved) VALUES(?,?,?,?,?,?,?)`,
			y.RunID, y.Year, r.Region, r.LOLE, r.Events, r.UnservedEnergy, r.PeakUnserved)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const runColumns = "id, started_at, finished_at, status, years, solver, data_source"

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun looks a run up by its full id or a unique prefix of it.
func (d *DB) GetRun(ctx context.Context, idOrPrefix string) (Run, error) {
	if idOrPrefix == "" {
		return Run{}, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id LIKE ? ORDER BY id LIMIT 2", strings.ToLower(idOrPrefix)+"%")
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return found[0], nil
	}
	return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, idOrPrefix)
}

// RunYears returns the year outcomes of a run ordered by year.
func (d *DB) RunYears(ctx context.Context, runID string) ([]YearRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT run_id, year, status, stage, error, tier, objective, system_lole, unserved_energy, unit, warnings, elapsed_ms, network_path, lole_path FROM year_results WHERE run_id = ? ORDER BY year`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []YearRecord
	for rows.Next() {
		var (
			y                                             YearRecord
			stage, errText, tier, unit, netPath, lolePath sql.NullString
			elapsedMs                                     int64
		)
		if err := rows.Scan(&y.RunID, &y.Year, &y.Status, &stage, &errText, &tier, &y.Objective, &y.SystemLOLE, &y.UnservedEnergy, &unit, &y.Warnings, &elapsedMs, &netPath, &lolePath); err != nil {
			return nil, err
		}
		y.Stage = stage.String
		y.Error = errText.String
		y.Tier = tier.String
		y.Unit = unit.String
		y.NetworkPath = netPath.String
		y.LOLEPath = lolePath.String
		y.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, y)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RegionLOLE returns the per-region rows of one year, system row included.
func (d *DB) RegionLOLE(ctx context.Context, runID string, year int) ([]RegionRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT region, lole, events, unserved_energy, peak_unserved FROM region_lole WHERE run_id = ? AND year = ? ORDER BY rowid`, runID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RegionRecord
	for rows.Next() {
		var r RegionRecord
		if err := rows.Scan(&r.Region, &r.LOLE, &r.Events, &r.UnservedEnergy, &r.PeakUnserved); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                 Run
		started, years    string
		finished, dataSrc sql.NullString
	)
	if err := s.Scan(&r.ID, &started, &finished, &r.Status, &years, &r.Solver, &dataSrc); err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	if finished.Valid {
		r.FinishedAt = parseTime(finished.String)
	}
	r.DataSource = dataSrc.String
	r.Years = splitYears(years)
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC3339 and SQLite's CURRENT_TIMESTAMP format.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ",")
}

func splitYears(s string) []int {
	var out []int
	for _, p := range strings.Split(s, ",") {
		if y, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, y)
		}
	}
	return out
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
