package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/spikeloop/internal/models"
)

// SQLiteArchive implements Archive on a single SQLite file.
type SQLiteArchive struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	maxSize int64 // bytes; 0 means unbounded
}

// OpenSQLiteArchive opens or creates the archive at path. maxSize bounds
// the database size in bytes; 0 disables the limit.
func OpenSQLiteArchive(path string, maxSize int64) (*SQLiteArchive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteArchive{db: db, path: path, maxSize: maxSize}, nil
}

// Check verifies the integrity of the database file.
func (a *SQLiteArchive) Check(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ValidateIntegrity(ctx, a.db)
}

// Path returns the database file path.
func (a *SQLiteArchive) Path() string { return a.path }

// Size returns the current database size in bytes.
func (a *SQLiteArchive) Size(ctx context.Context) (int64, error) {
	var pages, pageSize int64
	if err := a.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
		return 0, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := a.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page_size: %w", err)
	}
	return pages * pageSize, nil
}

func (a *SQLiteArchive) BeginRun(ctx context.Context, run Run) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO runs (network, mode, step_ms, started_at) VALUES (?, ?, ?, ?)`,
		run.Network, string(run.Mode), run.StepMs, started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

func (a *SQLiteArchive) Append(ctx context.Context, runID int64, it Iteration, spikes []models.Spike, samples []models.Sample) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxSize > 0 {
		size, err := a.Size(ctx)
		if err != nil {
			return err
		}
		if size >= a.maxSize {
			return ErrArchiveFull
		}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO iterations (run_id, idx, elapsed, lower, view_min, view_max, records)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, it.Index, it.Elapsed, it.Lower, it.ViewMin, it.ViewMax, it.Records); err != nil {
		return fmt.Errorf("failed to insert iteration %d: %w", it.Index, err)
	}

	if len(spikes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO spikes (run_id, iteration, neuron, time) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare spike insert: %w", err)
		}
		defer stmt.Close()
		for _, s := range spikes {
			if _, err := stmt.ExecContext(ctx, runID, it.Index, s.Neuron, s.Time); err != nil {
				return fmt.Errorf("failed to insert spike: %w", err)
			}
		}
	}

	if len(samples) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (run_id, iteration, neuron, time, value) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare sample insert: %w", err)
		}
		defer stmt.Close()
		for _, s := range samples {
			if _, err := stmt.ExecContext(ctx, runID, it.Index, s.Neuron, s.Time, s.Value); err != nil {
				return fmt.Errorf("failed to insert sample: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (a *SQLiteArchive) EndRun(ctx context.Context, runID int64, iterations int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, iterations = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), iterations, runID)
	if err != nil {
		return fmt.Errorf("failed to end run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, network, mode, step_ms, started_at, ended_at, iterations`

func (a *SQLiteArchive) Runs(ctx context.Context) ([]Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (a *SQLiteArchive) GetRun(ctx context.Context, runID int64) (*Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	row := a.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run     Run
		mode    string
		started string
		ended   sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Network, &mode, &run.StepMs, &started, &ended, &run.Iterations); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Mode = models.Mode(mode)
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		run.StartedAt = t
	}
	if ended.Valid {
		if t, err := time.Parse(time.RFC3339Nano, ended.String); err == nil {
			run.EndedAt = &t
		}
	}
	return &run, nil
}

func (a *SQLiteArchive) Spikes(ctx context.Context, runID int64) ([]models.Spike, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT neuron, time FROM spikes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	spikes := []models.Spike{}
	for rows.Next() {
		var s models.Spike
		if err := rows.Scan(&s.Neuron, &s.Time); err != nil {
			return nil, fmt.Errorf("failed to scan spike: %w", err)
		}
		spikes = append(spikes, s)
	}
	return spikes, rows.Err()
}

func (a *SQLiteArchive) Samples(ctx context.Context, runID int64) ([]models.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT neuron, time, value FROM samples WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := []models.Sample{}
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.Neuron, &s.Time, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (a *SQLiteArchive) Iterations(ctx context.Context, runID int64) ([]Iteration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT idx, elapsed, lower, view_min, view_max, records
		 FROM iterations WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var its []Iteration
	for rows.Next() {
		var it Iteration
		if err := rows.Scan(&it.Index, &it.Elapsed, &it.Lower, &it.ViewMin, &it.ViewMax, &it.Records); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		its = append(its, it)
	}
	return its, rows.Err()
}

// Close closes the database.
func (a *SQLiteArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}
