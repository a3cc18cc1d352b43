// Package store archives the observation windows extracted by the run
// loop so a session can be inspected or exported after the figure closes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/spikeloop/internal/models"
)

// ErrArchiveFull is returned by Append once the archive has reached its
// configured maximum size. Callers may stop archiving and carry on.
var ErrArchiveFull = errors.New("archive is full")

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run describes one invocation of the run loop.
type Run struct {
	ID         int64       `json:"id"`
	Network    string      `json:"network"`
	Mode       models.Mode `json:"mode"`
	StepMs     float64     `json:"step_ms"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    *time.Time  `json:"ended_at,omitempty"`
	Iterations int         `json:"iterations"`
}

// Iteration summarizes one extracted window.
type Iteration struct {
	Index   int     `json:"index"`
	Elapsed float64 `json:"elapsed"`
	Lower   float64 `json:"lower"`
	ViewMin float64 `json:"view_min"`
	ViewMax float64 `json:"view_max"`
	Records int     `json:"records"`
}

// Archive persists runs and the records of each extracted window.
type Archive interface {
	// BeginRun records a new run and returns its id.
	BeginRun(ctx context.Context, run Run) (int64, error)

	// Append stores one iteration and its records. Returns ErrArchiveFull
	// without writing anything once the size limit is reached.
	Append(ctx context.Context, runID int64, it Iteration, spikes []models.Spike, samples []models.Sample) error

	// EndRun stamps the run's end time and iteration count.
	EndRun(ctx context.Context, runID int64, iterations int) error

	// Runs lists runs, newest first.
	Runs(ctx context.Context) ([]Run, error)

	// GetRun returns a single run or ErrRunNotFound.
	GetRun(ctx context.Context, runID int64) (*Run, error)

	// Spikes returns every archived spike of a run in insertion order.
	Spikes(ctx context.Context, runID int64) ([]models.Spike, error)

	// Samples returns every archived sample of a run in insertion order.
	Samples(ctx context.Context, runID int64) ([]models.Sample, error)

	// Iterations returns the iteration summaries of a run in order.
	Iterations(ctx context.Context, runID int64) ([]Iteration, error)

	Close() error
}
