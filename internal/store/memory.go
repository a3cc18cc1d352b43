package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/spikeloop/internal/models"
)

// Approximate in-memory footprint per record, used for the size limit.
const (
	spikeBytes     = 16
	sampleBytes    = 24
	iterationBytes = 48
)

type memoryRun struct {
	run        Run
	iterations []Iteration
	spikes     []models.Spike
	samples    []models.Sample
}

// MemoryArchive implements Archive in memory, bounded by a total size
// limit. Tests use it in place of the SQLite archive.
type MemoryArchive struct {
	mu      sync.RWMutex
	runs    map[int64]*memoryRun
	nextID  int64
	size    int64
	maxSize int64
}

// NewMemoryArchive creates an empty archive bounded by maxSize bytes
// (0 = unbounded).
func NewMemoryArchive(maxSize int64) *MemoryArchive {
	return &MemoryArchive{runs: make(map[int64]*memoryRun), maxSize: maxSize}
}

// Size returns the approximate number of bytes held.
func (m *MemoryArchive) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryArchive) BeginRun(ctx context.Context, run Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	run.ID = m.nextID
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.EndedAt = nil
	run.Iterations = 0
	m.runs[run.ID] = &memoryRun{run: run}
	return run.ID, nil
}

func (m *MemoryArchive) Append(ctx context.Context, runID int64, it Iteration, spikes []models.Spike, samples []models.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	if m.maxSize > 0 && m.size >= m.maxSize {
		return ErrArchiveFull
	}
	for _, existing := range r.iterations {
		if existing.Index == it.Index {
			return fmt.Errorf("iteration %d already archived for run %d", it.Index, runID)
		}
	}

	r.iterations = append(r.iterations, it)
	r.spikes = append(r.spikes, spikes...)
	r.samples = append(r.samples, samples...)
	m.size += iterationBytes + int64(len(spikes))*spikeBytes + int64(len(samples))*sampleBytes
	return nil
}

func (m *MemoryArchive) EndRun(ctx context.Context, runID int64, iterations int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	now := time.Now()
	r.run.EndedAt = &now
	r.run.Iterations = iterations
	return nil
}

func (m *MemoryArchive) Runs(ctx context.Context) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r.run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}

func (m *MemoryArchive) GetRun(ctx context.Context, runID int64) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	run := r.run
	return &run, nil
}

func (m *MemoryArchive) Spikes(ctx context.Context, runID int64) ([]models.Spike, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return append([]models.Spike{}, r.spikes...), nil
}

func (m *MemoryArchive) Samples(ctx context.Context, runID int64) ([]models.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return append([]models.Sample{}, r.samples...), nil
}

func (m *MemoryArchive) Iterations(ctx context.Context, runID int64) ([]Iteration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return append([]Iteration(nil), r.iterations...), nil
}

// Close is a no-op for the in-memory archive.
func (m *MemoryArchive) Close() error { return nil }
