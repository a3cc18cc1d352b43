// Package spiketrain generates deterministic, regularly spaced spike times
// for the input channels that drive a network.
package spiketrain

import "fmt"

// Generator produces the unbounded ascending sequence
// offset, offset+interval, offset+2*interval, ...
//
// A Generator is not rewindable; construct a new one to restart the
// sequence. It is not safe for concurrent use.
type Generator struct {
	offset   float64
	interval float64
	next     int64 // index k of the next value to yield
}

// NewGenerator creates a generator starting at offset with a fixed interval.
// The interval must be positive so that values are strictly increasing.
func NewGenerator(offset, interval float64) (*Generator, error) {
	if !(interval > 0) {
		return nil, fmt.Errorf("spike train interval must be positive, got %v", interval)
	}
	return &Generator{offset: offset, interval: interval}, nil
}

// NextBatch returns the next n values and advances the generator by n.
// Values are computed from the index, not accumulated, so long runs do not
// drift. A non-positive n yields an empty batch and leaves the position unchanged.
func (g *Generator) NextBatch(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	batch := make([]float64, n)
	for i := range batch {
		batch[i] = g.offset + g.interval*float64(g.next+int64(i))
	}
	g.next += int64(n)
	return batch
}

// Position returns how many values have been yielded so far.
func (g *Generator) Position() int64 {
	return g.next
}
