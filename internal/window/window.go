// Package window slices the newest observations out of an engine's
// ever-growing recorded history.
package window

import (
	"fmt"
	"math"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/models"
)

// Bounds describes the time range of one iteration.
//
// Lower is the start of the window just simulated (t - d). Observations
// newer than Lower are extracted. ViewMin and ViewMax are the X axis
// limits of the visible display window.
type Bounds struct {
	Lower   float64
	ViewMin float64
	ViewMax float64
}

// NewBounds computes the bounds for elapsed time t, step d and a display
// window of factor steps.
func NewBounds(elapsed, step float64, factor int) Bounds {
	return Bounds{
		Lower:   elapsed - step,
		ViewMin: math.Max(0, elapsed-float64(factor)*step),
		ViewMax: elapsed,
	}
}

// Slice is the subset of history extracted for one iteration.
// Exactly one of Spikes or Samples is populated, according to Mode.
type Slice struct {
	Mode    models.Mode
	Bounds  Bounds
	Spikes  []models.Spike
	Samples []models.Sample
}

// Len returns the number of records in the slice.
func (s Slice) Len() int {
	if s.Mode == models.ModeVoltage {
		return len(s.Samples)
	}
	return len(s.Spikes)
}

// History is the recorded state an extractor reads.
// engine.Population satisfies it.
type History interface {
	Spikes() ([]models.Spike, error)
	Voltages() ([]models.Sample, error)
}

// Extractor pulls the records newer than b.Lower out of a history.
type Extractor interface {
	Mode() models.Mode
	Extract(h History, b Bounds) (Slice, error)
}

// New returns the extractor for mode. neuron selects the traced neuron in
// voltage mode and is ignored for spikes.
func New(mode models.Mode, neuron int) (Extractor, error) {
	switch mode {
	case models.ModeSpikes:
		return SpikeExtractor{}, nil
	case models.ModeVoltage:
		if neuron < 0 {
			return nil, fmt.Errorf("voltage neuron must be non-negative, got %d", neuron)
		}
		return VoltageExtractor{Neuron: neuron}, nil
	default:
		return nil, fmt.Errorf("no extractor for mode %q", mode)
	}
}

// SpikeExtractor keeps every spike strictly newer than the lower bound.
type SpikeExtractor struct{}

func (SpikeExtractor) Mode() models.Mode { return models.ModeSpikes }

func (SpikeExtractor) Extract(h History, b Bounds) (Slice, error) {
	history, err := h.Spikes()
	if err != nil {
		return Slice{}, engine.Fail("get spikes", err)
	}
	return Slice{Mode: models.ModeSpikes, Bounds: b, Spikes: Spikes(history, b.Lower)}, nil
}

// Spikes returns every record of history with time > t0, in input order.
// The whole history is scanned: spike order is not guaranteed to be
// chronological across neurons.
func Spikes(history []models.Spike, t0 float64) []models.Spike {
	out := []models.Spike{}
	for _, s := range history {
		if s.Time > t0 {
			out = append(out, s)
		}
	}
	return out
}

// VoltageExtractor keeps the samples of one neuron at or after the lower bound.
type VoltageExtractor struct {
	Neuron int
}

func (VoltageExtractor) Mode() models.Mode { return models.ModeVoltage }

func (e VoltageExtractor) Extract(h History, b Bounds) (Slice, error) {
	history, err := h.Voltages()
	if err != nil {
		return Slice{}, engine.Fail("get voltages", err)
	}
	return Slice{Mode: models.ModeVoltage, Bounds: b, Samples: Voltages(history, e.Neuron, b.Lower)}, nil
}

// Voltages returns the samples of neuron with time >= t0 from a
// newest-first history, preserving that order. Traversal stops at the
// first sample of neuron older than t0, so cost is bounded by the window
// rather than the full history.
func Voltages(history []models.Sample, neuron int, t0 float64) []models.Sample {
	out := []models.Sample{}
	for _, s := range history {
		if s.Neuron != neuron {
			continue
		}
		if s.Time < t0 {
			break
		}
		out = append(out, s)
	}
	return out
}
