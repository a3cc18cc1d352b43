// Package injection keeps input spike-source populations fed with spike
// times drawn from deterministic spike trains.
package injection

import (
	"fmt"

	"github.com/nvandessel/spikeloop/internal/spiketrain"
)

// Injector is the population a channel feeds. engine.Population satisfies it.
type Injector interface {
	Label() string
	Size() int
	SetSpikeTimes(times [][]float64) error
}

// Buffer maps a unit index within the target population to the spike
// times pending for it. Units without an entry are empty.
type Buffer map[int][]float64

// Table expands the buffer into one spike list per unit of a population
// of the given size.
func (b Buffer) Table(size int) [][]float64 {
	table := make([][]float64, size)
	for i := range table {
		table[i] = []float64{}
	}
	for unit, times := range b {
		if unit >= 0 && unit < size {
			table[unit] = append([]float64(nil), times...)
		}
	}
	return table
}

// Channel is one logical input: a spike train driving a single unit of an
// injector population.
type Channel struct {
	Name   string
	Train  *spiketrain.Generator
	Target Injector
	Unit   int

	lastEmitted float64
	buffer      Buffer
}

// NewChannel creates a channel whose train drives unit 0 of target.
func NewChannel(name string, train *spiketrain.Generator, target Injector) *Channel {
	return &Channel{Name: name, Train: train, Target: target}
}

// LastEmitted returns the last spike time drawn for this channel, 0 before
// the first top-up.
func (c *Channel) LastEmitted() float64 { return c.lastEmitted }

// Buffer returns the spike times most recently installed for this channel.
func (c *Channel) Buffer() Buffer { return c.buffer }

// TopUp records a batch installed into one channel.
type TopUp struct {
	Channel string
	Times   []float64
}

// Scheduler tops channels up before each simulated window.
type Scheduler struct {
	batch    int
	channels []*Channel
}

// NewScheduler creates a scheduler drawing batch values per top-up.
func NewScheduler(batch int, channels ...*Channel) (*Scheduler, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("injection batch size must be positive, got %d", batch)
	}
	seen := make(map[string]bool, len(channels))
	for _, c := range channels {
		if c.Train == nil || c.Target == nil {
			return nil, fmt.Errorf("channel %q needs a spike train and a target", c.Name)
		}
		if c.Unit < 0 || c.Unit >= c.Target.Size() {
			return nil, fmt.Errorf("channel %q: unit %d out of range for %q (size %d)", c.Name, c.Unit, c.Target.Label(), c.Target.Size())
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate channel %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Scheduler{batch: batch, channels: channels}, nil
}

// Channels returns the scheduled channels in order.
func (s *Scheduler) Channels() []*Channel { return s.channels }

// TopUp installs a fresh batch into every channel whose last emitted spike
// falls before the end of the upcoming window [elapsed, elapsed+step).
// The batch replaces the channel's whole buffer; every other unit of the
// target is left empty. Channels that still have future spikes are skipped.
//
// The batch size is fixed. If interval*batch is shorter than the step the
// channel stays silent for the rest of the window.
func (s *Scheduler) TopUp(elapsed, step float64) ([]TopUp, error) {
	var done []TopUp
	for _, c := range s.channels {
		if c.lastEmitted >= elapsed+step {
			continue
		}
		times := c.Train.NextBatch(s.batch)
		buf := Buffer{c.Unit: times}
		if err := c.Target.SetSpikeTimes(buf.Table(c.Target.Size())); err != nil {
			return done, fmt.Errorf("top up %q: %w", c.Name, err)
		}
		c.buffer = buf
		c.lastEmitted = times[len(times)-1]
		done = append(done, TopUp{Channel: c.Name, Times: times})
	}
	return done, nil
}
