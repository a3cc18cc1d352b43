// Package network builds the preset networks the run loop can observe.
//
// A preset creates its populations and projections on an engine, enables
// recording on the observed population for the selected mode, and returns
// the input channels the injection scheduler must keep fed.
package network

import (
	"fmt"
	"sort"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/injection"
	"github.com/nvandessel/spikeloop/internal/models"
	"github.com/nvandessel/spikeloop/internal/render"
)

// Params are the run-time choices a preset honours.
type Params struct {
	Mode     models.Mode
	Threads  int
	Timestep float64 // ms; 0 selects the preset default

	// RecordAllVoltages records every neuron of the observed population
	// in voltage mode, not just the traced one.
	RecordAllVoltages bool
}

// Network is a built preset.
type Network struct {
	Name string

	// Observed is the population whose history is extracted and drawn.
	Observed engine.Population

	// Neuron is the traced neuron in voltage mode.
	Neuron int

	// YRange is the fixed Y axis range for the selected mode.
	YRange render.Range

	// Channels are the spike-train inputs to top up before every step.
	Channels []*injection.Channel

	Populations []engine.Population
	Projections []engine.Projection
}

// Synapses returns the total synapse count.
func (n *Network) Synapses() int {
	total := 0
	for _, p := range n.Projections {
		total += p.Size()
	}
	return total
}

// Builder creates a preset on a fresh simulator.
type Builder func(sim engine.Simulator, p Params) (*Network, error)

var presets = map[string]Builder{
	"chain": Chain,
	"va":    VA,
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the named preset on sim.
func Build(name string, sim engine.Simulator, p Params) (*Network, error) {
	b, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (valid: %v)", name, Names())
	}
	if p.Mode == "" {
		p.Mode = models.ModeSpikes
	}
	if p.Threads < 1 {
		p.Threads = 1
	}
	return b(sim, p)
}

// record enables recording on pop for mode. In voltage mode only neuron
// is recorded unless all is set.
func record(pop engine.Population, mode models.Mode, neuron int, all bool) error {
	if mode == models.ModeVoltage {
		if all {
			return pop.RecordV()
		}
		return pop.RecordV(neuron)
	}
	return pop.Record()
}
