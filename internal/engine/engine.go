// Package engine defines the interface to a time-stepped spiking-network
// simulator. The run loop only depends on these interfaces; package lif
// provides an in-process implementation.
package engine

import (
	"errors"
	"fmt"

	"github.com/nvandessel/spikeloop/internal/models"
)

// CellType names a neuron model.
type CellType string

const (
	// IFCondExp is a leaky integrate-and-fire neuron with exponentially
	// decaying conductance-based synapses.
	IFCondExp CellType = "IF_cond_exp"

	// IFCurrExp is a leaky integrate-and-fire neuron with exponentially
	// decaying current-based synapses.
	IFCurrExp CellType = "IF_curr_exp"

	// SpikeSourceArray emits spikes at externally supplied times.
	SpikeSourceArray CellType = "SpikeSourceArray"
)

// Receptor selects which synapse type a projection drives.
type Receptor string

const (
	Excitatory Receptor = "excitatory"
	Inhibitory Receptor = "inhibitory"
)

// SetupConfig configures a simulator before any population is created.
type SetupConfig struct {
	Timestep float64 // ms
	MinDelay float64 // ms
	MaxDelay float64 // ms; 0 means unbounded
	Threads  int
	Label    string
}

// CellParams are the neuron constants. Units follow the usual conventions:
// ms, mV, nF, nA, uS.
type CellParams struct {
	TauM      float64 `yaml:"tau_m"`
	TauSynE   float64 `yaml:"tau_syn_E"`
	TauSynI   float64 `yaml:"tau_syn_I"`
	VRest     float64 `yaml:"v_rest"`
	VReset    float64 `yaml:"v_reset"`
	VThresh   float64 `yaml:"v_thresh"`
	Cm        float64 `yaml:"cm"`
	TauRefrac float64 `yaml:"tau_refrac"`
	ERevE     float64 `yaml:"e_rev_E"`
	ERevI     float64 `yaml:"e_rev_I"`
	IOffset   float64 `yaml:"i_offset"`
}

// DefaultCellParams returns the standard integrate-and-fire defaults.
func DefaultCellParams() CellParams {
	return CellParams{
		TauM:      20,
		TauSynE:   5,
		TauSynI:   5,
		VRest:     -65,
		VReset:    -65,
		VThresh:   -50,
		Cm:        1,
		TauRefrac: 0.1,
		ERevE:     0,
		ERevI:     -70,
	}
}

// Simulator is the engine the run loop drives.
type Simulator interface {
	// Setup must be called once before populations are created.
	Setup(cfg SetupConfig) error

	// Population creates a group of size neurons of one cell type.
	Population(size int, cell CellType, params CellParams, label string) (Population, error)

	// Projection connects src to dst using conn, driving the given receptor.
	Projection(src, dst Population, conn Connector, receptor Receptor) (Projection, error)

	// Run simulates forward by exactly duration ms. It is synchronous and
	// always completes the requested step or fails.
	Run(duration float64) error

	// Now returns the engine's current simulation time.
	Now() float64

	// End releases engine resources. No call is valid afterwards.
	End() error
}

// Population is a named group of neurons.
type Population interface {
	Label() string
	Size() int

	// Initialize sets a state variable (only "v" is required) for every neuron.
	Initialize(variable string, init Initializer) error

	// Record enables spike recording for all neurons.
	Record() error

	// RecordV enables voltage recording. With no ids, every neuron is recorded.
	RecordV(ids ...int) error

	// SetSpikeTimes replaces the spike times of a SpikeSourceArray,
	// one slice per neuron. Missing trailing neurons are emptied.
	SetSpikeTimes(times [][]float64) error

	// Spikes returns the full spike history in arrival order.
	Spikes() ([]models.Spike, error)

	// Voltages returns the full voltage history, newest sample first.
	Voltages() ([]models.Sample, error)
}

// Projection is a set of synapses between two populations.
type Projection interface {
	Source() Population
	Target() Population
	Size() int
}

// Connector describes how a projection wires its synapses.
type Connector interface {
	// Connect calls fn for every synapse between a source neuron i and
	// a target neuron j.
	Connect(nSrc, nDst int, fn func(i, j int, weight, delay float64)) error
}

// Initializer supplies the initial value of a state variable per neuron.
type Initializer interface {
	Values(n int) ([]float64, error)
}

// ErrNotSpikeSource is returned by SetSpikeTimes on populations that are
// not spike sources.
var ErrNotSpikeSource = errors.New("population is not a spike source")

// Failure reports an error raised by the engine. Failures are never
// retried: the state of a partially simulated step is not resumable.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("engine %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err as an engine Failure for op. A nil err stays nil.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Op: op, Err: err}
}
