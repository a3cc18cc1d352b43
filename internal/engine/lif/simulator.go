// Package lif is an in-process, clock-driven spiking network simulator
// implementing engine.Simulator with leaky integrate-and-fire neurons and
// spike source arrays.
//
// Each call to Run advances every population in lockstep by a fixed
// timestep. Synaptic input travels through a ring buffer sized for the
// longest projection delay, so all updates within a timestep are
// synchronous.
package lif

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/spikeloop/internal/engine"
)

var (
	errNotSetup = errors.New("simulator not set up")
	errEnded    = errors.New("simulator already ended")
)

// Simulator implements engine.Simulator. It is not safe for concurrent use;
// the run loop drives it from a single goroutine.
type Simulator struct {
	cfg     engine.SetupConfig
	isSetup bool
	ended   bool
	built   bool

	step    int64 // completed timesteps
	ringLen int

	pops  []*Population
	projs []*Projection
}

// New creates an empty simulator. Call Setup before anything else.
func New() *Simulator {
	return &Simulator{}
}

// Setup implements engine.Simulator.
func (s *Simulator) Setup(cfg engine.SetupConfig) error {
	if s.ended {
		return engine.Fail("setup", errEnded)
	}
	if s.isSetup {
		return engine.Fail("setup", errors.New("setup called twice"))
	}
	if !(cfg.Timestep > 0) {
		return engine.Fail("setup", fmt.Errorf("timestep must be positive, got %v", cfg.Timestep))
	}
	if cfg.MinDelay < cfg.Timestep {
		cfg.MinDelay = cfg.Timestep
	}
	if cfg.MaxDelay != 0 && cfg.MaxDelay < cfg.MinDelay {
		return engine.Fail("setup", fmt.Errorf("max delay %v below min delay %v", cfg.MaxDelay, cfg.MinDelay))
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	s.cfg = cfg
	s.isSetup = true
	return nil
}

// Population implements engine.Simulator.
func (s *Simulator) Population(size int, cell engine.CellType, params engine.CellParams, label string) (engine.Population, error) {
	if err := s.usable(); err != nil {
		return nil, engine.Fail("population", err)
	}
	if s.built {
		return nil, engine.Fail("population", errors.New("populations must be created before the first run"))
	}
	if size <= 0 {
		return nil, engine.Fail("population", fmt.Errorf("population %q: size must be positive, got %d", label, size))
	}
	switch cell {
	case engine.IFCondExp, engine.IFCurrExp, engine.SpikeSourceArray:
	default:
		return nil, engine.Fail("population", fmt.Errorf("population %q: unsupported cell type %q", label, cell))
	}

	p := newPopulation(s, size, cell, params, label)
	s.pops = append(s.pops, p)
	return p, nil
}

// Projection implements engine.Simulator.
func (s *Simulator) Projection(src, dst engine.Population, conn engine.Connector, receptor engine.Receptor) (engine.Projection, error) {
	if err := s.usable(); err != nil {
		return nil, engine.Fail("projection", err)
	}
	if s.built {
		return nil, engine.Fail("projection", errors.New("projections must be created before the first run"))
	}
	from, ok := src.(*Population)
	if !ok || from.sim != s {
		return nil, engine.Fail("projection", errors.New("source population does not belong to this simulator"))
	}
	to, ok := dst.(*Population)
	if !ok || to.sim != s {
		return nil, engine.Fail("projection", errors.New("target population does not belong to this simulator"))
	}
	if to.cell == engine.SpikeSourceArray {
		return nil, engine.Fail("projection", fmt.Errorf("cannot project onto spike source %q", to.label))
	}
	if receptor != engine.Excitatory && receptor != engine.Inhibitory {
		return nil, engine.Fail("projection", fmt.Errorf("unknown receptor %q", receptor))
	}

	proj := &Projection{src: from, dst: to, receptor: receptor, syn: make([][]synapse, from.size)}
	var cerr error
	err := conn.Connect(from.size, to.size, func(i, j int, weight, delay float64) {
		if cerr != nil {
			return
		}
		steps, err := s.delaySteps(delay)
		if err != nil {
			cerr = err
			return
		}
		proj.syn[i] = append(proj.syn[i], synapse{target: int32(j), weight: float32(weight), delay: int32(steps)})
		proj.n++
	})
	if err == nil {
		err = cerr
	}
	if err != nil {
		return nil, engine.Fail("projection", fmt.Errorf("%s -> %s: %w", from.label, to.label, err))
	}

	from.out = append(from.out, proj)
	s.projs = append(s.projs, proj)
	return proj, nil
}

// delaySteps converts a delay in ms to whole timesteps, enforcing the
// configured delay bounds.
func (s *Simulator) delaySteps(delay float64) (int, error) {
	if delay < s.cfg.MinDelay-1e-9 {
		return 0, fmt.Errorf("delay %v below min delay %v", delay, s.cfg.MinDelay)
	}
	if s.cfg.MaxDelay != 0 && delay > s.cfg.MaxDelay+1e-9 {
		return 0, fmt.Errorf("delay %v above max delay %v", delay, s.cfg.MaxDelay)
	}
	steps := int(math.Round(delay / s.cfg.Timestep))
	if steps < 1 {
		steps = 1
	}
	return steps, nil
}

// Run implements engine.Simulator.
func (s *Simulator) Run(duration float64) error {
	if err := s.usable(); err != nil {
		return engine.Fail("run", err)
	}
	if duration < 0 || math.IsNaN(duration) {
		return engine.Fail("run", fmt.Errorf("duration must be non-negative, got %v", duration))
	}
	ratio := duration / s.cfg.Timestep
	whole := math.Round(ratio)
	if math.Abs(ratio-whole) > 1e-9*math.Max(1, ratio) {
		return engine.Fail("run", fmt.Errorf("duration %v ms is not a whole number of %v ms timesteps", duration, s.cfg.Timestep))
	}
	if !s.built {
		s.build()
	}

	steps := int64(whole)
	for n := int64(0); n < steps; n++ {
		if err := s.advance(); err != nil {
			return engine.Fail("run", err)
		}
	}
	return nil
}

// Now implements engine.Simulator.
func (s *Simulator) Now() float64 {
	return float64(s.step) * s.cfg.Timestep
}

// End implements engine.Simulator.
func (s *Simulator) End() error {
	if s.ended {
		return engine.Fail("end", errEnded)
	}
	s.ended = true
	for _, p := range s.pops {
		p.release()
	}
	s.pops = nil
	s.projs = nil
	return nil
}

func (s *Simulator) usable() error {
	if s.ended {
		return errEnded
	}
	if !s.isSetup {
		return errNotSetup
	}
	return nil
}

// build sizes the input ring buffers once the topology is final.
func (s *Simulator) build() {
	maxDelay := 1
	for _, proj := range s.projs {
		for _, row := range proj.syn {
			for _, syn := range row {
				if int(syn.delay) > maxDelay {
					maxDelay = int(syn.delay)
				}
			}
		}
	}
	s.ringLen = maxDelay + 1
	for _, p := range s.pops {
		p.allocRing(s.ringLen)
	}
	s.built = true
}

// advance performs one timestep: every population integrates its pending
// input, then the spikes of this step are scheduled for delivery.
func (s *Simulator) advance() error {
	t := float64(s.step) * s.cfg.Timestep
	fired := make([][]int, len(s.pops))
	for i, p := range s.pops {
		f, err := p.update(s.step, t, s.cfg.Timestep, s.cfg.Threads)
		if err != nil {
			return fmt.Errorf("population %q at t=%g: %w", p.label, t, err)
		}
		fired[i] = f
	}
	for i, p := range s.pops {
		p.deliver(s.step, fired[i], s.ringLen)
	}
	s.step++
	return nil
}
