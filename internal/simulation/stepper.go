package simulation

import (
	"fmt"

	"github.com/nvandessel/spikeloop/internal/engine"
)

// Clock tracks simulated time. Elapsed is always a whole number of steps.
type Clock struct {
	Elapsed float64 // ms
	Step    float64 // ms
}

// Stepper advances an engine one fixed step at a time and owns the clock.
type Stepper struct {
	sim   engine.Simulator
	step  float64
	steps int64
}

// NewStepper creates a stepper advancing sim by step ms per call.
func NewStepper(sim engine.Simulator, step float64) (*Stepper, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	return &Stepper{sim: sim, step: step}, nil
}

// Advance runs the engine for one step. The clock moves only when the
// engine succeeds; a failure is returned as an engine.Failure and is not
// retried.
func (s *Stepper) Advance() error {
	if err := s.sim.Run(s.step); err != nil {
		return engine.Fail("run", err)
	}
	s.steps++
	return nil
}

// Clock returns the current clock.
func (s *Stepper) Clock() Clock {
	return Clock{Elapsed: float64(s.steps) * s.step, Step: s.step}
}

// End releases the engine.
func (s *Stepper) End() error {
	return engine.Fail("end", s.sim.End())
}
