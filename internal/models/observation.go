// Package models defines the observation records shared by the engine,
// the window extractors, the render cycle and the archive.
package models

import "fmt"

// Spike is a single firing event recorded by the engine.
type Spike struct {
	Neuron int     `json:"neuron"` // index within its population
	Time   float64 `json:"time"`   // ms
}

// Sample is a single membrane-voltage reading recorded by the engine.
type Sample struct {
	Neuron int     `json:"neuron"`
	Time   float64 `json:"time"`  // ms
	Value  float64 `json:"value"` // mV
}

// String implements fmt.Stringer.
func (s Spike) String() string {
	return fmt.Sprintf("(%d, %g)", s.Neuron, s.Time)
}

// String implements fmt.Stringer.
func (s Sample) String() string {
	return fmt.Sprintf("(%d, %g, %g)", s.Neuron, s.Time, s.Value)
}
