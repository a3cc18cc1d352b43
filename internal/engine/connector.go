package engine

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// AllToAll connects every source neuron to every target neuron.
type AllToAll struct {
	Weight float64
	Delay  float64
}

// Connect implements Connector.
func (c AllToAll) Connect(nSrc, nDst int, fn func(i, j int, weight, delay float64)) error {
	for i := 0; i < nSrc; i++ {
		for j := 0; j < nDst; j++ {
			fn(i, j, c.Weight, c.Delay)
		}
	}
	return nil
}

// FixedProbability connects each source/target pair independently with
// probability P. Src makes the draw reproducible; pass the same source to
// several connectors to share one random stream.
type FixedProbability struct {
	P      float64
	Weight float64
	Delay  float64
	Src    rand.Source
}

// Connect implements Connector.
func (c FixedProbability) Connect(nSrc, nDst int, fn func(i, j int, weight, delay float64)) error {
	if c.P < 0 || c.P > 1 {
		return fmt.Errorf("connection probability must be in [0, 1], got %v", c.P)
	}
	draw := distuv.Bernoulli{P: c.P, Src: c.Src}
	for i := 0; i < nSrc; i++ {
		for j := 0; j < nDst; j++ {
			if draw.Rand() == 1 {
				fn(i, j, c.Weight, c.Delay)
			}
		}
	}
	return nil
}

// Value initializes every neuron to the same value.
type Value float64

// Values implements Initializer.
func (v Value) Values(n int) ([]float64, error) {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(v)
	}
	return vals, nil
}

// Uniform initializes each neuron with an independent draw from [Min, Max).
type Uniform struct {
	Min float64
	Max float64
	Src rand.Source
}

// Values implements Initializer.
func (u Uniform) Values(n int) ([]float64, error) {
	if u.Max < u.Min {
		return nil, fmt.Errorf("uniform range is empty: [%v, %v)", u.Min, u.Max)
	}
	dist := distuv.Uniform{Min: u.Min, Max: u.Max, Src: u.Src}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = dist.Rand()
	}
	return vals, nil
}

// NewSource returns a seeded random source for connectors and initializers.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}
