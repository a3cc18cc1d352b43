package models

import "fmt"

// Mode selects what the run loop observes and draws.
type Mode string

const (
	// ModeSpikes draws a raster of spike events (the default).
	ModeSpikes Mode = "spikes"

	// ModeVoltage draws the membrane-voltage trace of one neuron.
	ModeVoltage Mode = "v"
)

// ParseMode maps a command-line token to a Mode.
// An empty token selects spikes.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeSpikes):
		return ModeSpikes, nil
	case string(ModeVoltage):
		return ModeVoltage, nil
	default:
		return "", fmt.Errorf("unknown mode %q (valid: v, spikes)", s)
	}
}

// Label returns the Y axis label used for this mode.
func (m Mode) Label() string {
	if m == ModeVoltage {
		return "Voltage"
	}
	return "Neuron index"
}
