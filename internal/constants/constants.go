// Package constants provides named constants used throughout the spikeloop codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Run loop timing constants. Times are simulation milliseconds.
const (
	// DefaultStepMs is how much simulated time each loop iteration advances.
	DefaultStepMs = 100.0

	// DefaultWindowSteps is the number of steps shown on the X axis (K).
	// The visible range is [max(0, t - K*step), t].
	DefaultWindowSteps = 5

	// DefaultTimestepMs is the integration timestep handed to the engine.
	DefaultTimestepMs = 1.0
)

// Injection constants
const (
	// DefaultBatchSize is how many spike times are drawn from a spike train
	// each time its channel is topped up. It is fixed: a channel whose
	// interval*batch is shorter than a step goes silent for the remainder.
	DefaultBatchSize = 10
)

// Render constants
const (
	// DefaultMaxFPS caps how often a backend re-encodes a frame.
	DefaultMaxFPS = 20.0

	// DefaultPauseMs is the wall-clock pause after each redraw, giving
	// interactive backends time to process input.
	DefaultPauseMs = 1

	// ViewerIdleTimeoutSec is how long a connected browser viewer may stay
	// silent before its surface counts as closed.
	ViewerIdleTimeoutSec = 10

	// DefaultListenAddr lets the OS pick a free port on the loopback interface.
	DefaultListenAddr = "localhost:0"
)

// Archive constants
const (
	// DefaultArchiveMaxSize bounds the observation archive on disk.
	DefaultArchiveMaxSize = "256MB"
)
