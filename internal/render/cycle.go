package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/spikeloop/internal/models"
	"github.com/nvandessel/spikeloop/internal/window"
)

// Cycle draws one extracted window per call.
type Cycle struct {
	surface Surface
	mode    models.Mode
	yRange  Range
	pause   time.Duration
	sleep   func(time.Duration)
}

// NewCycle returns a cycle drawing mode on surface with a fixed Y range.
// pause is how long Render yields after each redraw.
func NewCycle(surface Surface, mode models.Mode, yRange Range, pause time.Duration) *Cycle {
	return &Cycle{surface: surface, mode: mode, yRange: yRange, pause: pause, sleep: time.Sleep}
}

// Open creates the figure on the surface.
func (c *Cycle) Open(title string) error {
	if err := c.surface.NewFigure(Figure{Title: title, XLabel: "Time (ms)", YLabel: c.mode.Label()}); err != nil {
		return fmt.Errorf("new figure: %w", err)
	}
	return nil
}

// Render sets the axis limits from the slice bounds, plots the slice,
// redraws and reports whether the surface is still open. The returned
// boolean is the run loop's only termination signal.
func (c *Cycle) Render(s window.Slice) (bool, error) {
	if !c.surface.IsOpen() {
		return false, nil
	}
	x := Range{Min: s.Bounds.ViewMin, Max: s.Bounds.ViewMax}
	if err := c.surface.SetLimits(x, c.yRange); err != nil {
		return closedOr("set limits", err)
	}

	points, style := Points(s)
	if err := c.surface.Plot(points, style); err != nil {
		return closedOr("plot", err)
	}
	if err := c.surface.Redraw(); err != nil {
		return closedOr("redraw", err)
	}
	if c.pause > 0 {
		c.sleep(c.pause)
	}
	return c.surface.IsOpen(), nil
}

// closedOr treats a surface closed mid-cycle as a normal stop.
func closedOr(op string, err error) (bool, error) {
	if errors.Is(err, ErrClosed) {
		return false, nil
	}
	return false, fmt.Errorf("%s: %w", op, err)
}

// Points converts a slice to plot coordinates. Spikes become scatter
// points (time, neuron). Samples become a line (time, value), reversed
// from the newest-first extraction order so it runs forward in time.
func Points(s window.Slice) ([]Point, Style) {
	if s.Mode == models.ModeVoltage {
		points := make([]Point, len(s.Samples))
		for i, smp := range s.Samples {
			points[len(points)-1-i] = Point{X: smp.Time, Y: smp.Value}
		}
		return points, Style{Kind: Line}
	}
	points := make([]Point, len(s.Spikes))
	for i, sp := range s.Spikes {
		points[i] = Point{X: sp.Time, Y: float64(sp.Neuron)}
	}
	return points, Style{Kind: Scatter}
}
