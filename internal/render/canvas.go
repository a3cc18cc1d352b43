package render

import (
	"errors"
	"sync"
)

// ErrClosed is returned when drawing on a closed surface.
var ErrClosed = errors.New("render surface closed")

// Canvas is the retained figure state shared by the surface backends.
// It is safe for concurrent use: the run loop draws while a backend
// goroutine reads snapshots.
type Canvas struct {
	mu      sync.Mutex
	fig     Figure
	x, y    Range
	series  []Series
	open    bool
	frames  int
	onClose []func()
}

// NewCanvas returns an open, empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{open: true}
}

// NewFigure resets the canvas to an empty figure.
func (c *Canvas) NewFigure(fig Figure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrClosed
	}
	c.fig = fig
	c.series = nil
	c.frames = 0
	return nil
}

// SetLimits sets the axis ranges and drops every series that lies entirely
// left of the new X range.
func (c *Canvas) SetLimits(x, y Range) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrClosed
	}
	c.x, c.y = x, y
	c.prune()
	return nil
}

func (c *Canvas) prune() {
	kept := c.series[:0]
	for _, s := range c.series {
		if visible(s, c.x) {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(c.series); i++ {
		c.series[i] = Series{}
	}
	c.series = kept
}

func visible(s Series, x Range) bool {
	for _, p := range s.Points {
		if p.X >= x.Min {
			return true
		}
	}
	return false
}

// Plot retains a copy of points as a new series. Empty series are ignored.
func (c *Canvas) Plot(points []Point, style Style) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrClosed
	}
	if len(points) == 0 {
		return nil
	}
	c.series = append(c.series, Series{Points: append([]Point(nil), points...), Style: style})
	return nil
}

// Redraw counts a frame. Backends wrap it to actually paint.
func (c *Canvas) Redraw() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrClosed
	}
	c.frames++
	return nil
}

// IsOpen reports whether the canvas has not been closed.
func (c *Canvas) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Close marks the canvas closed and runs the registered close hooks once.
// Closing twice is a no-op.
func (c *Canvas) Close() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnClose registers fn to run when the canvas is closed.
func (c *Canvas) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// Snapshot is a consistent copy of the canvas for painting.
type Snapshot struct {
	Figure Figure
	X, Y   Range
	Series []Series
	Frames int
}

// Snapshot copies the current figure state.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Series point slices are never mutated after Plot, so sharing is fine.
	series := make([]Series, len(c.series))
	copy(series, c.series)
	return Snapshot{Figure: c.fig, X: c.x, Y: c.y, Series: series, Frames: c.frames}
}
