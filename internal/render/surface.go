// Package render draws extracted observation windows onto a live plotting
// surface and reports whether the surface is still open.
//
// A Surface is a retained-mode figure: plotted series accumulate across
// redraws until they scroll out of the X range. Backends live in the
// subpackages webplot and termplot; Headless is an in-process surface
// that closes itself after a fixed number of frames.
package render

// Range is a closed axis interval.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Point is one plotted coordinate.
type Point struct {
	X float64
	Y float64
}

// Kind selects how a series is drawn.
type Kind int

const (
	// Scatter draws unconnected markers.
	Scatter Kind = iota
	// Line connects points in order.
	Line
)

func (k Kind) String() string {
	if k == Line {
		return "line"
	}
	return "scatter"
}

// Style describes a series' appearance.
type Style struct {
	Kind Kind
}

// Figure holds the static decoration of a plot.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
}

// Series is one Plot call as retained by a surface.
type Series struct {
	Points []Point
	Style  Style
}

// Surface is a live plotting target.
//
// NewFigure maps to creating a figure and showing it without blocking,
// SetLimits to setting the axis ranges, Plot to adding a series, and
// Redraw to drawing and briefly yielding to the UI. IsOpen reports whether
// the user (or a signal) has closed the figure.
type Surface interface {
	NewFigure(fig Figure) error
	SetLimits(x, y Range) error
	Plot(points []Point, style Style) error
	Redraw() error
	IsOpen() bool
	Close() error
}
