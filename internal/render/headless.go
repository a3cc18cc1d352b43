package render

import "log/slog"

// Headless is a surface with no display. It closes itself after a fixed
// number of redraws, or runs until closed when frames is 0.
type Headless struct {
	*Canvas
	frames int
	logger *slog.Logger
}

// NewHeadless creates a headless surface.
func NewHeadless(frames int, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Headless{Canvas: NewCanvas(), frames: frames, logger: logger}
}

// Redraw logs a frame summary and closes the surface once the frame
// budget is spent.
func (h *Headless) Redraw() error {
	if err := h.Canvas.Redraw(); err != nil {
		return err
	}
	snap := h.Snapshot()
	points := 0
	for _, s := range snap.Series {
		points += len(s.Points)
	}
	h.logger.Info("frame",
		"n", snap.Frames,
		"x_min", snap.X.Min,
		"x_max", snap.X.Max,
		"series", len(snap.Series),
		"points", points)

	if h.frames > 0 && snap.Frames >= h.frames {
		return h.Close()
	}
	return nil
}
