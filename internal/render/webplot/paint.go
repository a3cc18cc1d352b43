package webplot

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/nvandessel/spikeloop/internal/render"
)

// Frame dimensions of the encoded PNG.
const (
	FrameWidth  = 8 * vg.Inch
	FrameHeight = 4 * vg.Inch
)

// Paint renders a canvas snapshot to PNG bytes.
func Paint(snap render.Snapshot) ([]byte, error) {
	p := plot.New()
	p.Title.Text = snap.Figure.Title
	p.X.Label.Text = snap.Figure.XLabel
	p.Y.Label.Text = snap.Figure.YLabel
	p.Add(plotter.NewGrid())

	for i, s := range snap.Series {
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X, xys[j].Y = pt.X, pt.Y
		}
		switch s.Style.Kind {
		case render.Line:
			l, err := plotter.NewLine(xys)
			if err != nil {
				return nil, fmt.Errorf("series %d: %w", i, err)
			}
			l.LineStyle.Width = vg.Points(1)
			l.LineStyle.Color = plotutil.Color(0)
			p.Add(l)
		default:
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("series %d: %w", i, err)
			}
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(1.5)
			sc.GlyphStyle.Color = plotutil.Color(0)
			p.Add(sc)
		}
	}

	// Limits go last: Add widens the axes to fit the data.
	x, y := snap.X, snap.Y
	if x.Max <= x.Min {
		x.Max = x.Min + 1
	}
	if y.Max <= y.Min {
		y.Max = y.Min + 1
	}
	p.X.Min, p.X.Max = x.Min, x.Max
	p.Y.Min, p.Y.Max = y.Min, y.Max

	wt, err := p.WriterTo(FrameWidth, FrameHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
