// Package termplot is a render surface drawn in the terminal. Spike
// rasters are a character grid; voltage traces go through asciigraph.
package termplot

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/nvandessel/spikeloop/internal/render"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	// rows and columns taken by the header, axes and help line
	chromeRows = 7
	chromeCols = 10
	spikeMark  = '•'
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	chartStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// Surface is a terminal render surface. Draw calls land on the canvas;
// the bubbletea program repaints from it on every tick.
type Surface struct {
	*render.Canvas
	maxFPS float64
}

// NewSurface creates a terminal surface repainting at most maxFPS times
// per second.
func NewSurface(maxFPS float64) *Surface {
	return &Surface{Canvas: render.NewCanvas(), maxFPS: maxFPS}
}

// Run drives the terminal UI until the user quits or the surface is
// closed. The surface is closed when Run returns.
func (s *Surface) Run(opts ...tea.ProgramOption) error {
	defer s.Close()
	p := tea.NewProgram(NewModel(s.Canvas, s.maxFPS), opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

type tickMsg time.Time

// Model is the bubbletea model painting a canvas.
type Model struct {
	canvas        *render.Canvas
	interval      time.Duration
	width, height int
	snap          render.Snapshot
	quitting      bool
}

// NewModel returns a model repainting canvas at most maxFPS times per second.
func NewModel(canvas *render.Canvas, maxFPS float64) Model {
	if maxFPS <= 0 {
		maxFPS = 20
	}
	return Model{
		canvas:   canvas,
		interval: time.Duration(float64(time.Second) / maxFPS),
		width:    defaultWidth,
		height:   defaultHeight,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles keys, resizes and repaint ticks. Quitting closes the
// canvas, and a canvas closed elsewhere quits the program.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.canvas.Close()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		if !m.canvas.IsOpen() {
			m.quitting = true
			return m, tea.Quit
		}
		m.snap = m.canvas.Snapshot()
		return m, m.tick()
	}
	return m, nil
}

// View renders the current snapshot.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	w := max(m.width-chromeCols, 10)
	h := max(m.height-chromeRows, 4)

	var b strings.Builder
	b.WriteString(headerStyle.Render(m.snap.Figure.Title))
	b.WriteString(labelStyle.Render(fmt.Sprintf("   frame %d", m.snap.Frames)))
	b.WriteString("\n\n")
	b.WriteString(chartStyle.Render(Chart(m.snap, w, h)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(xAxis(m.snap, w)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q/esc: close"))
	return b.String()
}

// Chart draws the snapshot as a w x h text chart: a raster when the
// figure holds scatter series, else the latest line series.
func Chart(snap render.Snapshot, w, h int) string {
	if values := latestLine(snap); values != nil {
		if len(values) < 2 {
			values = append(values, values...)
		}
		return asciigraph.Plot(values,
			asciigraph.Height(h),
			asciigraph.Width(w),
			asciigraph.LowerBound(snap.Y.Min),
			asciigraph.UpperBound(snap.Y.Max),
			asciigraph.Caption(snap.Figure.YLabel))
	}
	return yAxis(snap, Raster(snap, w, h))
}

// latestLine returns the Y values of the newest line series inside the X
// range, or nil when the figure has no line series. Each line series
// already spans the whole window.
func latestLine(snap render.Snapshot) []float64 {
	for i := len(snap.Series) - 1; i >= 0; i-- {
		s := snap.Series[i]
		if s.Style.Kind != render.Line {
			continue
		}
		values := make([]float64, 0, len(s.Points))
		for _, p := range s.Points {
			if snap.X.Contains(p.X) {
				values = append(values, p.Y)
			}
		}
		return values
	}
	return nil
}

// Raster plots every scatter point inside the axis ranges onto a w x h
// grid. Row 0 is the top of the Y range.
func Raster(snap render.Snapshot, w, h int) []string {
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", w))
	}
	for _, s := range snap.Series {
		if s.Style.Kind != render.Scatter {
			continue
		}
		for _, p := range s.Points {
			if !snap.X.Contains(p.X) || !snap.Y.Contains(p.Y) {
				continue
			}
			col := scale(p.X, snap.X, w)
			row := h - 1 - scale(p.Y, snap.Y, h)
			grid[row][col] = spikeMark
		}
	}
	rows := make([]string, h)
	for i, r := range grid {
		rows[i] = string(r)
	}
	return rows
}

// scale maps v in r onto [0, n-1].
func scale(v float64, r render.Range, n int) int {
	span := r.Max - r.Min
	if span <= 0 || n <= 1 {
		return 0
	}
	i := int(math.Round((v - r.Min) / span * float64(n-1)))
	return min(max(i, 0), n-1)
}

func yAxis(snap render.Snapshot, rows []string) string {
	var b strings.Builder
	for i, r := range rows {
		label := ""
		switch i {
		case 0:
			label = fmt.Sprintf("%.0f", snap.Y.Max)
		case len(rows) - 1:
			label = fmt.Sprintf("%.0f", snap.Y.Min)
		}
		fmt.Fprintf(&b, "%7s ┤%s", label, r)
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func xAxis(snap render.Snapshot, w int) string {
	lo := fmt.Sprintf("%.0f", snap.X.Min)
	hi := fmt.Sprintf("%.0f", snap.X.Max)
	gap := max(w-len(lo)-len(hi), 1)
	return fmt.Sprintf("%9s%s%s%s  %s", "", lo, strings.Repeat(" ", gap), hi, snap.Figure.XLabel)
}
