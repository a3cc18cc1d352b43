package webplot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/spikeloop/internal/render"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func drawFrame(t *testing.T, s *Surface) {
	t.Helper()
	if err := s.NewFigure(render.Figure{Title: "t", XLabel: "Time (ms)", YLabel: "Neuron index"}); err != nil {
		t.Fatalf("NewFigure: %v", err)
	}
	if err := s.SetLimits(render.Range{Min: 0, Max: 500}, render.Range{Min: -1, Max: 101}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	pts := []render.Point{{X: 10, Y: 1}, {X: 20, Y: 2}, {X: 400, Y: 99}}
	if err := s.Plot(pts, render.Style{Kind: render.Scatter}); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if err := s.Redraw(); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
}

func TestPaint_EncodesPNG(t *testing.T) {
	tests := []struct {
		name string
		snap render.Snapshot
	}{
		{"empty", render.Snapshot{}},
		{"scatter", render.Snapshot{
			X: render.Range{Min: 0, Max: 500}, Y: render.Range{Min: -1, Max: 101},
			Series: []render.Series{{Points: []render.Point{{X: 1, Y: 2}}, Style: render.Style{Kind: render.Scatter}}},
		}},
		{"line", render.Snapshot{
			X: render.Range{Min: 0, Max: 500}, Y: render.Range{Min: -65, Max: -45},
			Series: []render.Series{{
				Points: []render.Point{{X: 1, Y: -60}, {X: 2, Y: -59}, {X: 3, Y: -58}},
				Style:  render.Style{Kind: render.Line},
			}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			png, err := Paint(tt.snap)
			if err != nil {
				t.Fatalf("Paint: %v", err)
			}
			if !bytes.HasPrefix(png, pngMagic) {
				t.Error("output is not a PNG")
			}
		})
	}
}

func TestSurface_RedrawThrottled(t *testing.T) {
	now := time.Now()
	s := NewSurface(20)
	s.limiter.SetClock(func() time.Time { return now })

	drawFrame(t, s)
	_, seq := s.Frame()
	if seq != 1 {
		t.Fatalf("seq after first redraw = %d, want 1", seq)
	}

	// A second redraw inside the same 50ms is counted but not encoded.
	if err := s.Redraw(); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if _, seq := s.Frame(); seq != 1 {
		t.Errorf("seq = %d, want 1 (throttled)", seq)
	}
	if got := s.Snapshot().Frames; got != 2 {
		t.Errorf("Frames = %d, want 2", got)
	}

	now = now.Add(50 * time.Millisecond)
	if err := s.Redraw(); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if _, seq := s.Frame(); seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
}

func TestSurface_IdleViewerCloses(t *testing.T) {
	now := time.Now()
	s := NewSurface(0)
	s.nowFunc = func() time.Time { return now }

	// No viewer yet: never idles out.
	now = now.Add(time.Hour)
	if !s.IsOpen() {
		t.Fatal("surface closed before any viewer connected")
	}

	s.Frame()
	now = now.Add(s.idle)
	if !s.IsOpen() {
		t.Fatal("surface closed at exactly the idle timeout")
	}
	now = now.Add(time.Millisecond)
	if s.IsOpen() {
		t.Error("surface still open after viewer went idle")
	}
	if s.Canvas.IsOpen() {
		t.Error("idle close did not close the canvas")
	}
}

func startServer(t *testing.T, s *Surface) (*Server, <-chan error) {
	t.Helper()
	srv := NewServer(s, "localhost:0", "Spikes")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	waitForServer(t, srv, 2*time.Second)
	return srv, errCh
}

func TestServer_ServesHTML(t *testing.T) {
	srv, _ := startServer(t, NewSurface(0))

	resp, err := http.Get(srv.URL())
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<title>Spikes</title>") {
		t.Error("page title not rendered")
	}
}

func TestServer_NotFound(t *testing.T) {
	srv, _ := startServer(t, NewSurface(0))

	resp, err := http.Get("http://" + srv.Addr() + "/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_Frame(t *testing.T) {
	s := NewSurface(0)
	srv, _ := startServer(t, s)

	resp, err := http.Get("http://" + srv.Addr() + "/frame.png")
	if err != nil {
		t.Fatalf("GET /frame.png: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status before first frame = %d, want 204", resp.StatusCode)
	}

	drawFrame(t, s)

	resp, err = http.Get("http://" + srv.Addr() + "/frame.png")
	if err != nil {
		t.Fatalf("GET /frame.png: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, pngMagic) {
		t.Error("body is not a PNG")
	}
}

func TestServer_Status(t *testing.T) {
	s := NewSurface(0)
	srv, _ := startServer(t, s)
	drawFrame(t, s)

	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Open || st.Frames != 1 || st.Seq != 1 {
		t.Errorf("status = %+v, want open with 1 frame", st)
	}
}

func TestServer_CloseEndpoint(t *testing.T) {
	s := NewSurface(0)
	srv, errCh := startServer(t, s)

	resp, err := http.Get("http://" + srv.Addr() + "/api/close")
	if err != nil {
		t.Fatalf("GET /api/close: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
	if !s.IsOpen() {
		t.Fatal("GET must not close the surface")
	}

	resp, err = http.Post("http://"+srv.Addr()+"/api/close", "", nil)
	if err != nil {
		t.Fatalf("POST /api/close: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("POST status = %d, want 204", resp.StatusCode)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after close")
	}
	if s.IsOpen() {
		t.Error("surface still open after POST /api/close")
	}
}

func TestServer_ShutdownOnCancel(t *testing.T) {
	srv := NewServer(NewSurface(0), "localhost:0", "Spikes")
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	waitForServer(t, srv, 2*time.Second)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_BadAddr(t *testing.T) {
	srv := NewServer(NewSurface(0), "localhost:-1", "Spikes")
	if err := srv.ListenAndServe(context.Background()); err == nil {
		t.Error("expected listen error")
	}
	if srv.URL() != "" {
		t.Errorf("URL = %q before start, want empty", srv.URL())
	}
}

func TestOpenBrowser_SupportedPlatform(t *testing.T) {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		// Supported: compilation and platform coverage only.
	default:
		t.Skipf("skipping on unsupported platform: %s", runtime.GOOS)
	}
}

func waitForServer(t *testing.T, srv *Server, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		addr := srv.Addr()
		if addr == "" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start within timeout")
}
