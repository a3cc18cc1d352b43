package webplot

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Server serves the viewer page and the latest frame of a Surface.
type Server struct {
	surface    *Surface
	listenAddr string
	title      string
	page       *template.Template
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a viewer server for surface. listenAddr of
// "localhost:0" lets the OS pick a port.
func NewServer(surface *Surface, listenAddr, title string) *Server {
	return &Server{
		surface:    surface,
		listenAddr: listenAddr,
		title:      title,
		page:       template.Must(template.ParseFS(templates, "templates/index.html")),
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the viewer page URL, or "" before the server started.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr + "/"
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled or the surface is closed. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/frame.png", s.handleFrame)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/close", s.handleClose)

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.surface.OnClose(cancel)
	if !s.surface.Canvas.IsOpen() {
		cancel()
	}

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

type pageData struct {
	Title string
}

// handleIndex serves the viewer page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, pageData{Title: s.title}); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

// handleFrame serves the latest PNG frame, or 204 before the first one.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	png, seq := s.surface.Frame()
	if png == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.Itoa(seq))
	w.Write(png)
}

// Status is the body of GET /api/status.
type Status struct {
	Open   bool `json:"open"`
	Frames int  `json:"frames"`
	Seq    int  `json:"seq"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, seq := s.surface.Frame()
	st := Status{
		Open:   s.surface.IsOpen(),
		Frames: s.surface.Snapshot().Frames,
		Seq:    seq,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// handleClose closes the surface, which stops the run loop.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	// Close after the response so shutdown does not cut it off.
	go s.surface.Close()
}
