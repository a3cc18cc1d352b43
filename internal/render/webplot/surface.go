package webplot

import (
	"sync"
	"time"

	"github.com/nvandessel/spikeloop/internal/constants"
	"github.com/nvandessel/spikeloop/internal/ratelimit"
	"github.com/nvandessel/spikeloop/internal/render"
)

// Surface is a render surface viewed through a browser. Redraws are
// encoded to PNG at most MaxFPS times per second; the page polls the
// latest frame.
type Surface struct {
	*render.Canvas

	limiter *ratelimit.Limiter
	idle    time.Duration
	nowFunc func() time.Time

	mu       sync.Mutex
	frame    []byte
	seq      int
	lastSeen time.Time // zero until the first viewer request
}

// NewSurface creates a browser surface. maxFPS <= 0 disables throttling.
func NewSurface(maxFPS float64) *Surface {
	if maxFPS <= 0 {
		maxFPS = 1e9
	}
	return &Surface{
		Canvas:  render.NewCanvas(),
		limiter: ratelimit.NewFrameLimiter(maxFPS),
		idle:    constants.ViewerIdleTimeoutSec * time.Second,
		nowFunc: time.Now,
	}
}

// Redraw counts the frame and re-encodes the PNG when the frame budget
// allows. Encoding failures are returned to the caller.
func (s *Surface) Redraw() error {
	if err := s.Canvas.Redraw(); err != nil {
		return err
	}
	if !s.limiter.Allow("frame") {
		return nil
	}
	png, err := Paint(s.Snapshot())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frame = png
	s.seq++
	s.mu.Unlock()
	return nil
}

// IsOpen reports false once the surface was closed, or once a viewer that
// had connected stopped polling for longer than the idle timeout.
func (s *Surface) IsOpen() bool {
	if !s.Canvas.IsOpen() {
		return false
	}
	s.mu.Lock()
	seen := s.lastSeen
	s.mu.Unlock()
	if !seen.IsZero() && s.nowFunc().Sub(seen) > s.idle {
		s.Close()
		return false
	}
	return true
}

// Frame returns the latest encoded frame and its sequence number, and
// marks the viewer as alive. The frame is nil before the first redraw.
func (s *Surface) Frame() ([]byte, int) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.seq
}

func (s *Surface) touch() {
	s.mu.Lock()
	s.lastSeen = s.nowFunc()
	s.mu.Unlock()
}
