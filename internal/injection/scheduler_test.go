package injection

import (
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/spikeloop/internal/spiketrain"
)

// fakeInjector records the last table installed.
type fakeInjector struct {
	label string
	size  int
	table [][]float64
	calls int
	err   error
}

func (f *fakeInjector) Label() string { return f.label }
func (f *fakeInjector) Size() int     { return f.size }
func (f *fakeInjector) SetSpikeTimes(times [][]float64) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.table = times
	return nil
}

func train(t *testing.T, offset, interval float64) *spiketrain.Generator {
	t.Helper()
	g, err := spiketrain.NewGenerator(offset, interval)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func almostEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestTopUp_FirstBatch(t *testing.T) {
	inj := &fakeInjector{label: "fast_injector", size: 10}
	fast := NewChannel("fast", train(t, 18.8, 24), inj)
	s, err := NewScheduler(10, fast)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	done, err := s.TopUp(0, 100)
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if len(done) != 1 || done[0].Channel != "fast" {
		t.Fatalf("expected one top-up for fast, got %+v", done)
	}

	want := []float64{18.8, 42.8, 66.8, 90.8, 114.8, 138.8, 162.8, 186.8, 210.8, 234.8}
	if !almostEqual(fast.Buffer()[0], want) {
		t.Errorf("buffer = %v, want %v", fast.Buffer()[0], want)
	}
	if math.Abs(fast.LastEmitted()-234.8) > 1e-9 {
		t.Errorf("LastEmitted = %v, want 234.8", fast.LastEmitted())
	}

	if len(inj.table) != 10 {
		t.Fatalf("expected table for 10 units, got %d", len(inj.table))
	}
	if !almostEqual(inj.table[0], want) {
		t.Errorf("unit 0 = %v, want %v", inj.table[0], want)
	}
	for i := 1; i < 10; i++ {
		if len(inj.table[i]) != 0 {
			t.Errorf("unit %d should be empty, got %v", i, inj.table[i])
		}
	}
}

func TestTopUp_SkipsWhileFutureSpikesRemain(t *testing.T) {
	inj := &fakeInjector{label: "fast_injector", size: 10}
	fast := NewChannel("fast", train(t, 18.8, 24), inj)
	s, _ := NewScheduler(10, fast)

	if _, err := s.TopUp(0, 100); err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	// 234.8 >= 100 + 100: nothing to do.
	done, err := s.TopUp(100, 100)
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if len(done) != 0 || inj.calls != 1 {
		t.Fatalf("expected no top-up, got %+v (calls %d)", done, inj.calls)
	}

	// 234.8 < 200 + 100: next batch replaces the buffer.
	done, _ = s.TopUp(200, 100)
	if len(done) != 1 {
		t.Fatalf("expected a top-up at 200, got %+v", done)
	}
	buf := fast.Buffer()
	if len(buf) != 1 || len(buf[0]) != 10 {
		t.Fatalf("expected one unit with 10 times, got %v", buf)
	}
	if math.Abs(buf[0][0]-258.8) > 1e-9 {
		t.Errorf("expected replacement batch to start at 258.8, got %v", buf[0][0])
	}
	if inj.calls != 2 {
		t.Errorf("expected 2 installs, got %d", inj.calls)
	}
}

func TestTopUp_ChannelsIndependent(t *testing.T) {
	fastInj := &fakeInjector{label: "fast_injector", size: 10}
	slowInj := &fakeInjector{label: "slow_injector", size: 10}
	fast := NewChannel("fast", train(t, 18.8, 24), fastInj)
	slow := NewChannel("slow", train(t, 31.6, 35.2), slowInj)
	s, _ := NewScheduler(10, fast, slow)

	_, _ = s.TopUp(0, 100)
	if math.Abs(slow.LastEmitted()-(31.6+35.2*9)) > 1e-9 {
		t.Errorf("slow LastEmitted = %v", slow.LastEmitted())
	}

	// At 300: fast (234.8) is due, slow (348.4) is not.
	done, _ := s.TopUp(200, 100)
	if len(done) != 1 || done[0].Channel != "fast" {
		t.Fatalf("expected only fast to top up, got %+v", done)
	}
	if slowInj.calls != 1 {
		t.Errorf("slow should not be touched, calls %d", slowInj.calls)
	}
}

func TestTopUp_FixedBatchMayUnderfill(t *testing.T) {
	inj := &fakeInjector{label: "dense", size: 1}
	c := NewChannel("dense", train(t, 0, 1), inj)
	s, _ := NewScheduler(10, c)

	_, _ = s.TopUp(0, 100)
	if c.LastEmitted() != 9 {
		t.Fatalf("expected a single batch ending at 9, got %v", c.LastEmitted())
	}
	if len(c.Buffer()[0]) != 10 {
		t.Errorf("batch size must stay fixed, got %d", len(c.Buffer()[0]))
	}
}

func TestTopUp_PropagatesInjectorError(t *testing.T) {
	boom := errors.New("boom")
	inj := &fakeInjector{label: "x", size: 1, err: boom}
	s, _ := NewScheduler(10, NewChannel("x", train(t, 1, 1), inj))
	if _, err := s.TopUp(0, 100); !errors.Is(err, boom) {
		t.Fatalf("expected injector error, got %v", err)
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	inj := &fakeInjector{label: "x", size: 2}
	if _, err := NewScheduler(0); err == nil {
		t.Error("expected error for zero batch")
	}
	if _, err := NewScheduler(10, &Channel{Name: "a", Target: inj}); err == nil {
		t.Error("expected error for missing train")
	}
	bad := NewChannel("a", train(t, 1, 1), inj)
	bad.Unit = 2
	if _, err := NewScheduler(10, bad); err == nil {
		t.Error("expected error for unit out of range")
	}
	a := NewChannel("a", train(t, 1, 1), inj)
	b := NewChannel("a", train(t, 1, 1), inj)
	if _, err := NewScheduler(10, a, b); err == nil {
		t.Error("expected error for duplicate channel names")
	}
}

func TestBuffer_Table(t *testing.T) {
	table := Buffer{2: {1, 2}, 5: {3}}.Table(4)
	if len(table) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(table))
	}
	if len(table[2]) != 2 || len(table[0]) != 0 || len(table[3]) != 0 {
		t.Errorf("unexpected table %v", table)
	}
}
