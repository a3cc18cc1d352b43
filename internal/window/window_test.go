package window

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/models"
)

type fakeHistory struct {
	spikes  []models.Spike
	samples []models.Sample
	err     error
}

func (f fakeHistory) Spikes() ([]models.Spike, error)    { return f.spikes, f.err }
func (f fakeHistory) Voltages() ([]models.Sample, error) { return f.samples, f.err }

func TestNewBounds(t *testing.T) {
	tests := []struct {
		name    string
		elapsed float64
		want    Bounds
	}{
		{"first window clamps at zero", 100, Bounds{Lower: 0, ViewMin: 0, ViewMax: 100}},
		{"still clamped", 400, Bounds{Lower: 300, ViewMin: 0, ViewMax: 400}},
		{"exactly K steps", 500, Bounds{Lower: 400, ViewMin: 0, ViewMax: 500}},
		{"sliding", 700, Bounds{Lower: 600, ViewMin: 200, ViewMax: 700}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewBounds(tt.elapsed, 100, 5)
			if got != tt.want {
				t.Errorf("NewBounds(%v) = %+v, want %+v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestSpikes_StrictlyAfterLowerBound(t *testing.T) {
	history := []models.Spike{{Neuron: 3, Time: 12}, {Neuron: 7, Time: 50}, {Neuron: 3, Time: 105}, {Neuron: 9, Time: 180}}

	got := Spikes(history, 100)
	want := []models.Spike{{Neuron: 3, Time: 105}, {Neuron: 9, Time: 180}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Spikes = %v, want %v", got, want)
	}
}

func TestSpikes_BoundaryExcluded(t *testing.T) {
	history := []models.Spike{{Neuron: 0, Time: 100}, {Neuron: 1, Time: 100.5}}
	got := Spikes(history, 100)
	if len(got) != 1 || got[0].Neuron != 1 {
		t.Errorf("expected only the spike after 100, got %v", got)
	}
}

func TestSpikes_UnsortedHistoryFullyScanned(t *testing.T) {
	// An old spike sits after a new one: a prefix cutoff would lose 190.
	history := []models.Spike{{Neuron: 0, Time: 150}, {Neuron: 1, Time: 20}, {Neuron: 2, Time: 190}}
	got := Spikes(history, 100)
	want := []models.Spike{{Neuron: 0, Time: 150}, {Neuron: 2, Time: 190}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Spikes = %v, want %v", got, want)
	}
}

func TestSpikes_Empty(t *testing.T) {
	if got := Spikes(nil, 0); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
	if got := Spikes([]models.Spike{{Time: 5}}, 100); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestVoltages_WindowAndEarlyExit(t *testing.T) {
	// Newest-first: neuron 1 sampled at 199..190 and earlier.
	var history []models.Sample
	for tm := 199; tm >= 0; tm-- {
		history = append(history, models.Sample{Neuron: 1, Time: float64(tm), Value: -65 + float64(tm)/100})
	}

	got := Voltages(history, 1, 100)
	if len(got) != 100 {
		t.Fatalf("expected 100 samples in [100, 199], got %d", len(got))
	}
	if got[0].Time != 199 || got[len(got)-1].Time != 100 {
		t.Errorf("expected newest-first 199..100, got %v..%v", got[0].Time, got[len(got)-1].Time)
	}
}

func TestVoltages_BoundaryIncluded(t *testing.T) {
	history := []models.Sample{{Neuron: 1, Time: 101}, {Neuron: 1, Time: 100}, {Neuron: 1, Time: 99}}
	got := Voltages(history, 1, 100)
	if len(got) != 2 || got[1].Time != 100 {
		t.Errorf("expected samples at 101 and 100, got %v", got)
	}
}

func TestVoltages_Cases(t *testing.T) {
	tests := []struct {
		name    string
		history []models.Sample
		neuron  int
		t0      float64
		want    []models.Sample
	}{
		{
			name:    "boundary sample kept before other neuron",
			history: []models.Sample{{Neuron: 1, Time: 50, Value: -55}, {Neuron: 1, Time: 40, Value: -58}, {Neuron: 0, Time: 45, Value: -56}},
			neuron:  1,
			t0:      40,
			want:    []models.Sample{{Neuron: 1, Time: 50, Value: -55}, {Neuron: 1, Time: 40, Value: -58}},
		},
		{
			name:    "other neuron only",
			history: []models.Sample{{Neuron: 0, Time: 45, Value: -56}},
			neuron:  1,
			t0:      40,
			want:    []models.Sample{},
		},
		{
			name:    "everything older than lower bound",
			history: []models.Sample{{Neuron: 1, Time: 39, Value: -60}},
			neuron:  1,
			t0:      40,
			want:    []models.Sample{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Voltages(tt.history, tt.neuron, tt.t0)
			if len(got) != len(tt.want) {
				t.Fatalf("Voltages = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestVoltages_StopsAtFirstOldRecordOfNeuron(t *testing.T) {
	// The sample at 150 sits behind an older record of neuron 1, so it is
	// not reached. Other neurons never stop traversal.
	history := []models.Sample{
		{Neuron: 1, Time: 120},
		{Neuron: 2, Time: 10},
		{Neuron: 1, Time: 90},
		{Neuron: 1, Time: 150},
	}
	got := Voltages(history, 1, 100)
	want := []models.Sample{{Neuron: 1, Time: 120}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Voltages = %v, want %v", got, want)
	}
}

func TestVoltages_FiltersOtherNeurons(t *testing.T) {
	history := []models.Sample{
		{Neuron: 0, Time: 110}, {Neuron: 1, Time: 110},
		{Neuron: 0, Time: 105}, {Neuron: 1, Time: 105},
	}
	got := Voltages(history, 0, 100)
	for _, s := range got {
		if s.Neuron != 0 {
			t.Errorf("unexpected neuron %d in output", s.Neuron)
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 samples, got %d", len(got))
	}
}

func TestExtract_Idempotent(t *testing.T) {
	h := fakeHistory{
		spikes:  []models.Spike{{Neuron: 1, Time: 110}, {Neuron: 2, Time: 40}},
		samples: []models.Sample{{Neuron: 5, Time: 110}, {Neuron: 5, Time: 90}},
	}
	b := NewBounds(200, 100, 5)

	for _, mode := range []models.Mode{models.ModeSpikes, models.ModeVoltage} {
		t.Run(string(mode), func(t *testing.T) {
			ex, err := New(mode, 5)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			first, err := ex.Extract(h, b)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			second, _ := ex.Extract(h, b)
			if !reflect.DeepEqual(first, second) {
				t.Errorf("extract not idempotent: %+v vs %+v", first, second)
			}
			if first.Len() != 1 {
				t.Errorf("expected 1 record, got %d", first.Len())
			}
			if first.Mode != mode {
				t.Errorf("slice mode = %q, want %q", first.Mode, mode)
			}
		})
	}
}

func TestExtract_EngineFailure(t *testing.T) {
	boom := errors.New("boom")
	ex, _ := New(models.ModeSpikes, 0)
	_, err := ex.Extract(fakeHistory{err: boom}, Bounds{})

	var f *engine.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected engine.Failure, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("bogus", 0); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := New(models.ModeVoltage, -1); err == nil {
		t.Error("expected error for negative neuron")
	}
}
