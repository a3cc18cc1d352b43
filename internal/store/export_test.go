package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/spikeloop/internal/models"
)

// exportToFile exports run id to a file under t.TempDir and returns its path.
func exportToFile(t *testing.T, a Archive, id int64) (string, int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.arrow")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	n, err := ExportRun(context.Background(), a, id, f)
	if err != nil {
		t.Fatalf("ExportRun: %v", err)
	}
	return path, n
}

// openExport opens an exported Arrow file for reading.
func openExport(t *testing.T, path string) *ipc.FileReader {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	fr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		t.Fatalf("NewFileReader: %v", err)
	}
	t.Cleanup(func() { fr.Close() })
	return fr
}

func TestExportRun_Spikes(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive(0)
	id, _ := a.BeginRun(ctx, Run{Network: "chain", Mode: models.ModeSpikes, StepMs: 100})
	spikes := []models.Spike{{Neuron: 90, Time: 12}, {Neuron: 95, Time: 13.5}, {Neuron: 99, Time: 140}}
	_ = a.Append(ctx, id, Iteration{Index: 0}, spikes, nil)

	path, n := exportToFile(t, a, id)
	if n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	fr := openExport(t, path)

	md := fr.Schema().Metadata()
	if i := md.FindKey("mode"); i < 0 || md.Values()[i] != "spikes" {
		t.Errorf("missing mode metadata: %v", md)
	}
	if i := md.FindKey("network"); i < 0 || md.Values()[i] != "chain" {
		t.Errorf("missing network metadata: %v", md)
	}

	if fr.NumRecords() != 1 {
		t.Fatalf("records = %d, want 1", fr.NumRecords())
	}
	rec, err := fr.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.NumRows() != 3 || rec.NumCols() != 2 {
		t.Fatalf("shape = %dx%d, want 3x2", rec.NumRows(), rec.NumCols())
	}
	neurons := rec.Column(0).(*array.Int32)
	times := rec.Column(1).(*array.Float64)
	for i, s := range spikes {
		if int(neurons.Value(i)) != s.Neuron || times.Value(i) != s.Time {
			t.Errorf("row %d = (%d, %v), want %v", i, neurons.Value(i), times.Value(i), s)
		}
	}
}

func TestExportRun_Samples(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive(0)
	id, _ := a.BeginRun(ctx, Run{Network: "va", Mode: models.ModeVoltage, StepMs: 100})
	samples := []models.Sample{{Neuron: 5, Time: 1, Value: -60}, {Neuron: 5, Time: 0, Value: -61}}
	_ = a.Append(ctx, id, Iteration{Index: 0}, nil, samples)

	path, _ := exportToFile(t, a, id)
	fr := openExport(t, path)

	if got := fr.Schema().NumFields(); got != 3 {
		t.Fatalf("fields = %d, want 3", got)
	}
	rec, err := fr.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	values := rec.Column(2).(*array.Float64)
	if values.Value(0) != -60 || values.Value(1) != -61 {
		t.Errorf("values = %v", values)
	}
}

func TestExportRun_EmptyRun(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive(0)
	id, _ := a.BeginRun(ctx, Run{Network: "chain", Mode: models.ModeSpikes})

	path, n := exportToFile(t, a, id)
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
	fr := openExport(t, path)
	if fr.NumRecords() != 0 {
		t.Errorf("records = %d, want 0", fr.NumRecords())
	}
}

func TestExportRun_UnknownRun(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "run.arrow"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := ExportRun(context.Background(), NewMemoryArchive(0), 9, f); err == nil {
		t.Error("expected error for unknown run")
	}
}
