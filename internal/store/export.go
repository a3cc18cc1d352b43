package store

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/spikeloop/internal/models"
)

// exportBatchRows is the number of rows per Arrow record batch.
const exportBatchRows = 64 * 1024

// SpikeSchema is the Arrow schema of an exported spike-mode run.
func SpikeSchema(md arrow.Metadata) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "neuron", Type: arrow.PrimitiveTypes.Int32},
		{Name: "time", Type: arrow.PrimitiveTypes.Float64},
	}, &md)
}

// SampleSchema is the Arrow schema of an exported voltage-mode run.
func SampleSchema(md arrow.Metadata) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "neuron", Type: arrow.PrimitiveTypes.Int32},
		{Name: "time", Type: arrow.PrimitiveTypes.Float64},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	}, &md)
}

func runMetadata(run *Run) arrow.Metadata {
	return arrow.NewMetadata(
		[]string{"run", "network", "mode", "step_ms"},
		[]string{strconv.FormatInt(run.ID, 10), run.Network, string(run.Mode), strconv.FormatFloat(run.StepMs, 'g', -1, 64)},
	)
}

// ExportRun writes the records of one run to w as an Arrow IPC file. The
// file footer needs a seekable writer, such as an *os.File.
// Spike-mode runs export (neuron, time); voltage-mode runs export
// (neuron, time, value). It returns the number of rows written.
func ExportRun(ctx context.Context, a Archive, runID int64, w io.WriteSeeker) (int, error) {
	run, err := a.GetRun(ctx, runID)
	if err != nil {
		return 0, err
	}

	mem := memory.NewGoAllocator()
	md := runMetadata(run)

	if run.Mode == models.ModeVoltage {
		samples, err := a.Samples(ctx, runID)
		if err != nil {
			return 0, err
		}
		return writeSamples(w, mem, SampleSchema(md), samples)
	}

	spikes, err := a.Spikes(ctx, runID)
	if err != nil {
		return 0, err
	}
	return writeSpikes(w, mem, SpikeSchema(md), spikes)
}

func writeSpikes(w io.WriteSeeker, mem memory.Allocator, schema *arrow.Schema, spikes []models.Spike) (int, error) {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	neurons := b.Field(0).(*array.Int32Builder)
	times := b.Field(1).(*array.Float64Builder)

	for start := 0; start < len(spikes); start += exportBatchRows {
		end := min(start+exportBatchRows, len(spikes))
		for _, s := range spikes[start:end] {
			neurons.Append(int32(s.Neuron))
			times.Append(s.Time)
		}
		if err := writeRecord(fw, b); err != nil {
			fw.Close()
			return 0, err
		}
	}

	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize arrow file: %w", err)
	}
	return len(spikes), nil
}

func writeSamples(w io.WriteSeeker, mem memory.Allocator, schema *arrow.Schema, samples []models.Sample) (int, error) {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	neurons := b.Field(0).(*array.Int32Builder)
	times := b.Field(1).(*array.Float64Builder)
	values := b.Field(2).(*array.Float64Builder)

	for start := 0; start < len(samples); start += exportBatchRows {
		end := min(start+exportBatchRows, len(samples))
		for _, s := range samples[start:end] {
			neurons.Append(int32(s.Neuron))
			times.Append(s.Time)
			values.Append(s.Value)
		}
		if err := writeRecord(fw, b); err != nil {
			fw.Close()
			return 0, err
		}
	}

	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize arrow file: %w", err)
	}
	return len(samples), nil
}

func writeRecord(fw *ipc.FileWriter, b *array.RecordBuilder) error {
	rec := b.NewRecord()
	defer rec.Release()
	if err := fw.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return nil
}
