package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/injection"
	"github.com/nvandessel/spikeloop/internal/logging"
	"github.com/nvandessel/spikeloop/internal/models"
	"github.com/nvandessel/spikeloop/internal/render"
	"github.com/nvandessel/spikeloop/internal/store"
	"github.com/nvandessel/spikeloop/internal/window"
)

// State is the run loop state.
type State int

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	if s == Stopped {
		return "STOPPED"
	}
	return "RUNNING"
}

// Options wires the collaborators of a Runner.
type Options struct {
	// Scheduler tops up input channels. Nil means the network has no injectors.
	Scheduler *injection.Scheduler

	Extractor window.Extractor
	History   window.History
	Cycle     *render.Cycle

	// WindowSteps is the number of steps visible on the X axis.
	WindowSteps int

	// Archive, when set, receives every extracted window under RunID.
	Archive store.Archive
	RunID   int64

	Logger *slog.Logger
	Trace  *logging.TraceLogger
}

// Result summarizes a finished run.
type Result struct {
	Iterations int
	Elapsed    float64
	Records    int
	Archived   int
}

// Runner is the run loop.
type Runner struct {
	stepper *Stepper
	opts    Options
	logger  *slog.Logger
	state   State
}

// NewRunner validates opts and returns a runner in the Running state.
func NewRunner(stepper *Stepper, opts Options) (*Runner, error) {
	if stepper == nil {
		return nil, errors.New("runner needs a stepper")
	}
	if opts.Extractor == nil || opts.History == nil || opts.Cycle == nil {
		return nil, errors.New("runner needs an extractor, a history and a render cycle")
	}
	if opts.WindowSteps < 1 {
		return nil, fmt.Errorf("window steps must be at least 1, got %d", opts.WindowSteps)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{stepper: stepper, opts: opts, logger: logger}, nil
}

// State returns the current loop state.
func (r *Runner) State() State { return r.state }

// Run executes iterations until the render surface closes or a terminal
// error occurs, then ends the engine. A started step always completes.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	err := r.loop(ctx, &res)
	r.state = Stopped
	if endErr := r.stepper.End(); endErr != nil {
		err = errors.Join(err, endErr)
	}
	res.Elapsed = r.stepper.Clock().Elapsed
	if r.opts.Archive != nil {
		if endErr := r.opts.Archive.EndRun(ctx, r.opts.RunID, res.Archived); endErr != nil {
			r.logger.Warn("failed to close archived run", "run", r.opts.RunID, "error", endErr)
		}
	}
	return res, err
}

func (r *Runner) loop(ctx context.Context, res *Result) error {
	archive := r.opts.Archive
	for r.state == Running {
		clock := r.stepper.Clock()

		if err := r.topUp(clock); err != nil {
			return err
		}

		if err := r.stepper.Advance(); err != nil {
			return err
		}
		clock = r.stepper.Clock()
		r.opts.Trace.Log("step", map[string]any{"elapsed": clock.Elapsed})

		bounds := window.NewBounds(clock.Elapsed, clock.Step, r.opts.WindowSteps)
		slice, err := r.opts.Extractor.Extract(r.opts.History, bounds)
		if err != nil {
			return err
		}
		r.logWindow(ctx, res.Iterations, slice)
		res.Records += slice.Len()

		if archive != nil {
			err := archive.Append(ctx, r.opts.RunID, store.Iteration{
				Index:   res.Iterations,
				Elapsed: clock.Elapsed,
				Lower:   bounds.Lower,
				ViewMin: bounds.ViewMin,
				ViewMax: bounds.ViewMax,
				Records: slice.Len(),
			}, slice.Spikes, ascending(slice.Samples))
			switch {
			case errors.Is(err, store.ErrArchiveFull):
				r.logger.Warn("archive full, archiving disabled", "run", r.opts.RunID, "iteration", res.Iterations)
				archive = nil
			case err != nil:
				return fmt.Errorf("archive iteration %d: %w", res.Iterations, err)
			default:
				res.Archived++
			}
		}

		open, err := r.opts.Cycle.Render(slice)
		res.Iterations++
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if !open {
			r.state = Stopped
			r.logger.Debug("surface closed", "iterations", res.Iterations, "elapsed", clock.Elapsed)
		}
	}
	return nil
}

func (r *Runner) topUp(clock Clock) error {
	if r.opts.Scheduler == nil {
		return nil
	}
	done, err := r.opts.Scheduler.TopUp(clock.Elapsed, clock.Step)
	if err != nil {
		return engine.Fail("set spike times", err)
	}
	for _, t := range done {
		r.logger.Debug("top up", "channel", t.Channel, "spikes", len(t.Times), "last", t.Times[len(t.Times)-1])
		r.opts.Trace.Log("top_up", map[string]any{"channel": t.Channel, "times": t.Times})
	}
	return nil
}

func (r *Runner) logWindow(ctx context.Context, iteration int, s window.Slice) {
	r.logger.Debug("window",
		"iteration", iteration,
		"mode", string(s.Mode),
		"lower", s.Bounds.Lower,
		"view_min", s.Bounds.ViewMin,
		"view_max", s.Bounds.ViewMax,
		"records", s.Len())
	r.opts.Trace.Log("window", map[string]any{
		"iteration": iteration,
		"lower":     s.Bounds.Lower,
		"records":   s.Len(),
	})

	if !r.logger.Enabled(ctx, logging.LevelTrace) {
		return
	}
	for _, sp := range s.Spikes {
		r.logger.Log(ctx, logging.LevelTrace, "spike", "neuron", sp.Neuron, "time", sp.Time)
	}
	for _, smp := range s.Samples {
		r.logger.Log(ctx, logging.LevelTrace, "sample", "neuron", smp.Neuron, "time", smp.Time, "v", smp.Value)
	}
}

// ascending returns a time-ascending copy of newest-first samples.
func ascending(samples []models.Sample) []models.Sample {
	out := slices.Clone(samples)
	slices.Reverse(out)
	return out
}
