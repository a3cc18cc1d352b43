package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/spikeloop/internal/config"
	"github.com/nvandessel/spikeloop/internal/engine/lif"
	"github.com/nvandessel/spikeloop/internal/injection"
	"github.com/nvandessel/spikeloop/internal/logging"
	"github.com/nvandessel/spikeloop/internal/models"
	"github.com/nvandessel/spikeloop/internal/network"
	"github.com/nvandessel/spikeloop/internal/render"
	"github.com/nvandessel/spikeloop/internal/render/termplot"
	"github.com/nvandessel/spikeloop/internal/render/webplot"
	"github.com/nvandessel/spikeloop/internal/simulation"
	"github.com/nvandessel/spikeloop/internal/store"
	"github.com/nvandessel/spikeloop/internal/window"
)

// serverStartTimeout bounds the wait for the web renderer to listen.
const serverStartTimeout = 3 * time.Second

// loadConfig loads the config file named by --config (or the default)
// and applies the command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Lookup("network") != nil {
		if flags.Changed("network") {
			cfg.Network, _ = flags.GetString("network")
		}
		if flags.Changed("renderer") {
			cfg.Renderer, _ = flags.GetString("renderer")
		}
		if flags.Changed("frames") {
			cfg.Render.Frames, _ = flags.GetInt("frames")
		}
		if flags.Changed("archive") {
			cfg.Archive.Path, _ = flags.GetString("archive")
		}
		if flags.Changed("threads") {
			cfg.Engine.Threads, _ = flags.GetInt("threads")
		}
		if noOpen, _ := flags.GetBool("no-open"); noOpen {
			cfg.Render.OpenBrowser = false
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &usageError{msg: err.Error()}
	}
	return cfg, nil
}

// runLoop builds the network, the render surface and the run loop for
// mode and runs until the surface closes.
func runLoop(cmd *cobra.Command, mode models.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	var trace *logging.TraceLogger
	if dir, err := store.EnsureGlobalDir(); err == nil {
		trace = logging.NewTraceLogger(dir, cfg.Logging.Level)
	}
	defer trace.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sim := lif.New()
	nw, err := network.Build(cfg.Network, sim, network.Params{
		Mode:              mode,
		Threads:           cfg.Engine.Threads,
		RecordAllVoltages: cfg.Engine.RecordAllVoltages,
	})
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}
	logger.Info("network ready",
		"network", nw.Name,
		"mode", string(mode),
		"populations", len(nw.Populations),
		"synapses", nw.Synapses(),
		"observed", nw.Observed.Label())

	var sched *injection.Scheduler
	if len(nw.Channels) > 0 {
		sched, err = injection.NewScheduler(cfg.Injection.BatchSize, nw.Channels...)
		if err != nil {
			return err
		}
	}

	extractor, err := window.New(mode, nw.Neuron)
	if err != nil {
		return err
	}
	stepper, err := simulation.NewStepper(sim, cfg.StepMs)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	surface, err := startSurface(gctx, g, cmd, cfg, logger)
	if err != nil {
		return err
	}
	// Closing the surface stops the backend goroutines.
	defer func() {
		surface.Close()
		if err := g.Wait(); err != nil {
			logger.Warn("render backend", "error", err)
		}
	}()

	cycle := render.NewCycle(surface, mode, nw.YRange, cfg.Render.Pause)
	if err := cycle.Open(fmt.Sprintf("%s network: %s", nw.Name, mode.Label())); err != nil {
		return err
	}

	opts := simulation.Options{
		Scheduler:   sched,
		Extractor:   extractor,
		History:     nw.Observed,
		Cycle:       cycle,
		WindowSteps: cfg.WindowSteps,
		Logger:      logger,
		Trace:       trace,
	}
	if cfg.Archive.Path != "" {
		archive, runID, err := openArchive(ctx, cfg, nw.Name, mode)
		if err != nil {
			return err
		}
		defer archive.Close()
		opts.Archive, opts.RunID = archive, runID
		trace.SetRun(runID)
		logger.Info("archiving", "path", archive.Path(), "run", runID)
	}

	runner, err := simulation.NewRunner(stepper, opts)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("interrupted, finishing current step")
			surface.Close()
		case <-gctx.Done():
			// backend failure, or runLoop returned
			surface.Close()
		}
	}()

	res, err := runner.Run(ctx)
	logger.Info("run finished",
		"iterations", res.Iterations,
		"elapsed_ms", res.Elapsed,
		"records", res.Records,
		"archived", res.Archived)
	return err
}

// startSurface creates the configured render surface and starts its
// backend goroutines on g.
func startSurface(ctx context.Context, g *errgroup.Group, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (render.Surface, error) {
	switch cfg.Renderer {
	case "headless":
		return render.NewHeadless(cfg.Render.Frames, logger), nil

	case "term":
		s := termplot.NewSurface(cfg.Render.MaxFPS)
		g.Go(func() error { return s.Run(tea.WithAltScreen(), tea.WithContext(ctx)) })
		return s, nil

	case "web":
		s := webplot.NewSurface(cfg.Render.MaxFPS)
		srv := webplot.NewServer(s, cfg.Render.Addr, "spikeloop")
		g.Go(func() error {
			defer s.Close()
			return srv.ListenAndServe(ctx)
		})

		// Wait for server to start
		deadline := time.Now().Add(serverStartTimeout)
		for srv.Addr() == "" && s.Canvas.IsOpen() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		url := srv.URL()
		if url == "" {
			s.Close()
			if err := g.Wait(); err != nil {
				return nil, err
			}
			return nil, errors.New("web renderer failed to start")
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Viewer at %s\n", url)
		if cfg.Render.OpenBrowser {
			if err := webplot.OpenBrowser(url); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
			}
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
}

// openArchive opens the configured archive and begins a run in it.
func openArchive(ctx context.Context, cfg *config.Config, networkName string, mode models.Mode) (*store.SQLiteArchive, int64, error) {
	maxSize, err := cfg.Archive.MaxSizeBytes()
	if err != nil {
		return nil, 0, err
	}
	archive, err := store.OpenSQLiteArchive(cfg.Archive.Path, maxSize)
	if err != nil {
		return nil, 0, fmt.Errorf("open archive: %w", err)
	}
	runID, err := archive.BeginRun(ctx, store.Run{
		Network:   networkName,
		Mode:      mode,
		StepMs:    cfg.StepMs,
		StartedAt: time.Now(),
	})
	if err != nil {
		archive.Close()
		return nil, 0, fmt.Errorf("begin run: %w", err)
	}
	return archive, runID, nil
}
