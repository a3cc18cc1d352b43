// Package config provides unified configuration loading for spikeloop.
// It supports loading from YAML files and environment variables; command
// line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/spikeloop/internal/constants"
	"github.com/nvandessel/spikeloop/internal/logging"
)

// Config contains all spikeloop settings.
type Config struct {
	// Network names the preset to build: "chain" or "va".
	Network string `json:"network" yaml:"network"`

	// StepMs is the simulated time advanced per iteration.
	StepMs float64 `json:"step_ms" yaml:"step_ms"`

	// WindowSteps is the number of steps visible on the X axis.
	WindowSteps int `json:"window_steps" yaml:"window_steps"`

	// Renderer selects the surface backend: "web", "term" or "headless".
	Renderer string `json:"renderer" yaml:"renderer"`

	Injection InjectionConfig `json:"injection" yaml:"injection"`
	Render    RenderConfig    `json:"render" yaml:"render"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// InjectionConfig configures the spike-train top-up.
type InjectionConfig struct {
	// BatchSize is the number of spike times drawn per top-up.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// RenderConfig configures the render surfaces.
type RenderConfig struct {
	// Frames closes the surface after this many redraws. 0 runs until the
	// surface is closed by the user or a signal.
	Frames int `json:"frames" yaml:"frames"`

	// Pause is the wall-clock pause after each redraw.
	Pause time.Duration `json:"pause" yaml:"pause"`

	// Addr is the listen address of the web renderer.
	Addr string `json:"addr" yaml:"addr"`

	// OpenBrowser opens the web renderer's page on start.
	OpenBrowser bool `json:"open_browser" yaml:"open_browser"`

	// MaxFPS caps the web renderer's frame encoding rate.
	MaxFPS float64 `json:"max_fps" yaml:"max_fps"`
}

// EngineConfig configures the in-process simulator.
type EngineConfig struct {
	Threads int `json:"threads" yaml:"threads"`

	// RecordAllVoltages records every neuron's voltage instead of only the
	// traced one. Memory grows with population size times run length.
	RecordAllVoltages bool `json:"record_all_voltages" yaml:"record_all_voltages"`
}

// ArchiveConfig configures the observation archive.
type ArchiveConfig struct {
	// Path of the SQLite archive. Empty disables archiving.
	Path string `json:"path" yaml:"path"`

	// MaxSize bounds the archive, e.g. "64MB". Empty means unbounded.
	MaxSize string `json:"max_size" yaml:"max_size"`
}

// MaxSizeBytes parses MaxSize. An empty value is 0 (unbounded).
func (a ArchiveConfig) MaxSizeBytes() (int64, error) {
	if strings.TrimSpace(a.MaxSize) == "" {
		return 0, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(a.MaxSize)); err != nil {
		return 0, fmt.Errorf("invalid archive max_size %q: %w", a.MaxSize, err)
	}
	return int64(size.Bytes()), nil
}

// LoggingConfig configures spikeloop's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", "trace",
	// "warn" or "error". "debug" and "trace" also write
	// ~/.spikeloop/trace.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Network:     "chain",
		StepMs:      constants.DefaultStepMs,
		WindowSteps: constants.DefaultWindowSteps,
		Renderer:    "web",
		Injection: InjectionConfig{
			BatchSize: constants.DefaultBatchSize,
		},
		Render: RenderConfig{
			Frames:      0,
			Pause:       constants.DefaultPauseMs * time.Millisecond,
			Addr:        constants.DefaultListenAddr,
			OpenBrowser: true,
			MaxFPS:      constants.DefaultMaxFPS,
		},
		Engine: EngineConfig{
			Threads: 1,
		},
		Archive: ArchiveConfig{
			MaxSize: constants.DefaultArchiveMaxSize,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.spikeloop/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".spikeloop", "config.yaml"), nil
}

// Load loads configuration.
// Order: defaults -> path (or ~/.spikeloop/config.yaml when path is empty)
// -> environment variables. An explicit path must exist.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if p, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields
// missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Archive.Path = expandPath(config.Archive.Path)

	return config, nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

var (
	validNetworks  = map[string]bool{"chain": true, "va": true}
	validRenderers = map[string]bool{"web": true, "term": true, "headless": true}
)

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !validNetworks[c.Network] {
		return fmt.Errorf("invalid network: %s (valid: chain, va)", c.Network)
	}
	if !(c.StepMs > 0) {
		return fmt.Errorf("step_ms must be positive, got %v", c.StepMs)
	}
	if n := c.StepMs / constants.DefaultTimestepMs; math.Abs(n-math.Round(n)) > 1e-9*math.Max(1, n) {
		return fmt.Errorf("step_ms must be a whole number of %v ms timesteps, got %v", constants.DefaultTimestepMs, c.StepMs)
	}
	if c.WindowSteps < 1 {
		return fmt.Errorf("window_steps must be at least 1, got %d", c.WindowSteps)
	}
	if !validRenderers[c.Renderer] {
		return fmt.Errorf("invalid renderer: %s (valid: web, term, headless)", c.Renderer)
	}
	if c.Injection.BatchSize < 1 {
		return fmt.Errorf("injection batch_size must be at least 1, got %d", c.Injection.BatchSize)
	}
	if c.Render.Frames < 0 {
		return fmt.Errorf("render frames must be non-negative, got %d", c.Render.Frames)
	}
	if c.Render.Pause < 0 {
		return fmt.Errorf("render pause must be non-negative, got %v", c.Render.Pause)
	}
	if !(c.Render.MaxFPS > 0) {
		return fmt.Errorf("render max_fps must be positive, got %v", c.Render.MaxFPS)
	}
	if c.Engine.Threads < 1 {
		return fmt.Errorf("engine threads must be at least 1, got %d", c.Engine.Threads)
	}
	if _, err := c.Archive.MaxSizeBytes(); err != nil {
		return err
	}
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error, or empty for default)", c.Logging.Level)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SPIKELOOP_NETWORK"); v != "" {
		config.Network = v
	}
	if v := os.Getenv("SPIKELOOP_RENDERER"); v != "" {
		config.Renderer = v
	}
	if v := os.Getenv("SPIKELOOP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SPIKELOOP_ARCHIVE"); v != "" {
		config.Archive.Path = expandPath(v)
	}
	if v := os.Getenv("SPIKELOOP_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.Threads = n
		}
	}
}

// expandPath expands ${VAR} patterns and a leading ~/.
func expandPath(s string) string {
	if strings.Contains(s, "${") {
		s = os.Expand(s, os.Getenv)
	}
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return s
}
