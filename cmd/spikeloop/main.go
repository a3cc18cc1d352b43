package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/spikeloop/internal/models"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

// usageError reports bad command-line arguments. It is printed together
// with the usage text and exits 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Error: %s\n\n", ue.msg)
		fmt.Fprint(stderr, rootCmd.UsageString())
		return 1
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spikeloop [v|spikes|help]",
		Short: "Live windowed view of a running spiking network",
		Long: `spikeloop steps a spiking-network simulation in fixed windows, keeps its
spike-train inputs topped up, and draws the newest spikes or the membrane
voltage of one neuron while the simulation keeps running.

Modes:
  spikes   raster of spike events of the observed population (default)
  v        voltage trace of one neuron
  help     print this text

The run stops when the plot window is closed.

Examples:
  spikeloop                            # spike raster of the chain network in the browser
  spikeloop v --renderer term          # voltage trace in the terminal
  spikeloop --network va --frames 50 --renderer headless --archive runs.db`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usagef("expected at most one mode, got %d arguments", len(args))
			}
			token := ""
			if len(args) == 1 {
				token = args[0]
			}
			mode, err := models.ParseMode(token)
			if err != nil {
				return &usageError{msg: err.Error()}
			}
			return runLoop(cmd, mode)
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.spikeloop/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.Flags().String("network", "", "Network preset: chain or va")
	rootCmd.Flags().String("renderer", "", "Render backend: web, term or headless")
	rootCmd.Flags().Int("frames", 0, "Stop after this many frames (headless renderer; 0 = until interrupted)")
	rootCmd.Flags().String("archive", "", "Archive every extracted window to this SQLite file")
	rootCmd.Flags().Bool("no-open", false, "Do not open a browser for the web renderer")
	rootCmd.Flags().Int("threads", 0, "Engine worker threads")

	rootCmd.SetHelpCommand(newHelpCmd(rootCmd))
	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newExportCmd(),
	)

	return rootCmd
}

// newHelpCmd replaces cobra's help command: "help" takes no arguments.
func newHelpCmd(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "Print usage",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("help takes no arguments")
			}
			return rootCmd.Help()
		},
	}
}
