package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/spikeloop/internal/pathutil"
	"github.com/nvandessel/spikeloop/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an archived run to an Arrow IPC file",
		Long: `Write the spikes (or voltage samples) of one archived run to an Arrow
IPC file, or list the runs in an archive.

Examples:
  spikeloop export --archive runs.db --list
  spikeloop export --archive runs.db --out latest.arrow
  spikeloop export --archive runs.db --run 3 --out run3.arrow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("archive")
			if path == "" {
				path = cfg.Archive.Path
			}
			if path == "" {
				if path, err = store.DefaultArchivePath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("archive %s: %w", pathutil.RedactPath(path), err)
			}
			maxSize, err := cfg.Archive.MaxSizeBytes()
			if err != nil {
				return err
			}

			archive, err := store.OpenSQLiteArchive(path, maxSize)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer archive.Close()

			ctx := cmd.Context()
			if err := archive.Check(ctx); err != nil {
				return fmt.Errorf("archive %s is damaged: %w", pathutil.RedactPath(path), err)
			}
			runs, err := archive.Runs(ctx)
			if err != nil {
				return err
			}

			if list, _ := cmd.Flags().GetBool("list"); list {
				return printRuns(cmd, runs)
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return usagef("--out is required unless --list is given")
			}
			if same, err := pathutil.SamePath(out, path); err != nil {
				return err
			} else if same {
				return usagef("--out would overwrite the archive %s", pathutil.RedactPath(path))
			}
			runID, _ := cmd.Flags().GetInt64("run")
			if runID == 0 {
				if len(runs) == 0 {
					return errors.New("archive has no runs")
				}
				runID = runs[0].ID
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			n, err := store.ExportRun(ctx, archive, runID, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(out)
				return fmt.Errorf("export run %d: %w", runID, err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run":     runID,
					"records": n,
					"path":    out,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records of run %d to %s\n", n, runID, out)
			return nil
		},
	}

	cmd.Flags().String("archive", "", "SQLite archive (default: archive.path, then ~/.spikeloop/archive.db)")
	cmd.Flags().Int64("run", 0, "Run ID to export (default: newest run)")
	cmd.Flags().String("out", "", "Output Arrow IPC file")
	cmd.Flags().Bool("list", false, "List archived runs instead of exporting")

	return cmd
}

func printRuns(cmd *cobra.Command, runs []store.Run) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		if runs == nil {
			runs = []store.Run{}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs archived.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNETWORK\tMODE\tSTEP\tITERATIONS\tSTARTED\tENDED")
	for _, r := range runs {
		ended := "-"
		if r.EndedAt != nil {
			ended = r.EndedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%d\t%s\t%s\n",
			r.ID, r.Network, r.Mode, r.StepMs, r.Iterations,
			r.StartedAt.Local().Format(time.DateTime), ended)
	}
	return tw.Flush()
}
