package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/conformer/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB       string
	Limit    int
	RunID    string
	Scenario string
	Kinds    bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded with 'conformer run --db'.

Without a selector the most recent runs are listed. --run prints one run's
full report, --scenario lists one scenario's outcomes across runs and
--kinds adds a failure-kind breakdown for the selected run.

Examples:
  conformer history --db history.db
  conformer history --db history.db --run 0192f3c4-...
  conformer history --db history.db --scenario "standard user login"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum rows to show (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the report of this run")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show this scenario's outcomes across runs")
	cmd.Flags().BoolVar(&opts.Kinds, "kinds", false, "with --run, show failure counts by kind")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)
	w := cmd.OutOrStdout()

	if opts.RunID != "" && opts.Scenario != "" {
		return NewExitError(ExitCommandError, "--run and --scenario are mutually exclusive")
	}
	if opts.Kinds && opts.RunID == "" {
		return NewExitError(ExitCommandError, "--kinds requires --run")
	}
	if _, err := os.Stat(opts.DB); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case opts.RunID != "":
		rep, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run %q not found", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		var kinds []store.KindCount
		if opts.Kinds {
			if kinds, err = st.FailureKinds(ctx, opts.RunID); err != nil {
				return WrapExitError(ExitCommandError, "failed to count failures", err)
			}
		}
		if opts.Format == "json" {
			if opts.Kinds {
				return formatter.Success(map[string]any{"run": rep, "kinds": kinds})
			}
			return formatter.Success(rep)
		}
		writeReport(w, rep, opts.Verbose)
		if opts.Kinds {
			writeKinds(w, kinds)
		}
		return nil

	case opts.Scenario != "":
		records, err := st.ScenarioHistory(ctx, opts.Scenario, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(records)
		}
		if len(records) == 0 {
			fmt.Fprintf(w, "No runs recorded for %q.\n", opts.Scenario)
			return nil
		}
		writeScenarioHistory(w, opts.Scenario, records)
		return nil

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		writeRuns(w, runs)
		return nil
	}
}

func writeRuns(w io.Writer, runs []store.RunSummary) {
	st := newReportStyles(w)
	for _, run := range runs {
		mark := st.pass.Render("✓")
		if run.Totals.Failed > 0 {
			mark = st.fail.Render("✗")
		}
		fmt.Fprintf(w, "%s %s  %s  %d/%d passed  %s\n", mark, run.ID,
			run.Started.Local().Format("2006-01-02 15:04:05"),
			run.Totals.Passed, run.Totals.Total, st.muted.Render(run.Source))
	}
}

func writeScenarioHistory(w io.Writer, name string, records []store.ScenarioRecord) {
	st := newReportStyles(w)
	fmt.Fprintln(w, st.header.Render(name))
	for _, rec := range records {
		line := fmt.Sprintf("  %s  %s  %s", rec.Started.Local().Format("2006-01-02 15:04:05"),
			rec.Duration.Round(time.Millisecond), rec.RunID)
		if rec.Passed {
			fmt.Fprintf(w, "%s %s\n", st.pass.Render("✓"), line)
			continue
		}
		fmt.Fprintf(w, "%s %s  %s\n", st.fail.Render("✗"), line, st.fail.Render(string(rec.Kind)))
	}
}

func writeKinds(w io.Writer, kinds []store.KindCount) {
	if len(kinds) == 0 {
		return
	}
	st := newReportStyles(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.header.Render("Failures by kind"))
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-22s %d\n", k.Kind, k.Count)
	}
}
