package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/conformer/internal/config"
	"github.com/roach88/conformer/internal/harness"
	"github.com/roach88/conformer/internal/store"
	"github.com/roach88/conformer/internal/transport"
	"github.com/roach88/conformer/internal/twin"
	"github.com/roach88/conformer/internal/twin/sauce"
	"github.com/roach88/conformer/internal/ui"
	"github.com/roach88/conformer/internal/ui/chrome"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config     string
	Filter     string
	Tags       []string
	Parallel   int
	Timeout    time.Duration
	Tolerance  time.Duration
	Offline    bool
	DB         string
	Headless   bool
	ChromePath string

	// Offline twin tuning. Not exposed as flags.
	delayUnit   time.Duration
	glitchDelay time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scenarios",
		Long: `Run scenarios against the configured API and browser.

Each scenario gets its own HTTP session and, when it runs flows, its own
browser. With --offline the API calls go to an in-process reqres twin and
flows run against an in-memory SauceDemo model, so no network or Chrome is
needed.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad fixture, unreachable database, etc.)

Examples:
  conformer run --offline
  conformer run --config suite.yaml --tag api
  conformer run --filter "get single*" --format json
  conformer run --parallel 4 --db history.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "fixture file (.yaml, .yml or .cue); built-in suite if empty")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run scenarios whose name matches this glob pattern")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "run scenarios carrying every given tag")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "concurrent scenarios (overrides run.parallel)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-scenario timeout (overrides run.scenario_timeout)")
	cmd.Flags().DurationVar(&opts.Tolerance, "tolerance", 0, "timing window slack (overrides run.tolerance)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "run against the local twins instead of the network")
	cmd.Flags().StringVar(&opts.DB, "db", "", "append the run to this SQLite history database")
	cmd.Flags().BoolVar(&opts.Headless, "headless", true, "run Chrome without a window")
	cmd.Flags().StringVar(&opts.ChromePath, "chrome-path", "", "Chrome binary (default: search PATH)")

	return cmd
}

func runScenarios(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	suite, source, err := loadSuite(opts.Config)
	if err != nil {
		return err
	}
	if err := suite.Check(); err != nil {
		return WrapExitError(ExitCommandError, "invalid fixture", err)
	}
	if opts.Parallel < 0 {
		return NewExitError(ExitCommandError, "--parallel must be non-negative")
	}

	selected, err := suite.Select(opts.Filter, opts.Tags)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid selection", err)
	}
	if len(selected) == 0 {
		if opts.Format == "json" {
			return formatter.Success(&harness.Report{Results: []*harness.Result{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}
	formatter.VerboseLog("Running %d of %d scenario(s) from %s", len(selected), len(suite.Scenarios), source)

	r := suite.Runner()
	r.Logger = logger
	r.IDs = harness.UUIDv7Generator{}
	if opts.Parallel > 0 {
		r.Parallel = opts.Parallel
	}
	if opts.Timeout > 0 {
		r.Timeout = opts.Timeout
	}
	if opts.Tolerance > 0 {
		r.Tolerance = opts.Tolerance
	}

	sessions, cleanup, err := newSessions(ctx, opts, suite.File, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start sessions", err)
	}
	defer cleanup()
	r.Sessions = sessions

	rep := r.RunAll(ctx, selected)

	if opts.DB != "" {
		if err := saveRun(ctx, opts.DB, rep, source); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		formatter.VerboseLog("Recorded run %s in %s", rep.ID, opts.DB)
	}

	if opts.Format == "json" {
		if rep.Totals.Failed > 0 {
			if err := formatter.Failed(rep); err != nil {
				return err
			}
		} else if err := formatter.Success(rep); err != nil {
			return err
		}
	} else {
		writeReport(cmd.OutOrStdout(), rep, opts.Verbose)
	}

	if rep.Totals.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", rep.Totals.Failed, rep.Totals.Total))
	}
	return nil
}

func saveRun(ctx context.Context, path string, rep *harness.Report, source string) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.WriteRun(ctx, rep, source)
}

// newSessions builds the per-scenario capability factory. The returned
// cleanup stops anything started here, such as the offline twin.
func newSessions(ctx context.Context, opts *RunOptions, f *config.File, logger *slog.Logger) (harness.Sessions, func(), error) {
	apiBase := f.API.BaseURL
	cleanup := func() {}

	if opts.Offline {
		addr, stop, err := startTwin(ctx, logger, opts.delayUnit)
		if err != nil {
			return harness.Sessions{}, nil, err
		}
		apiBase = "http://" + addr
		cleanup = stop
	}

	httpOpts := []transport.Option{transport.WithLogger(logger)}
	for k, v := range f.API.Headers {
		httpOpts = append(httpOpts, transport.WithHeader(k, v))
	}
	if f.API.Timeout > 0 {
		httpOpts = append(httpOpts, transport.WithTimeout(f.API.Timeout))
	}

	sessions := harness.Sessions{
		NewTransport: func() (transport.Transport, func()) {
			h := transport.NewHTTP(apiBase, httpOpts...)
			return h, h.Close
		},
	}

	if opts.Offline {
		pageOpts := []sauce.Option{}
		if f.UI.BaseURL != "" {
			pageOpts = append(pageOpts, sauce.WithBaseURL(f.UI.BaseURL))
		}
		if opts.glitchDelay > 0 {
			pageOpts = append(pageOpts, sauce.WithGlitchDelay(opts.glitchDelay))
		}
		sessions.NewPage = func(context.Context) (ui.Page, func(), error) {
			return sauce.New(pageOpts...), nil, nil
		}
		return sessions, cleanup, nil
	}

	chromeOpts := chrome.DefaultOptions()
	chromeOpts.Headless = opts.Headless
	chromeOpts.ExecPath = opts.ChromePath
	chromeOpts.Logger = logger
	if f.UI.DefaultTimeout > 0 {
		chromeOpts.DefaultTimeout = f.UI.DefaultTimeout
	}
	sessions.NewPage = func(ctx context.Context) (ui.Page, func(), error) {
		page, release, err := chrome.NewSession(ctx, chromeOpts)
		if err != nil {
			return nil, nil, err
		}
		return page, release, nil
	}
	return sessions, cleanup, nil
}

// startTwin serves the reqres twin on a loopback port until stop is called.
func startTwin(ctx context.Context, logger *slog.Logger, delayUnit time.Duration) (string, func(), error) {
	twinOpts := []twin.Option{twin.WithLogger(logger)}
	if delayUnit > 0 {
		twinOpts = append(twinOpts, twin.WithDelayUnit(delayUnit))
	}
	srv := twin.New(twinOpts...)

	ctx, cancel := context.WithCancel(ctx)
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, "127.0.0.1:0", func(a net.Addr) { ready <- a })
	}()

	select {
	case addr := <-ready:
		stop := func() {
			cancel()
			<-done
		}
		return addr.String(), stop, nil
	case err := <-done:
		cancel()
		if err == nil {
			err = fmt.Errorf("twin stopped before listening")
		}
		return "", nil, err
	}
}
