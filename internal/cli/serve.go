package cli

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/conformer/internal/config"
	"github.com/roach88/conformer/internal/twin"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr       string
	DelayUnit  time.Duration
	APIKey     string
	SigningKey string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reqres twin",
		Long: `Serve an in-memory twin of the reqres.in API until interrupted.

The twin answers the same routes, status codes and bodies as the public
service, so fixtures can be developed offline by pointing
CONFORMER_API_BASE_URL at it.

Examples:
  conformer serve --addr 127.0.0.1:8080
  CONFORMER_API_BASE_URL=http://127.0.0.1:8080 conformer run --tag api`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().DurationVar(&opts.DelayUnit, "delay-unit", time.Second, "duration of one ?delay= unit")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "require this key in "+twin.APIKeyHeader+" (default $"+config.EnvAPIKey+")")
	cmd.Flags().StringVar(&opts.SigningKey, "signing-key", "", "HMAC key for issued tokens")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	if opts.DelayUnit < 0 {
		return NewExitError(ExitCommandError, "--delay-unit must be non-negative")
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	key := opts.APIKey
	if key == "" {
		key = os.Getenv(config.EnvAPIKey)
	}

	twinOpts := []twin.Option{
		twin.WithLogger(logger),
		twin.WithDelayUnit(opts.DelayUnit),
	}
	if key != "" {
		twinOpts = append(twinOpts, twin.WithAPIKey(key))
	}
	if opts.SigningKey != "" {
		twinOpts = append(twinOpts, twin.WithSigningKey([]byte(opts.SigningKey)))
	}

	out := cmd.OutOrStdout()
	err := twin.New(twinOpts...).Serve(cmd.Context(), opts.Addr, func(addr net.Addr) {
		fmt.Fprintf(out, "Serving reqres twin on http://%s\n", addr)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "twin stopped", err)
	}
	return nil
}
