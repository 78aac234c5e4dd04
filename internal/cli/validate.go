package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Scenarios int      `json:"scenarios"`
	Endpoints int      `json:"endpoints"`
	Flows     int      `json:"flows"`
	Errors    []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [fixture]",
		Short: "Validate a fixture without running it",
		Long: `Validate a fixture file without executing any scenario.

Checks the file's structure, compiles endpoints, states and flows, and
resolves every reference a scenario makes: endpoints and their parameter
count, flows, credentials and body objects. Without an argument the
built-in fixture is validated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	suite, source, err := loadSuite(path)
	if err != nil {
		if opts.Format == "json" {
			_ = formatter.Error(codeOf(err), err.Error(), nil)
		}
		return err
	}
	formatter.VerboseLog("Loaded %s", source)

	result := ValidationResult{
		Valid:     true,
		Scenarios: len(suite.Scenarios),
		Endpoints: suite.Registry.Len(),
		Flows:     len(suite.Flows),
	}

	if err := suite.Check(); err != nil {
		result.Valid = false
		for _, e := range unjoin(err) {
			result.Errors = append(result.Errors, e.Error())
		}
		if opts.Format == "json" {
			_ = formatter.Success(result)
		} else {
			for _, e := range result.Errors {
				fmt.Fprintf(formatter.Writer, "✗ %s\n", e)
			}
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("fixture has %d error(s)", len(result.Errors)))
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Fixture valid: %d scenario(s), %d endpoint(s), %d flow(s)\n",
		result.Scenarios, result.Endpoints, result.Flows)
	return nil
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// codeOf returns the loader error code carried in an ExitError message.
func codeOf(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && len(exitErr.Message) >= 4 && exitErr.Message[0] == 'E' {
		return exitErr.Message[:4]
	}
	return "E001"
}
