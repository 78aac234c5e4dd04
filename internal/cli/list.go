package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Config string
	Filter string
	Tags   []string
}

// ScenarioInfo is one entry of `conformer list --format json`.
type ScenarioInfo struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Steps []string `json:"steps"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List scenarios",
		Long:          `List the scenarios a run would execute, after --filter and --tag selection.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "fixture file (.yaml, .yml or .cue); built-in suite if empty")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "list scenarios whose name matches this glob pattern")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "list scenarios carrying every given tag")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	suite, _, err := loadSuite(opts.Config)
	if err != nil {
		return err
	}
	selected, err := suite.Select(opts.Filter, opts.Tags)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid selection", err)
	}

	if opts.Format == "json" {
		infos := make([]ScenarioInfo, 0, len(selected))
		for _, s := range selected {
			info := ScenarioInfo{Name: s.Name, Tags: s.Tags, Steps: make([]string, len(s.Steps))}
			for i, step := range s.Steps {
				info.Steps[i] = step.Label()
			}
			infos = append(infos, info)
		}
		return formatter.Success(infos)
	}

	if len(selected) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}
	writeScenarioList(cmd.OutOrStdout(), selected, opts.Verbose)
	return nil
}
