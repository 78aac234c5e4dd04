package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/conformer/internal/harness"
)

// reportStyles renders against the output writer, so piped output and
// tests get plain text.
type reportStyles struct {
	pass   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	header lipgloss.Style
}

func newReportStyles(w io.Writer) reportStyles {
	r := lipgloss.NewRenderer(w)
	return reportStyles{
		pass:   r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("9")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		header: r.NewStyle().Bold(true),
	}
}

// writeReport prints one line per scenario, failure details, notes and a
// summary line. Only the first failure of a scenario is shown unless
// verbose is set.
func writeReport(w io.Writer, rep *harness.Report, verbose bool) {
	st := newReportStyles(w)

	for _, res := range rep.Results {
		dur := st.muted.Render(fmt.Sprintf("(%s)", res.Duration.Round(time.Millisecond)))
		if res.Passed {
			fmt.Fprintf(w, "%s %s %s\n", st.pass.Render("✓"), res.Name, dur)
		} else {
			fmt.Fprintf(w, "%s %s %s\n", st.fail.Render("✗"), res.Name, dur)
		}

		failures := res.Failures
		if !verbose && len(failures) > 1 {
			failures = failures[:1]
		}
		for _, f := range failures {
			writeFailure(w, st, f)
		}
		if extra := len(res.Failures) - len(failures); extra > 0 {
			fmt.Fprintf(w, "    %s\n", st.muted.Render(fmt.Sprintf("+ %d more failure(s), use --verbose", extra)))
		}
		for _, note := range res.Notes {
			fmt.Fprintf(w, "    %s\n", st.muted.Render("note: "+note))
		}
	}

	t := rep.Totals
	fmt.Fprintln(w)
	summary := fmt.Sprintf("Test Summary: %d passed, %d failed, %d total", t.Passed, t.Failed, t.Total)
	if t.Failed > 0 {
		fmt.Fprintln(w, st.fail.Inherit(st.header).Render(summary))
	} else {
		fmt.Fprintln(w, st.pass.Inherit(st.header).Render(summary))
	}
}

func writeFailure(w io.Writer, st reportStyles, f harness.Failure) {
	var where string
	switch {
	case f.Step < 0:
		where = "scenario"
	case f.StepName != "":
		where = fmt.Sprintf("step %d %s", f.Step, f.StepName)
	default:
		where = fmt.Sprintf("step %d", f.Step)
	}
	line := fmt.Sprintf("%s: %s %s", where, st.fail.Render(string(f.Kind)), f.Message)
	if f.Key != "" {
		line += fmt.Sprintf(" (key=%s)", f.Key)
	}
	fmt.Fprintf(w, "    %s\n", line)
	if f.Expected != "" || f.Actual != "" {
		fmt.Fprintf(w, "      expected: %s\n", f.Expected)
		fmt.Fprintf(w, "      actual:   %s\n", f.Actual)
	}
}

// writeScenarioList prints scenarios with their tags and steps.
func writeScenarioList(w io.Writer, scenarios []*harness.Scenario, verbose bool) {
	st := newReportStyles(w)
	for _, s := range scenarios {
		line := s.Name
		if len(s.Tags) > 0 {
			line += " " + st.muted.Render("["+strings.Join(s.Tags, ", ")+"]")
		}
		fmt.Fprintln(w, line)
		if verbose {
			for i, step := range s.Steps {
				fmt.Fprintf(w, "    %d. %s\n", i, step.Label())
			}
		}
	}
}
