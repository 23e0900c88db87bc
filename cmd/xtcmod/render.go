// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"xtcmod/internal/issue"
	"xtcmod/pkg/diag"

	"github.com/spf13/cobra"
)

type handler func(cmd *cobra.Command, args []string, s *session) error

// runE adapts h to cobra's RunE. The session is loaded first; failures are
// rendered to stderr and returned as an ExitError carrying the exit code.
func (a *App) runE(h handler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		verbose := a.flags.verbose
		s, err := a.session(cmd.Context())
		if err == nil {
			verbose = s.verbose
			err = h(cmd, args, s)
		}
		if err == nil {
			return nil
		}

		cmd.SilenceErrors = true
		code := ExitFailure
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
			if exitErr.Err == nil {
				return err
			}
		}
		a.renderError(err, verbose)
		return &ExitError{Code: code, Err: err}
	}
}

// renderError prints err to stderr. In verbose mode the guidance attached
// to an actionable error is rendered below it.
func (a *App) renderError(err error, verbose bool) {
	fmt.Fprintf(a.stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	if !verbose {
		return
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	if guide, ok := ae.Guidance(); ok {
		if rendered, rerr := guide.Render(""); rerr == nil {
			fmt.Fprint(a.stderr, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		return formatErrorForDisplay(exitErr.Err, verboseMode)
	}
	return err.Error()
}

// renderDiagnostics writes one line per diagnostic followed by a summary
// of the counts per severity. It writes nothing when diags is empty.
func renderDiagnostics(w io.Writer, diags []diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	counts := make(map[diag.Severity]int)
	for _, d := range diags {
		counts[d.Severity]++
		line := severityStyle(d.Severity).Render(d.Severity.String()+":") + " " + d.Message()
		if d.Related != "" {
			line += SubtitleStyle.Render(" (" + d.Related + ")")
		}
		fmt.Fprintln(w, line)
	}

	var parts []string
	for _, sev := range []diag.Severity{diag.SeverityFatal, diag.SeverityError, diag.SeverityWarning, diag.SeverityInfo} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, plural(n, sev.String()))
		}
	}
	fmt.Fprintln(w, SubtitleStyle.Render(strings.Join(parts, ", ")))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// field renders an aligned "label: value" line.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", KeyStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
}
