// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"xtcmod/internal/issue"
	"xtcmod/pkg/component"
	"xtcmod/pkg/diag"

	"github.com/spf13/cobra"
)

func newInfoCommand(app *App) *cobra.Command {
	var showTree bool
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Show the manifest of a module file",
		Long: `Show the primary module of a module file, its version labels, the modules
it embeds and the fingerprints of the modules it depends on.

With --tree the component hierarchy is printed as well, including the
condition of every conditional component.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			f, err := s.readModule(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printManifest(w, f.Manifest())
			if showTree {
				fmt.Fprintln(w)
				fmt.Fprintln(w, TitleStyle.Render("Components"))
				printTree(w, f.Root(), 1)
			}
			return f.Err()
		}),
	}
	cmd.Flags().BoolVar(&showTree, "tree", false, "print the component hierarchy")
	return cmd
}

func printManifest(w io.Writer, m component.Manifest) {
	fmt.Fprintln(w, TitleStyle.Render(m.Module))
	field(w, "Format", m.FormatVersion)
	field(w, "Constants", m.Constants)
	switch {
	case len(m.Versions) > 1:
		field(w, "Versions", strings.Join(m.Versions, ", "))
	case m.Version != "":
		field(w, "Version", m.Version)
	default:
		field(w, "Version", SubtitleStyle.Render("(unversioned)"))
	}
	if len(m.Embedded) > 0 {
		field(w, "Embedded", strings.Join(m.Embedded, ", "))
	}
	if len(m.Fingerprints) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Dependencies"))
	for _, fp := range m.Fingerprints {
		fmt.Fprintf(w, "  %s %s\n", fp.Module, SubtitleStyle.Render("("+fp.Type+")"))
		if len(fp.Allowed) > 0 {
			field(w, "  allowed", strings.Join(fp.Allowed, ", "))
		}
		if len(fp.Excluded) > 0 {
			field(w, "  avoided", strings.Join(fp.Excluded, ", "))
		}
		if len(fp.Preferred) > 0 {
			field(w, "  preferred", strings.Join(fp.Preferred, ", "))
		}
	}
}

func printTree(w io.Writer, c *component.Component, depth int) {
	for _, child := range c.Children() {
		line := strings.Repeat("  ", depth) + child.Name() + " " + SubtitleStyle.Render(child.Format().String())
		if cond := child.Condition(); cond != nil {
			line += " " + WarningStyle.Render("if "+cond.String())
		}
		fmt.Fprintln(w, line)
		printTree(w, child, depth+1)
	}
}

func newConstantsCommand(app *App) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "constants <file>",
		Short: "Summarize the constant pool of a module file",
		Args:  cobra.ExactArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			f, err := s.readModule(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			pool := f.Pool()
			fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("%s: %s", f.ModuleName(), plural(pool.Len(), "constant"))))
			for _, st := range pool.Stats() {
				fmt.Fprintf(w, "  %-20s %6d\n", st.Format, st.Count)
			}
			if !list {
				return nil
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, tableHeaderStyle.Render(fmt.Sprintf("%6s  %-20s %s", "#", "FORMAT", "VALUE")))
			for i := range pool.Len() {
				c := pool.At(i)
				fmt.Fprintf(w, "%6d  %-20s %s\n", i, c.Format(), c)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list every constant")
	return cmd
}

func newValidateCommand(app *App) *cobra.Command {
	var maxErrors int
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check the structure of module files",
		Long: `Check the structural rules of every component in each module file and
report the problems found. The command exits with status 2 when any file
has errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			limit := s.cfg.Diagnostics.MaxErrors
			if cmd.Flags().Changed("max-errors") {
				limit = maxErrors
			}
			w := cmd.OutOrStdout()
			var failed []string
			for _, path := range args {
				f, err := s.readModule(path)
				if err != nil {
					return err
				}
				collector := diag.NewCollector(limit, diag.WithLogger(s.logger))
				if err := f.Validate(collector); err != nil && !errors.Is(err, component.ErrValidationAborted) {
					return err
				}
				renderDiagnostics(w, collector.Diagnostics())
				if collector.HasErrors() {
					failed = append(failed, path)
					fmt.Fprintln(w, ErrorStyle.Render("✗ ")+path)
					continue
				}
				fmt.Fprintln(w, SuccessStyle.Render("✓ ")+path)
			}
			if len(failed) == 0 {
				return nil
			}
			return &ExitError{Code: ExitInvalid, Err: issue.NewErrorContext().
				WithOperation("validate module").
				WithResource(strings.Join(failed, ", ")).
				WithSuggestion("Fix the errors listed above and recompile the module").
				WithIssue(issue.ValidationFailedId).
				Wrap(diag.ErrValidation).
				BuildError()}
		}),
	}
	cmd.Flags().IntVar(&maxErrors, "max-errors", 0, "stop after this many errors; 0 reports all (default from config)")
	return cmd
}

func newOptimizeCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "optimize <file>",
		Short: "Rewrite a module file with an optimized constant pool",
		Long: `Rewrite a module file, dropping unreferenced constants and ordering the
pool so the most referenced constants get the smallest indexes.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			f, err := s.readModule(args[0])
			if err != nil {
				return err
			}
			before := f.Pool().Len()
			out := output
			if out == "" {
				out = args[0]
			}
			if err := s.writeModule(f, out, component.WriteOptions{Optimize: true}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d -> %d constants\n",
				SuccessStyle.Render("✓"), out, before, f.Pool().Len())
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of rewriting the input")
	return cmd
}
