// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"xtcmod/internal/dag"
	"xtcmod/internal/issue"
	"xtcmod/pkg/diag"
	"xtcmod/pkg/linker"
	"xtcmod/pkg/version"

	"github.com/spf13/cobra"
)

type linkFlags struct {
	profile     string
	defines     []string
	selfVersion string
	parallel    int
}

func newLinkCommand(app *App) *cobra.Command {
	var flags linkFlags
	cmd := &cobra.Command{
		Use:   "link <file>",
		Short: "Resolve the dependencies of a module against the repository",
		Long: `Resolve the modules a module depends on, transitively, against the module
repository and print the order to initialize them in.

Conditional dependencies are evaluated in a linker context built from the
profile, the --define names and the modules stored in the repository.
Missing required modules fail the link; missing desired and optional
modules are reported as warnings and notes.`,
		Example: `  xtcmod link app.xtc
  xtcmod link app.xtc --define debug --define test
  xtcmod link app.xtc --profile release.toml --repo ./lib --repo ~/.xtc`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			return app.link(cmd, args[0], flags, s)
		}),
	}
	cmd.Flags().StringVar(&flags.profile, "profile", "", "linker profile (TOML); defaults to linker.profile")
	cmd.Flags().StringArrayVarP(&flags.defines, "define", "D", nil, "define a named condition; repeatable")
	cmd.Flags().StringVar(&flags.selfVersion, "self-version", "", "version the linked module is assumed to have")
	cmd.Flags().IntVar(&flags.parallel, "parallel", runtime.GOMAXPROCS(0), "maximum number of modules loaded at once")
	return cmd
}

func (a *App) link(cmd *cobra.Command, path string, flags linkFlags, s *session) error {
	ctx := cmd.Context()
	f, err := s.readModule(path)
	if err != nil {
		return err
	}
	primary, repo, err := a.repositories(s)
	if err != nil {
		return err
	}
	profile, err := s.profile(flags)
	if err != nil {
		return err
	}
	lc, err := linker.NewContext(ctx, profile, repo)
	if err != nil {
		return profileError(flags.profile, err)
	}

	collector := diag.NewCollector(s.cfg.Diagnostics.MaxErrors, diag.WithLogger(s.logger))
	res, err := linker.Link(ctx, f, repo,
		linker.WithSink(collector),
		linker.WithLogger(s.logger),
		linker.WithContext(lc),
		linker.WithParallelism(flags.parallel),
	)
	w := cmd.OutOrStdout()
	renderDiagnostics(w, collector.Diagnostics())
	if err != nil {
		return linkError(f.ModuleName(), primary.Root(), collector, err)
	}

	fmt.Fprintln(w, TitleStyle.Render("Link order"))
	for i, name := range res.Order {
		m := res.Modules[name]
		ver := "(unversioned)"
		if !m.Version.IsZero() {
			ver = m.Version.String()
		}
		fmt.Fprintf(w, "%3d. %s %s\n", i+1, name, KeyStyle.Render(ver))
	}
	fmt.Fprintf(w, "%s %s linked with %d modules\n", SuccessStyle.Render("✓"), res.Root, len(res.Order))
	return nil
}

// profile loads the linker profile named by --profile or linker.profile and
// adds the configured and command line defines to it.
func (s *session) profile(flags linkFlags) (*linker.Profile, error) {
	path := flags.profile
	if path == "" {
		path = s.cfg.Linker.Profile
	}
	profile := &linker.Profile{}
	if path != "" {
		p, err := linker.LoadProfile(path)
		if err != nil {
			return nil, profileError(path, err)
		}
		profile = p
		s.logger.Debug("loaded linker profile", "path", path)
	}
	profile.Defines = append(profile.Defines, s.cfg.Linker.Defines...)
	profile.Defines = append(profile.Defines, flags.defines...)
	if flags.selfVersion != "" {
		v, err := version.Parse(flags.selfVersion)
		if err != nil {
			return nil, err
		}
		profile.SelfVersion = v
	}
	return profile, nil
}

func profileError(path string, err error) error {
	if !errors.Is(err, linker.ErrInvalidProfile) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("load linker profile").
		WithResource(path).
		WithIssue(issue.InvalidProfileId).
		Wrap(err).
		BuildError()
}

// linkError converts a failed link into an ExitError carrying guidance
// that matches the diagnostics the linker reported.
func linkError(module, root string, collector *diag.Collector, err error) error {
	ctx := issue.NewErrorContext().WithOperation("link module").WithResource(module)
	code := ExitInvalid
	switch {
	case errors.Is(err, dag.ErrCycle):
		ctx.WithIssue(issue.DependencyCycleId)
	case errors.Is(err, linker.ErrUnresolved):
		id := issue.VersionNotAllowedId
		for _, d := range collector.Diagnostics() {
			if d.Code == diag.CodeModuleNotFound && d.Severity >= diag.SeverityError {
				id = issue.ModuleNotFoundId
				break
			}
		}
		ctx.WithSuggestion("Run 'xtcmod repo list' to see the modules in " + root).WithIssue(id)
	case errors.Is(err, linker.ErrLinkAborted):
		ctx.WithSuggestion("Raise diagnostics.max_errors to see every problem")
	default:
		code = ExitFailure
	}
	return &ExitError{Code: code, Err: ctx.Wrap(err).BuildError()}
}
