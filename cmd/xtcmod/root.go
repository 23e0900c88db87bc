// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the xtcmod command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xtcmod",
		Short: "Inspect, validate and link module files",
		Long: TitleStyle.Render("xtcmod") + SubtitleStyle.Render(" - Inspect, validate and link module files") + `

xtcmod reads compiled module images (.xtc files), reports their contents,
manages their version labels, stores them in a local module repository
and links them against the modules they depend on.

` + SubtitleStyle.Render("Examples:") + `
  xtcmod info json.xtc                Show the module manifest
  xtcmod validate json.xtc            Check the module structure
  xtcmod version label json.xtc 1.2   Label the module with a version
  xtcmod repo store json.xtc          Store the module in the repository
  xtcmod link app.xtc                 Resolve the module's dependencies`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/xtcmod/config.cue)")
	rootCmd.PersistentFlags().StringSliceVar(&app.flags.repos, "repo", nil, "module repository directory; repeat to search several")

	rootCmd.AddCommand(
		newInfoCommand(app),
		newConstantsCommand(app),
		newValidateCommand(app),
		newOptimizeCommand(app),
		newVersionCommand(app),
		newRepoCommand(app),
		newLinkCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}
