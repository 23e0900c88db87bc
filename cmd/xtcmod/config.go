// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"xtcmod/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `xtcmod config` command tree.
// Subcommands that read configuration use the App's config provider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage xtcmod configuration",
		Long: `Manage xtcmod configuration.

Configuration is stored in:
  - Linux: ~/.config/xtcmod/config.cue
  - macOS: ~/Library/Application Support/xtcmod/config.cue
  - Windows: %APPDATA%\xtcmod\config.cue

Every setting can be overridden with an XTCMOD_<SECTION>_<KEY> environment
variable, for example XTCMOD_REPOSITORY_COMPRESSION=lz4.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string, s *session) error {
			showConfig(cmd, s)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string, s *session) error {
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(s.cfg))
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration and repository paths",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string, s *session) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			repoDir, err := config.RepositoryDir(s.cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(w, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			fmt.Fprintf(w, "Repository: %s\n", repoDir)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value and save the configuration file.

Keys: repository.path, repository.compression, file.lazy_children,
file.optimize, diagnostics.max_errors, linker.profile, linker.defines
(comma separated), ui.color_scheme, ui.verbose.`,
		Args: cobra.ExactArgs(2),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			if err := setConfigValue(s.cfg, args[0], args[1]); err != nil {
				return err
			}
			if valid, errs := s.cfg.IsValid(); !valid {
				return errs[0]
			}
			if err := config.Save(s.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", SuccessStyle.Render("✓"), args[0], args[1])
			return nil
		}),
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, s *session) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if s.cfgPath != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), s.cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	cfg := s.cfg
	repoPath := cfg.Repository.Path
	if repoPath == "" {
		repoPath = SubtitleStyle.Render("(default)")
	}
	defines := strings.Join(cfg.Linker.Defines, ", ")
	if defines == "" {
		defines = SubtitleStyle.Render("(none)")
	}
	profile := cfg.Linker.Profile
	if profile == "" {
		profile = SubtitleStyle.Render("(none)")
	}

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"repository", [][2]string{{"path", repoPath}, {"compression", cfg.Repository.Compression}}},
		{"file", [][2]string{
			{"lazy_children", strconv.FormatBool(cfg.File.LazyChildren)},
			{"optimize", strconv.FormatBool(cfg.File.Optimize)},
		}},
		{"diagnostics", [][2]string{{"max_errors", strconv.Itoa(cfg.Diagnostics.MaxErrors)}}},
		{"linker", [][2]string{{"profile", profile}, {"defines", defines}}},
		{"ui", [][2]string{
			{"color_scheme", cfg.UI.ColorScheme.String()},
			{"verbose", strconv.FormatBool(cfg.UI.Verbose)},
		}},
	}
	for _, sec := range sections {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render(sec.name))
		for _, kv := range sec.values {
			fmt.Fprintf(w, "  %s: %s\n", kv[0], SuccessStyle.Render(kv[1]))
		}
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s: expected true or false, got %q", key, value)
		}
		return b, nil
	}

	var err error
	switch key {
	case "repository.path":
		cfg.Repository.Path = value
	case "repository.compression":
		cfg.Repository.Compression = value
	case "file.lazy_children":
		cfg.File.LazyChildren, err = parseBool()
	case "file.optimize":
		cfg.File.Optimize, err = parseBool()
	case "diagnostics.max_errors":
		cfg.Diagnostics.MaxErrors, err = strconv.Atoi(value)
		if err != nil {
			err = fmt.Errorf("%s: expected an integer, got %q", key, value)
		}
	case "linker.profile":
		cfg.Linker.Profile = value
	case "linker.defines":
		cfg.Linker.Defines = nil
		for d := range strings.SplitSeq(value, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.Linker.Defines = append(cfg.Linker.Defines, d)
			}
		}
	case "ui.color_scheme":
		cfg.UI.ColorScheme = config.ColorScheme(value)
	case "ui.verbose":
		cfg.UI.Verbose, err = parseBool()
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return err
}
