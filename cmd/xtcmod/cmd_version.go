// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"xtcmod/pkg/component"
	"xtcmod/pkg/version"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Manage the version labels of a module file",
		Long: `Manage the version labels of a module file.

A module file is unversioned, carries one version, or holds several
versions merged together. Components that exist only in some versions are
guarded by version conditions.`,
	}
	cmd.AddCommand(
		newVersionListCommand(app),
		newVersionLabelCommand(app),
		newVersionPurgeCommand(app),
		newVersionMergeCommand(app),
	)
	return cmd
}

func newVersionListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>",
		Short: "List the version labels of a module file",
		Args:  cobra.ExactArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			f, err := s.readModule(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			versions := f.Versions()
			if len(versions) == 0 {
				fmt.Fprintln(w, SubtitleStyle.Render(f.ModuleName()+" is unversioned"))
				return nil
			}
			for _, v := range versions {
				fmt.Fprintf(w, "%s %s\n", KeyStyle.Render(v.String()), SubtitleStyle.Render(v.Category().String()))
			}
			return nil
		}),
	}
}

func newVersionLabelCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "label <file> <version>",
		Short: "Label a module file with a version",
		Long: `Label an unversioned module file with a version, or replace the single
version label of a versioned file.`,
		Args: cobra.ExactArgs(2),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			v, err := version.Parse(args[1])
			if err != nil {
				return err
			}
			return s.rewrite(cmd, args[0], output, func(f *component.FileStructure) error {
				return f.LabelVersion(v)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of rewriting the input")
	return cmd
}

func newVersionPurgeCommand(app *App) *cobra.Command {
	var (
		output string
		except bool
	)
	cmd := &cobra.Command{
		Use:   "purge <file> <version>",
		Short: "Remove a version label from a module file",
		Long: `Remove a version label together with the components that exist only in
that version. With --except every label other than the given one is removed.`,
		Args: cobra.ExactArgs(2),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			v, err := version.Parse(args[1])
			if err != nil {
				return err
			}
			return s.rewrite(cmd, args[0], output, func(f *component.FileStructure) error {
				if except {
					return f.PurgeVersionsExcept(v)
				}
				return f.PurgeVersion(v)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of rewriting the input")
	cmd.Flags().BoolVar(&except, "except", false, "keep only the given version")
	return cmd
}

func newVersionMergeCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge <file> <other>...",
		Short: "Merge the version labels of other files of the same module",
		Args:  cobra.MinimumNArgs(2),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			others := make([]*component.FileStructure, 0, len(args)-1)
			for _, path := range args[1:] {
				other, err := s.readModule(path)
				if err != nil {
					return err
				}
				others = append(others, other)
			}
			return s.rewrite(cmd, args[0], output, func(f *component.FileStructure) error {
				for _, other := range others {
					if err := f.MergeVersions(other); err != nil {
						return err
					}
				}
				return nil
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of rewriting the input")
	return cmd
}

// rewrite reads the module at path, applies edit and writes the result to
// output, or back to path when output is empty.
func (s *session) rewrite(cmd *cobra.Command, path, output string, edit func(*component.FileStructure) error) error {
	f, err := s.readModule(path)
	if err != nil {
		return err
	}
	if err := edit(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if output == "" {
		output = path
	}
	if err := s.writeModule(f, output, s.cfg.File.WriteOptions()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", SuccessStyle.Render("✓"), output, SubtitleStyle.Render(versionList(f.Versions())))
	return nil
}

func versionList(versions []version.Version) string {
	if len(versions) == 0 {
		return "(unversioned)"
	}
	names := make([]string, len(versions))
	for i, v := range versions {
		names[i] = v.String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}
