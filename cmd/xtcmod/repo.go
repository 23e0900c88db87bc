// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"xtcmod/internal/issue"
	"xtcmod/pkg/repository"
	"xtcmod/pkg/version"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRepoCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage the local module repository",
		Long: `Manage the local module repository.

The repository is a directory of compressed module files with an index
recording the versions, digests and manifests of the stored modules. It
defaults to the repository.path setting; --repo selects other directories,
searched in the order given. New modules are stored in the first one.`,
	}
	cmd.AddCommand(
		newRepoListCommand(app),
		newRepoStoreCommand(app),
		newRepoFindCommand(app),
		newRepoRemoveCommand(app),
		newRepoVerifyCommand(app),
		newRepoReindexCommand(app),
	)
	return cmd
}

func newRepoListCommand(app *App) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored modules and their versions",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string, s *session) error {
			primary, repo, err := app.repositories(s)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			names, err := repo.Modules(ctx)
			if err != nil {
				return repositoryError("list modules", primary.Root(), err)
			}
			w := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(w, SubtitleStyle.Render("No modules in "+primary.Root()))
				return nil
			}
			for _, name := range names {
				versions, err := repo.Versions(ctx, name)
				if err != nil {
					return repositoryError("list modules", primary.Root(), err)
				}
				if !long {
					fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(name), SubtitleStyle.Render(versionList(versions)))
					continue
				}
				fmt.Fprintln(w, TitleStyle.Render(name))
				for _, v := range versions {
					e, ok := primary.Entry(name, v)
					if !ok {
						fmt.Fprintf(w, "  %-12s %s\n", KeyStyle.Render(v.String()), SubtitleStyle.Render("(other repository)"))
						continue
					}
					fmt.Fprintf(w, "  %-12s %-28s %-5s %9s %s\n",
						KeyStyle.Render(v.String()), e.File, e.Compression,
						humanize.Bytes(uint64(e.Stored)), SubtitleStyle.Render(e.Digest.Short()))
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show the file, compression, size and digest of each version")
	return cmd
}

func newRepoStoreCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "store <file>...",
		Short: "Store versioned module files in the repository",
		Args:  cobra.MinimumNArgs(1),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			primary, _, err := app.repositories(s)
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := s.readModule(path)
				if err != nil {
					return err
				}
				if err := primary.Store(cmd.Context(), f); err != nil {
					return issue.NewErrorContext().
						WithOperation("store module").
						WithResource(path).
						WithSuggestion("Label the module first with 'xtcmod version label'").
						Wrap(err).
						BuildError()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
					SuccessStyle.Render("✓"), f.ModuleName(), SubtitleStyle.Render(versionList(f.Versions())))
			}
			return nil
		}),
	}
}

func newRepoFindCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "find <module> [version]",
		Short: "Show or extract a stored module",
		Long: `Show the manifest of a stored module. Without a version the highest stored
version is used. With --output the module file is written out as well.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			primary, repo, err := app.repositories(s)
			if err != nil {
				return err
			}
			var v version.Version
			if len(args) == 2 {
				if v, err = version.Parse(args[1]); err != nil {
					return err
				}
			}
			f, err := repo.Find(cmd.Context(), args[0], v)
			if err != nil {
				return repositoryError("find module", primary.Root(), err)
			}
			printManifest(cmd.OutOrStdout(), f.Manifest())
			if output == "" {
				return nil
			}
			return s.writeModule(f, output, s.cfg.File.WriteOptions())
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the module file to this path")
	return cmd
}

func newRepoRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <module> <version>",
		Short: "Remove a module version from the repository",
		Args:  cobra.ExactArgs(2),
		RunE: app.runE(func(cmd *cobra.Command, args []string, s *session) error {
			primary, _, err := app.repositories(s)
			if err != nil {
				return err
			}
			v, err := version.Parse(args[1])
			if err != nil {
				return err
			}
			if err := primary.Remove(cmd.Context(), args[0], v); err != nil {
				return repositoryError("remove module", primary.Root(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s %s\n", SuccessStyle.Render("✓"), args[0], v)
			return nil
		}),
	}
}

func newRepoVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every stored module against its recorded digest",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string, s *session) error {
			primary, _, err := app.repositories(s)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			err = primary.Verify(cmd.Context())
			if err == nil {
				fmt.Fprintf(w, "%s %d entries verified\n", SuccessStyle.Render("✓"), len(primary.Entries()))
				return nil
			}
			if !errors.Is(err, repository.ErrCorrupt) {
				return repositoryError("verify repository", primary.Root(), err)
			}
			var joined interface{ Unwrap() []error }
			if errors.As(err, &joined) {
				for _, e := range joined.Unwrap() {
					fmt.Fprintln(w, ErrorStyle.Render("✗ ")+e.Error())
				}
			}
			return &ExitError{Code: ExitInvalid, Err: repositoryError("verify repository", primary.Root(), err)}
		}),
	}
}

func newRepoReindexCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the repository index from the stored files",
		Long: `Rebuild the index of the first repository from the module files in its
directory. The existing index is discarded first, so an unreadable index
can be recovered.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(cmd *cobra.Command, _ []string, s *session) error {
			roots, err := app.repositoryRoots(s)
			if err != nil {
				return err
			}
			if err := os.Remove(filepath.Join(roots[0], repository.IndexFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return repositoryError("reindex repository", roots[0], err)
			}
			primary, _, err := app.repositories(s)
			if err != nil {
				return err
			}
			if err := primary.Reindex(cmd.Context()); err != nil {
				return repositoryError("reindex repository", primary.Root(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries indexed\n", SuccessStyle.Render("✓"), len(primary.Entries()))
			return nil
		}),
	}
}
