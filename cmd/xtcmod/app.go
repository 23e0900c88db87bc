// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"xtcmod/internal/config"
	"xtcmod/internal/issue"
	"xtcmod/internal/packed"
	"xtcmod/pkg/component"
	"xtcmod/pkg/repository"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra command handler receives an App reference and
	// reaches configuration, repositories and output through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		flags  rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootFlags holds the values of the persistent root flags.
	rootFlags struct {
		configPath string
		verbose    bool
		repos      []string
	}

	// session is the per-invocation state shared by a command handler: the
	// loaded configuration and a logger honoring the verbose setting.
	session struct {
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
		verbose bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// session loads the configuration selected by --config and builds the
// logger. The verbose flag wins over ui.verbose only when it is set.
func (a *App) session(ctx context.Context) (*session, error) {
	loaded, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, err
	}
	verbose := a.flags.verbose || loaded.UI.Verbose
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName, Level: log.WarnLevel})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	logger.Debug("loaded configuration", "path", loaded.Path)
	return &session{cfg: loaded.Config, cfgPath: loaded.Path, logger: logger, verbose: verbose}, nil
}

// readModule decodes the module file at path using the file section of the
// configuration.
func (s *session) readModule(path string) (*component.FileStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError("read module", path, err)
	}
	opts := append(s.cfg.File.ReadOptions(), component.WithLogger(s.logger))
	f, err := component.Decode(data, opts...)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("decode module").
			WithResource(path).
			WithSuggestion("Check that the file is a module image and not source code").
			WithIssue(issue.ModuleDecodeFailedId).
			Wrap(err).
			BuildError()
	}
	s.logger.Debug("decoded module", "module", f.ModuleName(), "path", path, "constants", f.Pool().Len())
	return f, nil
}

// writeModule encodes f to path through a temporary file in the same
// directory, so a failed write never truncates an existing module.
func (s *session) writeModule(f *component.FileStructure, path string, opts component.WriteOptions) error {
	data, err := f.Bytes(opts)
	if err != nil {
		return fmt.Errorf("failed to encode module %s: %w", f.ModuleName(), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fileError("write module", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fileError("write module", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fileError("write module", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fileError("write module", path, err)
	}
	s.logger.Debug("wrote module", "module", f.ModuleName(), "path", path, "bytes", len(data))
	return nil
}

// repositories opens the repositories named by --repo, or the configured
// repository when the flag is absent. The first directory receives stores;
// the returned Repository searches all of them in order.
func (a *App) repositories(s *session) (*repository.Dir, repository.Repository, error) {
	roots, err := a.repositoryRoots(s)
	if err != nil {
		return nil, nil, err
	}
	compression, err := s.cfg.Repository.CompressionMode()
	if err != nil {
		return nil, nil, err
	}
	opts := []repository.Option{
		repository.WithCompression(compression),
		repository.WithLogger(s.logger),
		repository.WithFileOptions(s.cfg.File.ReadOptions()...),
	}

	dirs := make([]repository.Repository, 0, len(roots))
	var primary *repository.Dir
	for _, root := range roots {
		d, err := repository.OpenDir(root, opts...)
		if err != nil {
			return nil, nil, repositoryError("open repository", root, err)
		}
		if primary == nil {
			primary = d
		}
		dirs = append(dirs, d)
	}
	if len(dirs) == 1 {
		return primary, primary, nil
	}
	return primary, repository.NewChain(dirs...), nil
}

// repositoryRoots returns the --repo directories, or the configured
// repository directory when the flag is absent.
func (a *App) repositoryRoots(s *session) ([]string, error) {
	if len(a.flags.repos) > 0 {
		return a.flags.repos, nil
	}
	root, err := config.RepositoryDir(s.cfg)
	if err != nil {
		return nil, err
	}
	return []string{root}, nil
}

// fileError converts a filesystem error into an actionable error.
func fileError(op, path string, err error) error {
	ctx := issue.NewErrorContext().WithOperation(op).WithResource(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ctx.WithSuggestion("Check the path for typos").WithIssue(issue.FileNotFoundId)
	case errors.Is(err, fs.ErrPermission):
		ctx.WithSuggestion("Check the file permissions").WithIssue(issue.PermissionDeniedId)
	}
	return ctx.Wrap(err).BuildError()
}

// repositoryError converts a repository failure into an actionable error.
func repositoryError(op, root string, err error) error {
	ctx := issue.NewErrorContext().WithOperation(op).WithResource(root)
	switch {
	case errors.Is(err, repository.ErrCorrupt), errors.Is(err, repository.ErrIndexFormat), errors.Is(err, packed.ErrFormat):
		ctx.WithSuggestion("Run 'xtcmod repo reindex' to rebuild the index").WithIssue(issue.RepositoryCorruptId)
	case errors.Is(err, repository.ErrNotFound):
		ctx.WithSuggestion("Run 'xtcmod repo list' to see the stored modules").WithIssue(issue.ModuleNotFoundId)
	case errors.Is(err, fs.ErrPermission):
		ctx.WithSuggestion("Choose a writable repository with --repo").WithIssue(issue.PermissionDeniedId)
	}
	return ctx.Wrap(err).BuildError()
}
