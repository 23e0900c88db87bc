// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"

	"xtcmod/internal/dag"
	"xtcmod/pkg/component"
	"xtcmod/pkg/constant"
	"xtcmod/pkg/diag"
	"xtcmod/pkg/repository"
	"xtcmod/pkg/version"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Link errors.
var (
	// ErrLinkAborted is returned when the diagnostics sink asks to stop.
	ErrLinkAborted = errors.New("linking aborted")
	// ErrUnresolved is returned when required modules could not be linked.
	ErrUnresolved = errors.New("required modules could not be linked")
)

type (
	// Module is one module taking part in a link.
	Module struct {
		Name     string
		Version  version.Version
		File     *component.FileStructure
		Requires []string
	}

	// Result is the outcome of a link: the modules found and the order to
	// initialise them in, dependencies first.
	Result struct {
		Root    string
		Modules map[string]*Module
		Order   []string
	}

	// UnresolvedError lists the required modules that could not be linked.
	UnresolvedError struct {
		Modules []string
	}

	// LinkOption configures Link.
	LinkOption func(*linkOptions)

	linkOptions struct {
		sink     diag.Sink
		logger   *log.Logger
		ctx      constant.LinkerContext
		parallel int
	}

	// request is one fingerprint naming a module to load.
	request struct {
		from string
		fp   *component.Component
	}

	loadResult struct {
		stored []version.Version
		found  bool
		ver    version.Version
		file   *component.FileStructure
	}
)

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("required modules could not be linked: %s", strings.Join(e.Modules, ", "))
}

// Unwrap returns ErrUnresolved so callers can use errors.Is for programmatic detection.
func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// WithSink sets the sink that receives link diagnostics.
func WithSink(s diag.Sink) LinkOption {
	return func(o *linkOptions) { o.sink = s }
}

// WithLogger sets the logger used for link progress.
func WithLogger(l *log.Logger) LinkOption {
	return func(o *linkOptions) { o.logger = l }
}

// WithContext evaluates fingerprint conditions under lc, skipping absent
// fingerprints, and installs lc on every linked file.
func WithContext(lc constant.LinkerContext) LinkOption {
	return func(o *linkOptions) { o.ctx = lc }
}

// WithParallelism bounds the number of modules loaded at once.
func WithParallelism(n int) LinkOption {
	return func(o *linkOptions) { o.parallel = n }
}

// Link loads the transitive fingerprint dependencies of f from repo. Each
// fingerprint is resolved with repository.Select; a module named by several
// fingerprints is loaded once and checked against every one of them.
// Missing or disallowed modules are reported as errors for required
// fingerprints, warnings for desired ones and notes for optional ones.
func Link(ctx context.Context, f *component.FileStructure, repo repository.Repository, opts ...LinkOption) (*Result, error) {
	o := linkOptions{sink: diag.Discard, parallel: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(io.Discard, log.Options{Prefix: "linker"})
	}

	root := &Module{Name: f.ModuleName(), Version: f.Module().Version(), File: f}
	res := &Result{Root: root.Name, Modules: map[string]*Module{root.Name: root}}
	graph := dag.New()
	graph.AddNode(root.Name)
	if o.ctx != nil {
		f.SetLinkerContext(o.ctx)
	}

	var unresolved []string
	failed := make(map[string]bool)
	pending := []*Module{root}
	for len(pending) > 0 {
		requests := make(map[string][]request)
		var names []string
		for _, m := range pending {
			for _, fp := range m.File.FingerprintModules() {
				if o.ctx != nil && !constant.Evaluate(fp.Condition(), o.ctx) {
					continue
				}
				name := fp.Name()
				m.Requires = append(m.Requires, name)
				if _, ok := requests[name]; !ok {
					names = append(names, name)
				}
				requests[name] = append(requests[name], request{from: m.Name, fp: fp})
			}
		}
		pending = nil

		var toLoad []string
		for _, name := range names {
			if _, ok := res.Modules[name]; !ok && !failed[name] {
				toLoad = append(toLoad, name)
			}
		}
		loaded, err := load(ctx, repo, toLoad, requests, o.parallel)
		if err != nil {
			return res, err
		}

		for _, name := range names {
			reqs := requests[name]
			if failed[name] {
				unresolved = appendRequired(unresolved, reqs)
				continue
			}
			if r, ok := loaded[name]; ok {
				if !r.found {
					failed[name] = true
					if o.report(reqs[0], diag.CodeModuleNotFound, name) {
						return res, ErrLinkAborted
					}
					unresolved = appendRequired(unresolved, reqs)
					continue
				}
				if r.file == nil {
					failed[name] = true
					if o.report(reqs[0], diag.CodeVersionNotAllowed, name, joinVersions(r.stored)) {
						return res, ErrLinkAborted
					}
					unresolved = appendRequired(unresolved, reqs)
					continue
				}
				m := &Module{Name: name, Version: r.ver, File: r.file}
				if o.ctx != nil {
					r.file.SetLinkerContext(o.ctx)
				}
				res.Modules[name] = m
				pending = append(pending, m)
				o.logger.Debug("linked module", "module", name, "version", r.ver, "by", reqs[0].from)
			}

			m, ok := res.Modules[name]
			if !ok {
				continue
			}
			for _, req := range reqs {
				graph.AddEdge(name, req.from)
				if !m.Version.IsZero() && !repository.Allows(req.fp, m.Version) {
					if o.report(req, diag.CodeVersionNotAllowed, name, m.Version) {
						return res, ErrLinkAborted
					}
					unresolved = appendRequired(unresolved, []request{req})
				}
			}
		}
	}

	order, err := graph.TopologicalSort()
	if err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			o.sink.Log(diag.SeverityError, diag.CodeDependencyCycle, []any{strings.Join(cycle.Cycle, " -> ")}, root.Name)
		}
		return res, err
	}
	res.Order = order

	if len(unresolved) > 0 {
		slices.Sort(unresolved)
		return res, &UnresolvedError{Modules: slices.Compact(unresolved)}
	}
	return res, nil
}

// load resolves and loads names in parallel. The first request for each name
// selects the version.
func load(ctx context.Context, repo repository.Repository, names []string, requests map[string][]request, parallel int) (map[string]loadResult, error) {
	results := make([]loadResult, len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(parallel, 1))
	for i, name := range names {
		eg.Go(func() error {
			stored, err := repo.Versions(gctx, name)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = loadResult{stored: stored, found: true}
			v, ok := repository.Select(stored, requests[name][0].fp)
			if !ok {
				return nil
			}
			file, err := repo.Find(gctx, name, v)
			if err != nil {
				return fmt.Errorf("loading %s %s: %w", name, v, err)
			}
			results[i].ver, results[i].file = v, file
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]loadResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

// report logs a diagnostic with a severity that follows the fingerprint type
// and returns whether the sink asks to stop.
func (o *linkOptions) report(req request, code string, params ...any) bool {
	sev := diag.SeverityInfo
	switch req.fp.ModuleType() {
	case component.ModuleRequired:
		sev = diag.SeverityError
	case component.ModuleDesired:
		sev = diag.SeverityWarning
	}
	return o.sink.Log(sev, code, params, req.from)
}

func appendRequired(unresolved []string, reqs []request) []string {
	for _, req := range reqs {
		if req.fp.ModuleType() == component.ModuleRequired {
			return append(unresolved, req.fp.Name())
		}
	}
	return unresolved
}

func joinVersions(vs []version.Version) string {
	if len(vs) == 0 {
		return "(none stored)"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
