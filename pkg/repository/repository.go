// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"xtcmod/pkg/component"
	"xtcmod/pkg/version"

	"github.com/charmbracelet/log"
)

// Repository errors.
var (
	// ErrNotFound is returned when a module or module version is not in the repository.
	ErrNotFound = errors.New("module not found")
	// ErrCorrupt is returned when stored module bytes do not match their recorded digest.
	ErrCorrupt = errors.New("stored module is corrupt")
	// ErrReadOnly is returned when storing into a repository that does not accept modules.
	ErrReadOnly = errors.New("repository is read-only")
)

type (
	// Repository finds and stores module files. Implementations are safe for
	// concurrent use.
	Repository interface {
		// Modules returns the names of the stored modules in ascending order.
		Modules(ctx context.Context) ([]string, error)
		// Versions returns the stored versions of a module in ascending order.
		Versions(ctx context.Context, name string) ([]version.Version, error)
		// Find loads a module. A zero version selects the highest stored
		// version; any other version must be stored exactly.
		Find(ctx context.Context, name string, v version.Version) (*component.FileStructure, error)
		// Store adds a versioned module file, replacing any stored file that
		// carries the same module versions.
		Store(ctx context.Context, f *component.FileStructure) error
	}

	// NotFoundError identifies the module and version that could not be found.
	NotFoundError struct {
		Module  string
		Version version.Version
	}

	// Option configures a repository.
	Option func(*options)

	options struct {
		compression Compression
		logger      *log.Logger
		fileOpts    []component.FileOption
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Version.IsZero() {
		return fmt.Sprintf("module %q not found", e.Module)
	}
	return fmt.Sprintf("module %q version %s not found", e.Module, e.Version)
}

// Unwrap returns ErrNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// WithCompression selects the container compression for newly stored modules.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithLogger sets the logger used for repository activity.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFileOptions sets the options used when decoding found modules.
func WithFileOptions(opts ...component.FileOption) Option {
	return func(o *options) { o.fileOpts = append(o.fileOpts, opts...) }
}

func newOptions(opts []Option) options {
	o := options{compression: CompressionNone}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(io.Discard, log.Options{Prefix: "repository"})
	}
	return o
}

// Select picks the stored version to link against a fingerprint: the highest
// stored version substitutable for a preferred version, else the highest
// allowed stored version. It returns false when nothing stored is allowed.
func Select(stored []version.Version, fingerprint *component.Component) (version.Version, bool) {
	allowed := fingerprint.AllowedVersions()
	for _, p := range fingerprint.PreferredVersions() {
		for _, v := range slices.Backward(stored) {
			if v.IsSubstitutableFor(p) && allows(allowed, v) {
				return v, true
			}
		}
	}
	for _, v := range slices.Backward(stored) {
		if allows(allowed, v) {
			return v, true
		}
	}
	return version.Version{}, false
}

// Allows reports whether a fingerprint accepts v: v is substitutable for an
// allowed version and is not the same as an avoided one. Without any allowed
// entry, every version that is not avoided is accepted.
func Allows(fingerprint *component.Component, v version.Version) bool {
	return allows(fingerprint.AllowedVersions(), v)
}

func allows(allowed *version.Tree[bool], v version.Version) bool {
	if allowed.IsEmpty() {
		return true
	}
	restricted, ok := false, false
	for a, allow := range allowed.All() {
		switch {
		case !allow && v.IsSameAs(a):
			return false
		case allow:
			restricted = true
			ok = ok || v.IsSubstitutableFor(a)
		}
	}
	return ok || !restricted
}

// fileVersions returns the version labels under which f is stored.
func fileVersions(f *component.FileStructure) ([]version.Version, error) {
	vs := f.Versions()
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: %s", component.ErrNotVersioned, f.ModuleName())
	}
	return vs, nil
}
