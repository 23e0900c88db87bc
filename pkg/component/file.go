// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"fmt"
	"io"

	"xtcmod/internal/packed"
	"xtcmod/pkg/constant"
	"xtcmod/pkg/version"

	"github.com/charmbracelet/log"
)

// File header constants.
const (
	// Magic is the first word of every module file.
	Magic uint32 = 0xEC57A5EE
	// FileMajor is the binary format major version written by this package.
	FileMajor uint16 = 0
	// FileMinor is the binary format minor version written by this package.
	FileMinor uint16 = 1
)

var (
	// ErrBadMagic is returned when data does not start with Magic.
	ErrBadMagic = fmt.Errorf("%w: not a module file", packed.ErrFormat)
	// ErrUnsupportedVersion is returned for files written in an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported module file version")
)

type (
	// FileStructure is a module file: a constant pool plus the component
	// tree rooted at the file component. Its top-level children are the
	// primary module and any fingerprint or embedded modules.
	FileStructure struct {
		pool    *constant.Pool
		root    *Component
		primary *constant.ModuleConstant

		major, minor uint16

		ctx      constant.LinkerContext
		lazy     bool
		logger   *log.Logger
		versions *version.Tree[bool]

		deferredLoads int
		err           error
	}

	// FileOption configures a FileStructure.
	FileOption func(*FileStructure)

	// WriteOptions controls how a file is written.
	WriteOptions struct {
		// Optimize drops unused constants and orders the pool by use.
		Optimize bool
	}

	// UnsupportedVersionError reports the format version found in a file.
	UnsupportedVersionError struct {
		Major, Minor uint16
	}
)

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("module file version %d.%d is not supported (expected %d.%d or older minor)", e.Major, e.Minor, FileMajor, FileMinor)
}

// Unwrap returns ErrUnsupportedVersion so callers can use errors.Is for programmatic detection.
func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

// WithLazyChildren keeps nested children as raw bytes until first accessed.
func WithLazyChildren(lazy bool) FileOption {
	return func(f *FileStructure) { f.lazy = lazy }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *log.Logger) FileOption {
	return func(f *FileStructure) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithLinkerContext sets the context used to resolve conditional siblings.
func WithLinkerContext(ctx constant.LinkerContext) FileOption {
	return func(f *FileStructure) { f.ctx = ctx }
}

func newFile(opts []FileOption) *FileStructure {
	f := &FileStructure{
		pool:     constant.NewPool(),
		major:    FileMajor,
		minor:    FileMinor,
		logger:   log.NewWithOptions(io.Discard, log.Options{Prefix: "component"}),
		versions: version.NewTree[bool](),
	}
	f.root = &Component{file: f, flags: makeFlags(FormatFile, AccessPublic, false, false, false)}
	f.root.slot = &slot{members: []*Component{f.root}, kids: newChildSet()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New returns a file holding an empty primary module with the given
// qualified name.
func New(moduleName string, opts ...FileOption) (*FileStructure, error) {
	f := newFile(opts)
	id, err := f.pool.EnsureModule(moduleName)
	if err != nil {
		return nil, err
	}
	f.primary = id
	if _, err := f.root.createChild(FormatModule, id, &moduleBody{typ: ModulePrimary, allowed: version.NewTree[bool]()}, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// Read decodes a module file from r.
func Read(r io.Reader, opts ...FileOption) (*FileStructure, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data, opts...)
}

// Decode decodes a module file image.
func Decode(data []byte, opts ...FileOption) (*FileStructure, error) {
	f := newFile(opts)
	r := packed.NewReader(data)

	magic, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w (found 0x%08X)", ErrBadMagic, magic)
	}
	if f.major, err = r.Uint16(); err != nil {
		return nil, err
	}
	if f.minor, err = r.Uint16(); err != nil {
		return nil, err
	}
	if f.major != FileMajor || f.minor > FileMinor {
		return nil, &UnsupportedVersionError{Major: f.major, Minor: f.minor}
	}

	if err := f.pool.Decode(r); err != nil {
		return nil, err
	}
	if f.primary, err = readConstant[*constant.ModuleConstant](r, f.pool, false, "primary module"); err != nil {
		return nil, err
	}
	if err := f.readChildren(r, f.root.slot, f.lazy); err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, &packed.FormatError{Offset: r.Offset(), What: "trailing bytes after module file", Err: ErrBadStructure}
	}

	mod := f.Module()
	if mod == nil || mod.IsFingerprint() {
		return nil, &packed.FormatError{Offset: r.Offset(), What: "primary module " + f.primary.Name() + " not defined", Err: ErrBadStructure}
	}
	if v := mod.Version(); !v.IsZero() {
		f.versions.Put(v.Normalize(), true)
		for _, m := range mod.Siblings() {
			for _, label := range f.labelsOf(m.cond) {
				f.versions.Put(label, true)
			}
		}
	}
	f.logger.Debug("read module file", "module", f.primary.Name(), "bytes", len(data), "constants", f.pool.Len(), "lazy", f.lazy)
	return f, nil
}

// Bytes encodes the file. All deferred children are loaded first, the pool
// goes through a registration pass and, with Optimize, is compacted.
func (f *FileStructure) Bytes(opts WriteOptions) ([]byte, error) {
	if err := f.loadAll(); err != nil {
		return nil, err
	}
	p := f.pool
	p.PreRegisterAll()
	f.primary = p.Register(f.primary).(*constant.ModuleConstant)
	registerTree(f.root.slot, p)
	p.PostRegisterAll(opts.Optimize)

	w := packed.NewWriter()
	w.PutUint32(Magic)
	w.PutUint16(FileMajor)
	w.PutUint16(FileMinor)
	p.Encode(w)
	w.PutIndex(f.primary.Position())
	writeChildren(w, f.root.slot.kids, p)

	f.major, f.minor = FileMajor, FileMinor
	resetTree(f.root.slot)
	f.logger.Debug("wrote module file", "module", f.primary.Name(), "bytes", w.Len(), "constants", p.Len(), "optimized", opts.Optimize)
	return w.Bytes(), nil
}

// Write encodes the file to w.
func (f *FileStructure) Write(w io.Writer, opts WriteOptions) error {
	data, err := f.Bytes(opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func registerTree(s *slot, p *constant.Pool) {
	for _, child := range s.kids.order {
		for _, m := range child.members {
			m.register(p)
		}
		registerTree(child, p)
	}
}

func resetTree(s *slot) {
	for _, m := range s.members {
		m.modified = false
	}
	if s.kids.raw != nil {
		return
	}
	for _, child := range s.kids.order {
		resetTree(child)
	}
}

// loadDeferred decodes the raw children of s. A decoding failure is kept and
// reported by Err; the slot then has no children.
func (f *FileStructure) loadDeferred(s *slot) {
	raw := s.kids.raw
	s.kids.raw = nil
	f.deferredLoads++
	if err := f.decodeNested(s, raw, f.lazy); err != nil {
		s.kids.order, s.kids.byKey = nil, make(map[string]*slot)
		if f.err == nil {
			f.err = err
		}
		f.logger.Error("deferred children failed to decode", "path", s.members[0].Path(), "err", err)
		return
	}
	f.logger.Debug("loaded deferred children", "path", s.members[0].Path(), "bytes", len(raw))
}

// loadAll decodes every deferred child block.
func (f *FileStructure) loadAll() error {
	f.root.VisitChildren(func(*Component) bool { return true }, false, true)
	return f.err
}

// Err returns the first error met while decoding deferred children.
func (f *FileStructure) Err() error { return f.err }

// DeferredLoads returns how many deferred child blocks have been decoded.
func (f *FileStructure) DeferredLoads() int { return f.deferredLoads }

// IsLazy reports whether nested children are decoded on demand.
func (f *FileStructure) IsLazy() bool { return f.lazy }

// Pool returns the file's constant pool.
func (f *FileStructure) Pool() *constant.Pool { return f.pool }

// Root returns the file component whose children are the modules.
func (f *FileStructure) Root() *Component { return f.root }

// FormatVersion returns the binary format version the file was read with, or
// the current one for files created in memory.
func (f *FileStructure) FormatVersion() (major, minor uint16) { return f.major, f.minor }

// ModuleName returns the qualified name of the primary module.
func (f *FileStructure) ModuleName() string { return f.primary.Name() }

// ModuleID returns the identity of the primary module.
func (f *FileStructure) ModuleID() *constant.ModuleConstant { return f.primary }

// Module returns the primary module component.
func (f *FileStructure) Module() *Component {
	m, _ := f.ModuleByName(f.primary.Name())
	return m
}

// ModuleByName returns the eldest module component with the given name.
func (f *FileStructure) ModuleByName(name string) (*Component, bool) {
	s, ok := f.root.children().byKey[name]
	if !ok {
		return nil, false
	}
	return s.members[0], true
}

// Modules returns every top-level module, primary first in file order.
func (f *FileStructure) Modules() []*Component { return f.root.Children() }

// FingerprintModules returns the fingerprint modules of the file.
func (f *FileStructure) FingerprintModules() []*Component {
	var out []*Component
	for _, m := range f.Modules() {
		if m.IsFingerprint() {
			out = append(out, m)
		}
	}
	return out
}

// EnsureFingerprint returns the fingerprint for the named module, creating it
// with the given type when the file has none.
func (f *FileStructure) EnsureFingerprint(name string, typ ModuleType) (*Component, error) {
	if !typ.IsFingerprint() {
		return nil, fmt.Errorf("%s is not a fingerprint module type", typ)
	}
	if m, ok := f.ModuleByName(name); ok {
		if !m.IsFingerprint() {
			return nil, &SiblingError{Parent: "file", Name: name}
		}
		return m, nil
	}
	id, err := f.pool.EnsureModule(name)
	if err != nil {
		return nil, err
	}
	return f.root.createChild(FormatModule, id, &moduleBody{typ: typ, allowed: version.NewTree[bool]()}, []CreateOption{AsSynthetic()})
}

// EmbedModule adds an embedded copy of another module with the given version.
func (f *FileStructure) EmbedModule(name string, v version.Version) (*Component, error) {
	if _, ok := f.ModuleByName(name); ok {
		return nil, &SiblingError{Parent: "file", Name: name}
	}
	id, err := f.pool.EnsureModule(name)
	if err != nil {
		return nil, err
	}
	return f.root.createChild(FormatModule, id, &moduleBody{
		typ:     ModuleEmbedded,
		ver:     f.pool.EnsureVersion(v),
		allowed: version.NewTree[bool](),
	}, nil)
}

// LinkerContext returns the context used by Child lookups, or nil.
func (f *FileStructure) LinkerContext() constant.LinkerContext { return f.ctx }

// SetLinkerContext replaces the context used by Child lookups.
func (f *FileStructure) SetLinkerContext(ctx constant.LinkerContext) { f.ctx = ctx }

// IsModified reports whether any decoded component changed since the file
// was read or last written.
func (f *FileStructure) IsModified() bool {
	modified := false
	var walk func(s *slot)
	walk = func(s *slot) {
		for _, m := range s.members {
			modified = modified || m.modified
		}
		if s.kids.raw != nil {
			return
		}
		for _, child := range s.kids.order {
			walk(child)
		}
	}
	walk(f.root.slot)
	return modified
}
