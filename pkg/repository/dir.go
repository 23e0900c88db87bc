// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"xtcmod/internal/codec"
	"xtcmod/pkg/component"
	"xtcmod/pkg/version"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	// IndexFile is the name of the index inside a repository directory.
	IndexFile = "index.cbor"

	indexFormat = 1
)

// ErrIndexFormat is returned when the repository index has an unsupported format.
var ErrIndexFormat = errors.New("unsupported repository index format")

type (
	// Entry is the index record of one stored module version. A file that
	// carries several versions has one entry per version, all naming the
	// same file.
	Entry struct {
		Module      string             `cbor:"module"`
		Version     version.Version    `cbor:"version"`
		File        string             `cbor:"file"`
		Compression Compression        `cbor:"compression"`
		Size        int                `cbor:"size"`
		Stored      int                `cbor:"stored"`
		Digest      Digest             `cbor:"digest"`
		Manifest    component.Manifest `cbor:"manifest"`
	}

	index struct {
		Format  int     `cbor:"format"`
		Entries []Entry `cbor:"entries"`
	}

	// Dir is a Repository backed by a directory of module files and an
	// index. Module files are named "<module>-<version>" plus the container
	// extension.
	Dir struct {
		root    string
		mu      sync.RWMutex
		entries map[string]*version.Tree[Entry]
		opts    options
	}
)

// OpenDir opens the repository in root, creating the directory when needed.
func OpenDir(root string, opts ...Option) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating repository directory: %w", err)
	}
	d := &Dir{root: root, entries: make(map[string]*version.Tree[Entry]), opts: newOptions(opts)}

	data, err := os.ReadFile(filepath.Join(root, IndexFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("reading repository index: %w", err)
	}
	var idx index
	if err := codec.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding repository index: %w", err)
	}
	if idx.Format != indexFormat {
		return nil, fmt.Errorf("%w: %d", ErrIndexFormat, idx.Format)
	}
	for _, e := range idx.Entries {
		d.put(e)
	}
	d.opts.logger.Debug("opened repository", "root", root, "entries", len(idx.Entries))
	return d, nil
}

// Root returns the repository directory.
func (d *Dir) Root() string { return d.root }

// Modules implements Repository.
func (d *Dir) Modules(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := maps.Keys(d.entries)
	slices.Sort(names)
	return names, nil
}

// Versions implements Repository.
func (d *Dir) Versions(ctx context.Context, name string) ([]version.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	tree, ok := d.entries[name]
	if !ok {
		return nil, &NotFoundError{Module: name}
	}
	return tree.Versions(), nil
}

// Entry returns the index record of a module version. A zero version selects
// the highest stored version.
func (d *Dir) Entry(name string, v version.Version) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entry(name, v)
}

func (d *Dir) entry(name string, v version.Version) (Entry, bool) {
	tree, ok := d.entries[name]
	if !ok {
		return Entry{}, false
	}
	if v.IsZero() {
		if v, ok = tree.FindHighest(); !ok {
			return Entry{}, false
		}
	}
	return tree.Get(v.Normalize())
}

// Entries returns every index record, ordered by module then version.
func (d *Dir) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sortedEntries()
}

// Find implements Repository. The stored bytes are checked against the
// recorded digest before decoding.
func (d *Dir) Find(ctx context.Context, name string, v version.Version) (*component.FileStructure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := d.Entry(name, v)
	if !ok {
		return nil, &NotFoundError{Module: name, Version: v}
	}
	data, err := d.load(e)
	if err != nil {
		return nil, err
	}
	return component.Decode(data, d.opts.fileOpts...)
}

// Store implements Repository. Files left without any indexed version are
// removed.
func (d *Dir) Store(ctx context.Context, f *component.FileStructure) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vs, err := fileVersions(f)
	if err != nil {
		return err
	}
	data, err := f.Bytes(component.WriteOptions{})
	if err != nil {
		return err
	}
	packed, used, err := compress(data, d.opts.compression)
	if err != nil {
		return err
	}
	entry := Entry{
		Module:      f.ModuleName(),
		File:        f.ModuleName() + "-" + vs[len(vs)-1].String() + used.Ext(),
		Compression: used,
		Size:        len(data),
		Stored:      len(packed),
		Digest:      DigestOf(data),
		Manifest:    f.Manifest(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := writeAtomic(filepath.Join(d.root, entry.File), packed); err != nil {
		return err
	}
	var replaced []string
	for _, v := range vs {
		if old, ok := d.entry(entry.Module, v); ok && old.File != entry.File {
			replaced = append(replaced, old.File)
		}
		e := entry
		e.Version = v
		d.put(e)
	}
	if err := d.saveIndex(); err != nil {
		return err
	}
	d.removeOrphans(replaced)
	d.opts.logger.Debug("stored module",
		"module", entry.Module, "versions", vs, "file", entry.File,
		"compression", used, "size", entry.Size, "stored", entry.Stored)
	return nil
}

// Remove drops a module version from the index, deleting its file once no
// version refers to it.
func (d *Dir) Remove(ctx context.Context, name string, v version.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entry(name, v)
	if v.IsZero() || !ok {
		return &NotFoundError{Module: name, Version: v}
	}
	tree := d.entries[name]
	tree.Remove(e.Version)
	if tree.IsEmpty() {
		delete(d.entries, name)
	}
	if err := d.saveIndex(); err != nil {
		return err
	}
	d.removeOrphans([]string{e.File})
	return nil
}

// Verify checks every stored file against its recorded digest and returns
// the joined failures.
func (d *Dir) Verify(ctx context.Context) error {
	seen := make(map[string]bool)
	var errs []error
	for _, e := range d.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen[e.File] {
			continue
		}
		seen[e.File] = true
		if _, err := d.load(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reindex rebuilds the index from the module files in the directory.
// Unreadable and unversioned files are skipped with a warning.
func (d *Dir) Reindex(ctx context.Context) error {
	dirents, err := os.ReadDir(d.root)
	if err != nil {
		return fmt.Errorf("reading repository directory: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*version.Tree[Entry])
	for _, de := range dirents {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, ok := compressionOf(de.Name())
		if de.IsDir() || !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(d.root, de.Name()))
		if err != nil {
			return fmt.Errorf("reading %s: %w", de.Name(), err)
		}
		data, err := decompress(raw, c)
		if err != nil {
			d.opts.logger.Warn("skipping unreadable module file", "file", de.Name(), "err", err)
			continue
		}
		f, err := component.Decode(data, component.WithLazyChildren(true))
		if err != nil {
			d.opts.logger.Warn("skipping unreadable module file", "file", de.Name(), "err", err)
			continue
		}
		if !f.IsVersioned() {
			d.opts.logger.Warn("skipping unversioned module file", "file", de.Name(), "module", f.ModuleName())
			continue
		}
		for _, v := range f.Versions() {
			d.put(Entry{
				Module:      f.ModuleName(),
				Version:     v,
				File:        de.Name(),
				Compression: c,
				Size:        len(data),
				Stored:      len(raw),
				Digest:      DigestOf(data),
				Manifest:    f.Manifest(),
			})
		}
	}
	return d.saveIndex()
}

func (d *Dir) put(e Entry) {
	tree, ok := d.entries[e.Module]
	if !ok {
		tree = version.NewTree[Entry]()
		d.entries[e.Module] = tree
	}
	tree.Put(e.Version, e)
}

func (d *Dir) load(e Entry) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(d.root, e.File))
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", e.Module, err)
	}
	data, err := decompress(raw, e.Compression)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", e.File, ErrCorrupt, err)
	}
	if got := DigestOf(data); got != e.Digest {
		return nil, &DigestMismatchError{File: e.File, Want: e.Digest, Got: got}
	}
	return data, nil
}

func (d *Dir) sortedEntries() []Entry {
	names := maps.Keys(d.entries)
	slices.Sort(names)
	var out []Entry
	for _, name := range names {
		for _, e := range d.entries[name].All() {
			out = append(out, e)
		}
	}
	return out
}

func (d *Dir) saveIndex() error {
	data, err := codec.Marshal(index{Format: indexFormat, Entries: d.sortedEntries()})
	if err != nil {
		return fmt.Errorf("encoding repository index: %w", err)
	}
	return writeAtomic(filepath.Join(d.root, IndexFile), data)
}

// removeOrphans deletes the named files that no index entry refers to.
func (d *Dir) removeOrphans(files []string) {
	if len(files) == 0 {
		return
	}
	used := make(map[string]bool)
	for _, tree := range d.entries {
		for _, e := range tree.All() {
			used[e.File] = true
		}
	}
	slices.Sort(files)
	for _, file := range slices.Compact(files) {
		if used[file] {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, file)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.opts.logger.Warn("removing replaced module file", "file", file, "err", err)
		}
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := cmp.Or(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
