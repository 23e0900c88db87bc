// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"sync"

	"xtcmod/pkg/component"
	"xtcmod/pkg/version"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Memory is a Repository that keeps encoded module files in memory. Every
// Find decodes a fresh FileStructure, so callers may modify what they find.
type Memory struct {
	mu      sync.RWMutex
	modules map[string]*version.Tree[[]byte]
	opts    options
}

// NewMemory creates an empty in-memory repository.
func NewMemory(opts ...Option) *Memory {
	return &Memory{modules: make(map[string]*version.Tree[[]byte]), opts: newOptions(opts)}
}

// Modules implements Repository.
func (m *Memory) Modules(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := maps.Keys(m.modules)
	slices.Sort(names)
	return names, nil
}

// Versions implements Repository.
func (m *Memory) Versions(ctx context.Context, name string) ([]version.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.modules[name]
	if !ok {
		return nil, &NotFoundError{Module: name}
	}
	return tree.Versions(), nil
}

// Find implements Repository.
func (m *Memory) Find(ctx context.Context, name string, v version.Version) (*component.FileStructure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	tree, ok := m.modules[name]
	var data []byte
	if ok {
		if v.IsZero() {
			v, ok = tree.FindHighest()
		}
		if ok {
			data, ok = tree.Get(v.Normalize())
		}
	}
	m.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Module: name, Version: v}
	}
	return component.Decode(data, m.opts.fileOpts...)
}

// Store implements Repository.
func (m *Memory) Store(ctx context.Context, f *component.FileStructure) error {
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

	m.mu.Lock()
	defer m.mu.Unlock()
	tree, ok := m.modules[f.ModuleName()]
	if !ok {
		tree = version.NewTree[[]byte]()
		m.modules[f.ModuleName()] = tree
	}
	for _, v := range vs {
		tree.Put(v, data)
	}
	m.opts.logger.Debug("stored module", "module", f.ModuleName(), "versions", vs, "size", len(data))
	return nil
}
