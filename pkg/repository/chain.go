// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"

	"xtcmod/pkg/component"
	"xtcmod/pkg/version"

	"golang.org/x/exp/slices"
)

// Chain is a Repository that searches its members in order. Modules and
// versions are the union of the members; stores go to the first member.
type Chain struct {
	repos []Repository
}

// NewChain returns a chain over repos. The first repository receives stores.
func NewChain(repos ...Repository) *Chain {
	return &Chain{repos: slices.Clone(repos)}
}

// Modules implements Repository.
func (c *Chain) Modules(ctx context.Context) ([]string, error) {
	var names []string
	for _, r := range c.repos {
		more, err := r.Modules(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, more...)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Versions implements Repository.
func (c *Chain) Versions(ctx context.Context, name string) ([]version.Version, error) {
	all := version.NewTree[bool]()
	for _, r := range c.repos {
		vs, err := r.Versions(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, v := range vs {
			all.Put(v, true)
		}
	}
	if all.IsEmpty() {
		return nil, &NotFoundError{Module: name}
	}
	return all.Versions(), nil
}

// Find implements Repository. A zero version selects the highest version
// across all members.
func (c *Chain) Find(ctx context.Context, name string, v version.Version) (*component.FileStructure, error) {
	if v.IsZero() {
		vs, err := c.Versions(ctx, name)
		if err != nil {
			return nil, err
		}
		v = vs[len(vs)-1]
	}
	for _, r := range c.repos {
		f, err := r.Find(ctx, name, v)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return f, err
	}
	return nil, &NotFoundError{Module: name, Version: v}
}

// Store implements Repository.
func (c *Chain) Store(ctx context.Context, f *component.FileStructure) error {
	if len(c.repos) == 0 {
		return ErrReadOnly
	}
	return c.repos[0].Store(ctx, f)
}
