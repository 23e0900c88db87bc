// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"slices"
	"testing"

	"xtcmod/internal/testutil/moduletest"
	"xtcmod/pkg/version"
)

func TestChain(t *testing.T) {
	t.Parallel()
	exercise(t, NewChain(NewMemory(), NewMemory()))
}

func TestChain_SearchOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local, shared := NewMemory(), NewMemory()
	for _, step := range []struct {
		repo Repository
		ver  string
		n    int
	}{
		{local, "1.0", 1},
		{shared, "1.0", 2},
		{shared, "2.0", 0},
	} {
		f := moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion(step.ver), moduletest.WithClasses(step.n))
		if err := step.repo.Store(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	c := NewChain(local, shared)
	vs, err := c.Versions(ctx, "json.xtclang.org")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.EqualFunc(vs, versions("1.0", "2.0"), version.Version.Equal) {
		t.Errorf("Versions() = %v", vs)
	}

	f, err := c.Find(ctx, "json.xtclang.org", version.MustParse("1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Module().ChildCount(); got != 1 {
		t.Errorf("1.0 came from the wrong repository: %d classes", got)
	}
	f, err = c.Find(ctx, "json.xtclang.org", version.Version{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.ContainsVersion(version.MustParse("2.0")) {
		t.Errorf("highest = %v", f.Versions())
	}

	if err := NewChain().Store(ctx, f); !errors.Is(err, ErrReadOnly) {
		t.Errorf("empty chain Store error = %v", err)
	}
}
