// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"testing"

	"xtcmod/internal/testutil/moduletest"
	"xtcmod/pkg/version"
)

func versions(ss ...string) []version.Version {
	out := make([]version.Version, len(ss))
	for i, s := range ss {
		out[i] = version.MustParse(s).Normalize()
	}
	return out
}

func TestSelect(t *testing.T) {
	t.Parallel()

	stored := versions("1.0", "1.1", "1.2", "2.0")
	tests := []struct {
		name string
		deps []moduletest.DepOption
		want string
	}{
		{name: "no constraints picks highest", want: "2.0"},
		{name: "allowed branch", deps: []moduletest.DepOption{moduletest.Allow("1.0")}, want: "1.2"},
		{name: "avoided version skipped", deps: []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Avoid("1.2")}, want: "1.1"},
		{name: "preferred over highest", deps: []moduletest.DepOption{moduletest.Allow("1.0", "2.0"), moduletest.Prefer("1.1")}, want: "1.2"},
		{name: "unmatched preference", deps: []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Prefer("3.0")}, want: "1.2"},
		{name: "nothing acceptable", deps: []moduletest.DepOption{moduletest.Allow("3.0")}, want: ""},
		{name: "only avoided entries", deps: []moduletest.DepOption{moduletest.Avoid("2.0")}, want: "1.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := moduletest.NewModule(t, "app.example.org", moduletest.WithDependency("json.xtclang.org", tt.deps...))
			fp, ok := f.ModuleByName("json.xtclang.org")
			if !ok {
				t.Fatal("fingerprint missing")
			}
			got, ok := Select(stored, fp)
			if tt.want == "" {
				if ok {
					t.Errorf("Select() = %s, want nothing", got)
				}
				return
			}
			if !ok || !got.Equal(version.MustParse(tt.want).Normalize()) {
				t.Errorf("Select() = %s, %v; want %s", got, ok, tt.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	_, err := m.Find(ctx, "missing.example.org", version.MustParse("1.0"))
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Find error = %v, want *NotFoundError", err)
	}
	if nf.Module != "missing.example.org" || !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFoundError = %+v", nf)
	}
	if got := nf.Error(); got != `module "missing.example.org" version 1.0 not found` {
		t.Errorf("Error() = %q", got)
	}
}

func TestAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deps []moduletest.DepOption
		v    string
		want bool
	}{
		{"allowed", []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Avoid("1.3")}, "1.0", true},
		{"substitutable", []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Avoid("1.3")}, "1.2", true},
		{"avoided", []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Avoid("1.3")}, "1.3", false},
		{"avoided same", []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Avoid("1.3")}, "1.3.0", false},
		{"older than allowed", []moduletest.DepOption{moduletest.Allow("1.0"), moduletest.Avoid("1.3")}, "0.9", false},
		{"avoid only accepts others", []moduletest.DepOption{moduletest.Avoid("1.1")}, "1.2", true},
		{"avoid only accepts other branch", []moduletest.DepOption{moduletest.Avoid("1.1")}, "2.0", true},
		{"avoid only rejects avoided", []moduletest.DepOption{moduletest.Avoid("1.1")}, "1.1", false},
		{"no entries", nil, "3.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := moduletest.NewModule(t, "app.example.org", moduletest.WithDependency("json.xtclang.org", tt.deps...))
			fp, ok := f.ModuleByName("json.xtclang.org")
			if !ok {
				t.Fatal("fingerprint missing")
			}
			if got := Allows(fp, version.MustParse(tt.v)); got != tt.want {
				t.Errorf("Allows(%s) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}
