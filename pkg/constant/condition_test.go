// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"errors"
	"testing"

	"xtcmod/pkg/version"
)

// fakeContext answers linker questions from fixed tables.
type fakeContext struct {
	defined map[string]bool
	visible map[string][]version.Version
	linked  version.Version
}

func (f *fakeContext) IsSpecified(name string) bool { return f.defined[name] }

func (f *fakeContext) IsVisible(id IdentityConstant) bool {
	_, ok := f.visible[id.Path()]
	return ok
}

func (f *fakeContext) IsVisibleVersion(id IdentityConstant, ver version.Version, exact bool) bool {
	for _, v := range f.visible[id.Path()] {
		if exact && v.Equal(ver) || !exact && v.IsSubstitutableFor(ver) {
			return true
		}
	}
	return false
}

func (f *fakeContext) IsVersionMatch(ver version.Version, exact bool) bool {
	if exact {
		return f.linked.Equal(ver)
	}
	return f.linked.IsSubstitutableFor(ver)
}

func mustNamed(t *testing.T, p *Pool, name string) *NamedCondition {
	t.Helper()
	c, err := p.EnsureNamedCondition(name)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCondition_Evaluate(t *testing.T) {
	t.Parallel()

	p := NewPool()
	mod := mustModule(t, p, "lib")
	cls := mustClass(t, p, mod, "Widget")
	gone := mustClass(t, p, mod, "Gadget")

	ctx := &fakeContext{
		defined: map[string]bool{"debug": true},
		visible: map[string][]version.Version{"lib:Widget": {version.MustParse("1.2")}},
		linked:  version.MustParse("2.1"),
	}

	debug := mustNamed(t, p, "debug")
	test := mustNamed(t, p, "test")
	present, _ := p.EnsurePresentCondition(cls, version.Version{}, false)
	absent, _ := p.EnsurePresentCondition(gone, version.Version{}, false)
	presentExact, _ := p.EnsurePresentCondition(cls, version.MustParse("1.2"), true)
	presentOther, _ := p.EnsurePresentCondition(cls, version.MustParse("1.3"), true)
	match, _ := p.EnsureVersionMatchCondition(version.MustParse("2"), false)
	matchExact, _ := p.EnsureVersionMatchCondition(version.MustParse("2"), true)
	notDebug, _ := p.EnsureNotCondition(debug)
	all, _ := p.EnsureAllCondition(debug, present, match)
	allFalse, _ := p.EnsureAllCondition(debug, test)
	anyTrue, _ := p.EnsureAnyCondition(test, present)
	anyFalse, _ := p.EnsureAnyCondition(test, absent)
	one, _ := p.EnsureExactlyOneCondition(test, debug, absent)
	two, _ := p.EnsureExactlyOneCondition(debug, present, test)
	none, _ := p.EnsureExactlyOneCondition(test, absent)

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"nil", nil, true},
		{"named defined", debug, true},
		{"named undefined", test, false},
		{"present", present, true},
		{"absent", absent, false},
		{"present exact", presentExact, true},
		{"present other version", presentOther, false},
		{"version substitutable", match, true},
		{"version exact", matchExact, false},
		{"not", notDebug, false},
		{"all", all, true},
		{"all false", allFalse, false},
		{"any true", anyTrue, true},
		{"any false", anyFalse, false},
		{"exactly one", one, true},
		{"exactly one with two true", two, false},
		{"exactly one with none true", none, false},
	}
	for _, tt := range tests {
		if got := Evaluate(tt.cond, ctx); got != tt.want {
			t.Errorf("%s: Evaluate(%v) = %v, want %v", tt.name, tt.cond, got, tt.want)
		}
	}
}

func TestCondition_String(t *testing.T) {
	t.Parallel()

	p := NewPool()
	cls := mustClass(t, p, mustModule(t, p, "lib"), "Widget")
	debug := mustNamed(t, p, "debug")
	present, _ := p.EnsurePresentCondition(cls, version.MustParse("1.0"), true)
	match, _ := p.EnsureVersionMatchCondition(version.MustParse("2-rc1"), false)
	not, _ := p.EnsureNotCondition(debug)
	all, _ := p.EnsureAllCondition(not, present)
	anyOf, _ := p.EnsureAnyCondition(debug, match)
	one, _ := p.EnsureExactlyOneCondition(debug, match)

	tests := []struct {
		cond Condition
		want string
	}{
		{debug, "named(debug)"},
		{present, "present(lib:Widget, 1.0, exact)"},
		{match, "version(2-rc1)"},
		{not, "!named(debug)"},
		{all, "(!named(debug) && present(lib:Widget, 1.0, exact))"},
		{anyOf, "(named(debug) || version(2-rc1))"},
		{one, "one(named(debug), version(2-rc1))"},
	}
	for _, tt := range tests {
		if got := tt.cond.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCondition_Invalid(t *testing.T) {
	t.Parallel()

	p := NewPool()
	debug := mustNamed(t, p, "debug")
	cls := mustClass(t, p, mustModule(t, p, "lib"), "Widget")

	tests := []struct {
		name string
		fn   func() error
	}{
		{"empty name", func() error { _, err := p.EnsureNamedCondition(""); return err }},
		{"present without target", func() error {
			_, err := p.EnsurePresentCondition(nil, version.Version{}, false)
			return err
		}},
		{"exact without version", func() error {
			_, err := p.EnsurePresentCondition(cls, version.Version{}, true)
			return err
		}},
		{"version match without version", func() error {
			_, err := p.EnsureVersionMatchCondition(version.Version{}, false)
			return err
		}},
		{"not nil", func() error { _, err := p.EnsureNotCondition(nil); return err }},
		{"all of one", func() error { _, err := p.EnsureAllCondition(debug); return err }},
		{"any with nil", func() error { _, err := p.EnsureAnyCondition(debug, nil); return err }},
	}
	for _, tt := range tests {
		if err := tt.fn(); !errors.Is(err, ErrInvalidCondition) {
			t.Errorf("%s: error = %v, want ErrInvalidCondition", tt.name, err)
		}
	}
}

func TestCondition_Interned(t *testing.T) {
	t.Parallel()

	p := NewPool()
	a := mustNamed(t, p, "a")
	b := mustNamed(t, p, "b")
	x, _ := p.EnsureAllCondition(a, b)
	y, _ := p.EnsureAllCondition(a, b)
	z, _ := p.EnsureAllCondition(b, a)
	if x != y {
		t.Error("equal conjunctions were not interned")
	}
	if x == z {
		t.Error("operand order should distinguish conjunctions")
	}
	n1, _ := p.EnsureNotCondition(a)
	n2, _ := p.EnsureNotCondition(a)
	if n1 != n2 {
		t.Error("equal negations were not interned")
	}
}
