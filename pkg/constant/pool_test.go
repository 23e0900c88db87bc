// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"errors"
	"testing"

	"xtcmod/pkg/version"
)

func mustModule(t *testing.T, p *Pool, name string) *ModuleConstant {
	t.Helper()
	m, err := p.EnsureModule(name)
	if err != nil {
		t.Fatalf("EnsureModule(%q): %v", name, err)
	}
	return m
}

func mustClass(t *testing.T, p *Pool, parent IdentityConstant, name string) *ClassConstant {
	t.Helper()
	c, err := p.EnsureClass(parent, name)
	if err != nil {
		t.Fatalf("EnsureClass(%q): %v", name, err)
	}
	return c
}

func TestPool_EnsureInterns(t *testing.T) {
	t.Parallel()

	p := NewPool()
	a := p.EnsureString("hello")
	size := p.Len()
	b := p.EnsureString("hello")
	if a != b {
		t.Error("EnsureString returned distinct instances for equal values")
	}
	if p.Len() != size {
		t.Errorf("pool grew from %d to %d on a repeated ensure", size, p.Len())
	}

	m1 := mustModule(t, p, "ecstasy.xtclang.org")
	m2 := mustModule(t, p, "ecstasy.xtclang.org")
	if m1 != m2 {
		t.Error("EnsureModule returned distinct instances for the same name")
	}
	if got := p.EnsureVersion(version.MustParse("1.2")); got != p.EnsureVersion(version.MustParse("1.2")) {
		t.Error("EnsureVersion returned distinct instances")
	}
	if p.EnsureVersion(version.Version{}) != nil {
		t.Error("EnsureVersion(zero) should be nil")
	}
}

func TestPool_RegisterCanonicalizes(t *testing.T) {
	t.Parallel()

	p := NewPool()
	canonical := p.EnsureByteString([]byte{1, 2, 3})
	dup := &ByteStringConstant{header: newHeader(p), value: []byte{1, 2, 3}}

	if got := p.Register(dup); got != canonical {
		t.Errorf("Register(dup) = %p, want canonical %p", got, canonical)
	}
	if dup.Position() != -1 {
		t.Errorf("duplicate should stay unregistered, position = %d", dup.Position())
	}
	if p.Register(nil) != nil {
		t.Error("Register(nil) should return nil")
	}
	if p.Lookup(&StringConstant{header: newHeader(p), value: "missing"}) != nil {
		t.Error("Lookup should not find an absent constant")
	}
}

func TestPool_PositionsMatchOrder(t *testing.T) {
	t.Parallel()

	p := NewPool()
	mod := mustModule(t, p, "app")
	mustClass(t, p, mod, "Main")
	p.EnsureInt(-42)

	for i, c := range p.Constants() {
		if c.Position() != i {
			t.Errorf("constant %s at index %d reports position %d", c, i, c.Position())
		}
		if p.At(i) != c {
			t.Errorf("At(%d) mismatch", i)
		}
	}
}

func TestPool_ForeignConstantPanics(t *testing.T) {
	t.Parallel()

	p1, p2 := NewPool(), NewPool()
	s := p1.EnsureString("x")

	defer func() {
		r := recover()
		if _, ok := r.(*ForeignConstantError); !ok {
			t.Fatalf("recover() = %v, want *ForeignConstantError", r)
		}
	}()
	p2.Register(s)
}

func TestPool_RegistrationPassCountsReferences(t *testing.T) {
	t.Parallel()

	p := NewPool()
	mod := mustModule(t, p, "app")
	cls := mustClass(t, p, mod, "Main")
	p.EnsureString("unused")

	p.PreRegisterAll()
	if !p.IsRegistering() {
		t.Fatal("IsRegistering() = false during a pass")
	}
	p.Register(cls)
	p.Register(cls)
	p.Register(mod)
	p.PostRegisterAll(false)

	tests := []struct {
		c    Constant
		want int
	}{
		{cls, 2},
		{mod, 2},
		{p.Lookup(&StringConstant{header: newHeader(p), value: "app"}), 1},
		{p.Lookup(&StringConstant{header: newHeader(p), value: "Main"}), 1},
		{p.Lookup(&StringConstant{header: newHeader(p), value: "unused"}), 0},
	}
	for _, tt := range tests {
		if tt.c.RefCount() != tt.want {
			t.Errorf("RefCount(%s) = %d, want %d", tt.c, tt.c.RefCount(), tt.want)
		}
	}
}

func TestPool_OptimizeDropsAndSorts(t *testing.T) {
	t.Parallel()

	p := NewPool()
	unused := p.EnsureString("unused")
	mod := mustModule(t, p, "app")
	hot := p.EnsureInt(7)

	p.PreRegisterAll()
	for range 3 {
		p.Register(hot)
	}
	p.Register(mod)
	p.PostRegisterAll(true)

	if unused.Position() != -1 {
		t.Errorf("unreferenced constant kept at position %d", unused.Position())
	}
	if p.Lookup(unused) != nil {
		t.Error("unreferenced constant still indexed")
	}
	for i := 1; i < p.Len(); i++ {
		if p.At(i-1).RefCount() < p.At(i).RefCount() {
			t.Errorf("ref counts not descending at %d: %d < %d", i, p.At(i-1).RefCount(), p.At(i).RefCount())
		}
		if p.At(i).Position() != i {
			t.Errorf("position %d reports %d", i, p.At(i).Position())
		}
	}
	if p.At(0) != hot {
		t.Errorf("At(0) = %s, want the most referenced constant", p.At(0))
	}

	// dropped constants can be re-registered as new entries
	again := p.EnsureString("unused")
	if again.Position() != p.Len()-1 {
		t.Errorf("re-ensured constant at %d, want %d", again.Position(), p.Len()-1)
	}
}

func TestPool_PassMisuse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(p *Pool)
	}{
		{"post without pre", func(p *Pool) { p.PostRegisterAll(false) }},
		{"nested pre", func(p *Pool) { p.PreRegisterAll(); p.PreRegisterAll() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewPool())
		})
	}
}

func TestPool_Stats(t *testing.T) {
	t.Parallel()

	p := NewPool()
	p.EnsureString("a")
	p.EnsureString("b")
	p.EnsureInt(1)

	stats := p.Stats()
	want := map[Format]int{FormatString: 2, FormatInt: 1}
	if len(stats) != len(want) {
		t.Fatalf("Stats() = %v, want %v", stats, want)
	}
	for _, s := range stats {
		if want[s.Format] != s.Count {
			t.Errorf("%s count = %d, want %d", s.Format, s.Count, want[s.Format])
		}
	}
}

func TestPool_IdentityValidation(t *testing.T) {
	t.Parallel()

	p := NewPool()
	mod := mustModule(t, p, "app")
	cls := mustClass(t, p, mod, "Main")
	prop, err := p.EnsureProperty(cls, "size")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.EnsureModule("bad name"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("EnsureModule(bad name) error = %v, want ErrInvalidName", err)
	}
	if _, err := p.EnsureClass(mod, "1st"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("EnsureClass(1st) error = %v, want ErrInvalidName", err)
	}
	if _, err := p.EnsurePackage(cls, "pkg"); !errors.Is(err, ErrInvalidParent) {
		t.Errorf("EnsurePackage under class error = %v, want ErrInvalidParent", err)
	}
	if _, err := p.EnsureClass(prop, "Inner"); !errors.Is(err, ErrInvalidParent) {
		t.Errorf("EnsureClass under property error = %v, want ErrInvalidParent", err)
	}
	if _, err := p.EnsureClass(nil, "Orphan"); !errors.Is(err, ErrInvalidParent) {
		t.Errorf("EnsureClass(nil) error = %v, want ErrInvalidParent", err)
	}
}

func TestPool_IdentityPaths(t *testing.T) {
	t.Parallel()

	p := NewPool()
	mod := mustModule(t, p, "app.example.org")
	pkg, err := p.EnsurePackage(mod, "util")
	if err != nil {
		t.Fatal(err)
	}
	cls := mustClass(t, p, pkg, "List")
	mm, err := p.EnsureMultiMethod(cls, "add")
	if err != nil {
		t.Fatal(err)
	}
	sig, err := p.EnsureSignature("add", []Constant{cls}, nil)
	if err != nil {
		t.Fatal(err)
	}
	method, err := p.EnsureMethod(mm, sig)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id   IdentityConstant
		want string
	}{
		{mod, "app.example.org"},
		{pkg, "app.example.org:util"},
		{cls, "app.example.org:util.List"},
		{mm, "app.example.org:util.List.add"},
		{method, "app.example.org:util.List.add(app.example.org:util.List)"},
	}
	for _, tt := range tests {
		if got := tt.id.Path(); got != tt.want {
			t.Errorf("Path() = %q, want %q", got, tt.want)
		}
		if tt.id.Module() != mod {
			t.Errorf("%s Module() = %v, want %v", tt.id, tt.id.Module(), mod)
		}
	}

	other, err := p.EnsureSignature("remove", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.EnsureMethod(mm, other); !errors.Is(err, ErrInvalidName) {
		t.Errorf("EnsureMethod with mismatched signature error = %v, want ErrInvalidName", err)
	}
}

func TestIsQualifiedName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"ecstasy", true},
		{"ecstasy.xtclang.org", true},
		{"_private.v2", true},
		{"", false},
		{"a..b", false},
		{".a", false},
		{"a.2b", false},
		{"has space", false},
	}
	for _, tt := range tests {
		if got := IsQualifiedName(tt.in); got != tt.want {
			t.Errorf("IsQualifiedName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
