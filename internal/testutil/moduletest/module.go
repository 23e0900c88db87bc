// SPDX-License-Identifier: MPL-2.0

package moduletest

import (
	"fmt"
	"testing"

	"xtcmod/pkg/component"
	"xtcmod/pkg/version"
)

type (
	// ModuleOption configures a test module file.
	ModuleOption func(testing.TB, *component.FileStructure)

	// DepOption configures a fingerprint added with WithDependency.
	DepOption func(testing.TB, *component.Component)
)

// NewModule creates a file whose primary module is name. By default the
// module is unversioned and empty.
//
// Usage:
//
//	f := moduletest.NewModule(t, "app.example.org",
//	    moduletest.WithVersion("1.0"),
//	    moduletest.WithDependency("json.xtclang.org", moduletest.Allow("1.0")),
//	)
func NewModule(t testing.TB, name string, opts ...ModuleOption) *component.FileStructure {
	t.Helper()
	f, err := component.New(name)
	if err != nil {
		t.Fatalf("creating module %s: %v", name, err)
	}
	for _, opt := range opts {
		opt(t, f)
	}
	return f
}

// Encode writes f and returns its bytes.
func Encode(t testing.TB, f *component.FileStructure) []byte {
	t.Helper()
	data, err := f.Bytes(component.WriteOptions{})
	if err != nil {
		t.Fatalf("encoding module %s: %v", f.ModuleName(), err)
	}
	return data
}

// --- Module Options ---

// WithVersion labels the module with each version in turn; the first labels
// the file and the rest are merged in.
func WithVersion(versions ...string) ModuleOption {
	return func(t testing.TB, f *component.FileStructure) {
		t.Helper()
		for i, s := range versions {
			v := version.MustParse(s)
			var err error
			if i == 0 {
				err = f.LabelVersion(v)
			} else {
				other := NewModule(t, f.ModuleName(), WithVersion(s))
				err = f.MergeVersions(other)
			}
			if err != nil {
				t.Fatalf("labelling %s with %s: %v", f.ModuleName(), v, err)
			}
		}
	}
}

// WithClasses adds n public classes named Class0..Class<n-1> to the module.
func WithClasses(n int) ModuleOption {
	return func(t testing.TB, f *component.FileStructure) {
		t.Helper()
		for i := range n {
			name := fmt.Sprintf("Class%d", i)
			if _, err := f.Module().CreateClass(name, component.FormatClass, component.WithDoc("generated class "+name)); err != nil {
				t.Fatalf("creating %s: %v", name, err)
			}
		}
	}
}

// WithDependency adds a required fingerprint of module name.
func WithDependency(name string, opts ...DepOption) ModuleOption {
	return WithFingerprint(name, component.ModuleRequired, opts...)
}

// WithFingerprint adds a fingerprint of module name with the given type.
func WithFingerprint(name string, typ component.ModuleType, opts ...DepOption) ModuleOption {
	return func(t testing.TB, f *component.FileStructure) {
		t.Helper()
		fp, err := f.EnsureFingerprint(name, typ)
		if err != nil {
			t.Fatalf("adding fingerprint %s: %v", name, err)
		}
		for _, opt := range opts {
			opt(t, fp)
		}
	}
}

// --- Dependency Options ---

// Allow marks versions as allowed for the fingerprint.
func Allow(versions ...string) DepOption {
	return allow(true, versions)
}

// Avoid marks versions as avoided for the fingerprint.
func Avoid(versions ...string) DepOption {
	return allow(false, versions)
}

func allow(ok bool, versions []string) DepOption {
	return func(t testing.TB, fp *component.Component) {
		t.Helper()
		for _, s := range versions {
			if err := fp.AllowVersion(version.MustParse(s), ok); err != nil {
				t.Fatalf("allowing %s: %v", s, err)
			}
		}
	}
}

// Prefer appends preferred versions to the fingerprint.
func Prefer(versions ...string) DepOption {
	return func(t testing.TB, fp *component.Component) {
		t.Helper()
		for _, s := range versions {
			if err := fp.PreferVersion(version.MustParse(s)); err != nil {
				t.Fatalf("preferring %s: %v", s, err)
			}
		}
	}
}
