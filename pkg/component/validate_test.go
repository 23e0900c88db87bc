// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"testing"

	"xtcmod/pkg/diag"
	"xtcmod/pkg/version"
)

func codes(c *diag.Collector) []string {
	var out []string
	for _, d := range c.Diagnostics() {
		out = append(out, d.Code)
	}
	return out
}

func TestFile_ValidateClean(t *testing.T) {
	t.Parallel()

	f := sampleFile(t)
	mod := f.Module()
	mixin, ok := mod.ChildByPath("util.Tagged")
	if !ok {
		t.Fatal("util.Tagged missing")
	}
	strs, _ := mod.ChildByPath("util.Strings")
	if err := strs.AddContribution(ContribAnnotation, mixin.Identity()); err != nil {
		t.Fatal(err)
	}

	c := diag.NewCollector(0)
	if err := f.Validate(c); err != nil {
		t.Fatal(err)
	}
	if got := codes(c); len(got) != 0 {
		t.Errorf("diagnostics = %v, want none", got)
	}
}

func TestFile_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(t *testing.T, f *FileStructure)
		code  string
		sev   diag.Severity
	}{
		{
			name: "annotation of a class",
			build: func(t *testing.T, f *FileStructure) {
				target := mustCreate(t)(f.Module().CreateClass("Plain", FormatClass))
				cls := mustCreate(t)(f.Module().CreateClass("User", FormatClass))
				if err := cls.AddContribution(ContribAnnotation, target.Identity()); err != nil {
					t.Fatal(err)
				}
			},
			code: diag.CodeAnnotationNotMixin,
			sev:  diag.SeverityError,
		},
		{
			name: "overlapping siblings",
			build: func(t *testing.T, f *FileStructure) {
				mustCreate(t)(f.Module().CreateClass("Logger", FormatClass, WithCondition(mustNamed(t, f, "a"))))
				mustCreate(t)(f.Module().CreateClass("Logger", FormatClass, WithCondition(mustNamed(t, f, "b"))))
			},
			code: diag.CodeSiblingsOverlap,
			sev:  diag.SeverityWarning,
		},
		{
			name: "fingerprint without versions",
			build: func(t *testing.T, f *FileStructure) {
				if _, err := f.EnsureFingerprint("json.xtclang.org", ModuleOptional); err != nil {
					t.Fatal(err)
				}
			},
			code: diag.CodeFingerprintNoVersion,
			sev:  diag.SeverityWarning,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := mustNew(t, "app.example.org")
			tt.build(t, f)
			c := diag.NewCollector(0)
			if err := f.Validate(c); err != nil {
				t.Fatal(err)
			}
			ds := c.Diagnostics()
			if len(ds) != 1 || ds[0].Code != tt.code || ds[0].Severity != tt.sev {
				t.Errorf("diagnostics = %v, want one %s %s", ds, tt.sev, tt.code)
			}
		})
	}
}

func TestFile_ValidateExclusiveSiblings(t *testing.T) {
	t.Parallel()

	f := mustNew(t, "app.example.org")
	a := mustNamed(t, f, "a")
	mustCreate(t)(f.Module().CreateClass("Logger", FormatClass, WithCondition(a)))
	mustCreate(t)(f.Module().CreateClass("Logger", FormatClass, WithCondition(mustNot(t, f, a))))
	fp, err := f.EnsureFingerprint("json.xtclang.org", ModuleDesired)
	if err != nil {
		t.Fatal(err)
	}
	if err := fp.AllowVersion(version.MustParse("1"), true); err != nil {
		t.Fatal(err)
	}

	c := diag.NewCollector(0)
	if err := f.Validate(c); err != nil {
		t.Fatal(err)
	}
	if got := codes(c); len(got) != 0 {
		t.Errorf("diagnostics = %v, want none", got)
	}
}

func TestFile_ValidateAborts(t *testing.T) {
	t.Parallel()

	f := mustNew(t, "app.example.org")
	target := mustCreate(t)(f.Module().CreateClass("Plain", FormatClass))
	for _, name := range []string{"A", "B", "C"} {
		cls := mustCreate(t)(f.Module().CreateClass(name, FormatClass))
		if err := cls.AddContribution(ContribAnnotation, target.Identity()); err != nil {
			t.Fatal(err)
		}
	}

	c := diag.NewCollector(2)
	if err := f.Validate(c); !errors.Is(err, ErrValidationAborted) {
		t.Fatalf("Validate error = %v, want ErrValidationAborted", err)
	}
	if got := c.Count(diag.SeverityError); got != 2 {
		t.Errorf("errors logged = %d, want 2", got)
	}
	if !errors.Is(c.Err(), diag.ErrValidation) {
		t.Errorf("collector Err() = %v", c.Err())
	}
}
