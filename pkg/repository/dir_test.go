// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"xtcmod/internal/testutil"
	"xtcmod/internal/testutil/moduletest"
	"xtcmod/pkg/version"
)

func mustOpen(t *testing.T, root string, opts ...Option) *Dir {
	t.Helper()
	d, err := OpenDir(root, opts...)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	return d
}

func TestDir(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()
			exercise(t, mustOpen(t, t.TempDir(), WithCompression(c)))
		})
	}
}

func TestDir_IndexPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "repo")
	d := mustOpen(t, root, WithCompression(CompressionZstd))
	f := moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0"), moduletest.WithClasses(40))
	if err := d.Store(ctx, f); err != nil {
		t.Fatal(err)
	}
	e, ok := d.Entry("json.xtclang.org", version.Version{})
	if !ok {
		t.Fatal("entry missing after Store")
	}
	if e.Compression != CompressionZstd || e.Stored >= e.Size {
		t.Errorf("entry = %+v, want a smaller zstd container", e)
	}
	if e.File != "json.xtclang.org-1.xtc.zst" {
		t.Errorf("File = %q", e.File)
	}
	if e.Manifest.Module != "json.xtclang.org" || e.Manifest.Version != "1" {
		t.Errorf("Manifest = %+v", e.Manifest)
	}

	reopened := mustOpen(t, root)
	got, ok := reopened.Entry("json.xtclang.org", version.MustParse("1.0"))
	if !ok || got.Digest != e.Digest || got.File != e.File {
		t.Errorf("reopened entry = %+v, want %+v", got, e)
	}
	found, err := reopened.Find(ctx, "json.xtclang.org", version.MustParse("1"))
	if err != nil {
		t.Fatal(err)
	}
	if found.Module().ChildCount() != 40 {
		t.Errorf("found %d classes, want 40", found.Module().ChildCount())
	}
}

func TestDir_ReplaceRemovesOrphans(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	d := mustOpen(t, root)
	if err := d.Store(ctx, moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0"))); err != nil {
		t.Fatal(err)
	}
	if err := d.Store(ctx, moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0", "1.1"))); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "json.xtclang.org-1.xtc")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("replaced file still present: %v", err)
	}
	e, _ := d.Entry("json.xtclang.org", version.MustParse("1.0"))
	if e.File != "json.xtclang.org-1.1.xtc" {
		t.Errorf("1.0 now stored in %q", e.File)
	}

	if err := d.Remove(ctx, "json.xtclang.org", version.MustParse("1.0")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, e.File)); err != nil {
		t.Errorf("file still used by 1.1 was removed: %v", err)
	}
	if err := d.Remove(ctx, "json.xtclang.org", version.MustParse("1.1")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, e.File)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unused file kept: %v", err)
	}
	if names, _ := d.Modules(ctx); len(names) != 0 {
		t.Errorf("Modules() = %v, want none", names)
	}
	if err := d.Remove(ctx, "json.xtclang.org", version.MustParse("1.1")); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove error = %v", err)
	}
}

func TestDir_VerifyDetectsCorruption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	d := mustOpen(t, root)
	if err := d.Store(ctx, moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0"))); err != nil {
		t.Fatal(err)
	}
	if err := d.Verify(ctx); err != nil {
		t.Fatalf("Verify on a clean repository: %v", err)
	}

	path := filepath.Join(root, "json.xtclang.org-1.xtc")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var mismatch *DigestMismatchError
	if err := d.Verify(ctx); !errors.As(err, &mismatch) || !errors.Is(err, ErrCorrupt) {
		t.Errorf("Verify error = %v, want *DigestMismatchError", err)
	}
	if _, err := d.Find(ctx, "json.xtclang.org", version.Version{}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Find error = %v, want ErrCorrupt", err)
	}
}

func TestDir_Reindex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	d := mustOpen(t, root, WithCompression(CompressionLZ4))
	if err := d.Store(ctx, moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0"), moduletest.WithClasses(40))); err != nil {
		t.Fatal(err)
	}
	loose := moduletest.Encode(t, moduletest.NewModule(t, "app.example.org", moduletest.WithVersion("0.1")))
	if err := os.WriteFile(filepath.Join(root, "app.xtc"), loose, 0o644); err != nil {
		t.Fatal(err)
	}
	unversioned := moduletest.Encode(t, moduletest.NewModule(t, "bare.example.org"))
	if err := os.WriteFile(filepath.Join(root, "bare.xtc"), unversioned, 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.MustRemoveAll(t, filepath.Join(root, IndexFile))

	d = mustOpen(t, root)
	if err := d.Reindex(ctx); err != nil {
		t.Fatal(err)
	}
	names, err := d.Modules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "app.example.org" || names[1] != "json.xtclang.org" {
		t.Errorf("Modules() after Reindex = %v", names)
	}
	if _, err := d.Find(ctx, "json.xtclang.org", version.MustParse("1.0")); err != nil {
		t.Errorf("Find after Reindex: %v", err)
	}
	if e, _ := d.Entry("app.example.org", version.Version{}); e.File != "app.xtc" {
		t.Errorf("app entry = %+v", e)
	}
}

func TestOpenDir_BadIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, IndexFile), []byte{0xFF, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDir(root); err == nil {
		t.Error("OpenDir accepted a garbage index")
	}
}
