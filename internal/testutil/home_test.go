// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSetHomeDir(t *testing.T) {
	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}
	original, had := os.LookupEnv(key)

	dir := t.TempDir()
	cleanup := SetHomeDir(t, dir)
	if got := os.Getenv(key); got != dir {
		t.Errorf("%s = %q, want %q", key, got, dir)
	}
	if home, err := os.UserHomeDir(); err != nil || home != dir {
		t.Errorf("UserHomeDir() = %q, %v", home, err)
	}

	cleanup()
	got, has := os.LookupEnv(key)
	if has != had || got != original {
		t.Errorf("after cleanup %s = %q (set %v), want %q (set %v)", key, got, has, original, had)
	}
}

func TestMustSetenv_Unset(t *testing.T) {
	const key = "XTCMOD_TESTUTIL_UNSET"
	cleanup := MustSetenv(t, key, "1")
	if os.Getenv(key) != "1" {
		t.Fatal("variable not set")
	}
	cleanup()
	if _, ok := os.LookupEnv(key); ok {
		t.Error("cleanup should unset a variable that was not set before")
	}
}

func TestFileHelpers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "module.xtc")
	MustWriteFile(t, path, []byte{0xEC, 0x57})
	if got := MustReadFile(t, path); !bytes.Equal(got, []byte{0xEC, 0x57}) {
		t.Errorf("MustReadFile() = %x", got)
	}
	MustRemoveAll(t, filepath.Dir(path))
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Stat() after MustRemoveAll = %v", err)
	}
}
