// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xtcmod/internal/config"
	"xtcmod/internal/issue"
	"xtcmod/internal/testutil"
	"xtcmod/internal/testutil/moduletest"
	"xtcmod/pkg/component"
)

type (
	staticProvider struct {
		cfg *config.Config
	}

	cliResult struct {
		stdout string
		stderr string
		err    error
	}
)

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Loaded, error) {
	return &config.Loaded{Config: p.cfg}, nil
}

// runCLI executes the command line args against a fresh App using cfg, or
// the default configuration when cfg is nil.
func runCLI(t *testing.T, cfg *config.Config, args ...string) cliResult {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Config: staticProvider{cfg: cfg}, Stdout: &stdout, Stderr: &stderr})
	root := NewRootCommand(app)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeModule encodes f into dir and returns the file path.
func writeModule(t *testing.T, dir, name string, f *component.FileStructure) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testutil.MustWriteFile(t, path, moduletest.Encode(t, f))
	return path
}

func readModule(t *testing.T, path string) *component.FileStructure {
	t.Helper()
	f, err := component.Decode(testutil.MustReadFile(t, path))
	if err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
	return f
}

func wantIssue(t *testing.T, err error, code int, id issue.Id) {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != code {
		t.Errorf("exit code = %d, want %d", exitErr.Code, code)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want an ActionableError in the chain", err)
	}
	if ae.Issue != id {
		t.Errorf("issue = %d, want %d", ae.Issue, id)
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeModule(t, dir, "app.xtc", moduletest.NewModule(t, "app.example.org",
		moduletest.WithVersion("1.5"),
		moduletest.WithClasses(2),
		moduletest.WithDependency("json.xtclang.org", moduletest.Allow("1.5"), moduletest.Prefer("1.5")),
	))

	res := runCLI(t, nil, "info", "--tree", path)
	if res.err != nil {
		t.Fatalf("info failed: %v\n%s", res.err, res.stderr)
	}
	for _, want := range []string{"app.example.org", "1.5", "json.xtclang.org", "required", "preferred", "Class0", "Class1"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("info output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestInfo_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.xtc")
	testutil.MustWriteFile(t, garbage, []byte("this is not a module"))

	tests := []struct {
		name string
		path string
		id   issue.Id
	}{
		{"missing file", filepath.Join(dir, "missing.xtc"), issue.FileNotFoundId},
		{"not a module", garbage, issue.ModuleDecodeFailedId},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := runCLI(t, nil, "info", tt.path)
			wantIssue(t, res.err, ExitFailure, tt.id)
			if !strings.Contains(res.stderr, "Error:") || !strings.Contains(res.stderr, tt.path) {
				t.Errorf("stderr should report the failing file, got:\n%s", res.stderr)
			}
		})
	}
}

func TestConstants(t *testing.T) {
	t.Parallel()

	path := writeModule(t, t.TempDir(), "app.xtc", moduletest.NewModule(t, "app.example.org", moduletest.WithClasses(1)))

	res := runCLI(t, nil, "constants", "--list", path)
	if res.err != nil {
		t.Fatalf("constants failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, "constant") || !strings.Contains(res.stdout, "Class0") {
		t.Errorf("constants output:\n%s", res.stdout)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clean := writeModule(t, dir, "clean.xtc", moduletest.NewModule(t, "app.example.org", moduletest.WithClasses(1)))

	bad := moduletest.NewModule(t, "bad.example.org")
	target, err := bad.Module().CreateClass("Plain", component.FormatClass)
	if err != nil {
		t.Fatal(err)
	}
	user, err := bad.Module().CreateClass("User", component.FormatClass)
	if err != nil {
		t.Fatal(err)
	}
	if err := user.AddContribution(component.ContribAnnotation, target.Identity()); err != nil {
		t.Fatal(err)
	}
	broken := writeModule(t, dir, "bad.xtc", bad)

	res := runCLI(t, nil, "validate", clean)
	if res.err != nil {
		t.Fatalf("validate of a clean module failed: %v\n%s", res.err, res.stdout)
	}
	if !strings.Contains(res.stdout, "✓") {
		t.Errorf("validate output:\n%s", res.stdout)
	}

	res = runCLI(t, nil, "validate", clean, broken)
	wantIssue(t, res.err, ExitInvalid, issue.ValidationFailedId)
	if !strings.Contains(res.stdout, "is not a mixin") || !strings.Contains(res.stdout, "1 error") {
		t.Errorf("validate output should list the error, got:\n%s", res.stdout)
	}
}

func TestOptimize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeModule(t, dir, "app.xtc", moduletest.NewModule(t, "app.example.org", moduletest.WithClasses(3)))
	out := filepath.Join(dir, "out.xtc")

	res := runCLI(t, nil, "optimize", "-o", out, in)
	if res.err != nil {
		t.Fatalf("optimize failed: %v\n%s", res.err, res.stderr)
	}
	f := readModule(t, out)
	if f.ModuleName() != "app.example.org" {
		t.Errorf("optimized module = %s", f.ModuleName())
	}
	if _, ok := f.Module().ChildByPath("Class2"); !ok {
		t.Error("optimized module lost Class2")
	}
}

func TestVersionCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeModule(t, dir, "app.xtc", moduletest.NewModule(t, "app.example.org", moduletest.WithClasses(1)))
	other := writeModule(t, dir, "app-2.xtc", moduletest.NewModule(t, "app.example.org", moduletest.WithVersion("2.1")))

	steps := []struct {
		args []string
		want []string
	}{
		{[]string{"version", "list", path}, []string{"unversioned"}},
		{[]string{"version", "label", path, "1.2"}, []string{"(1.2)"}},
		{[]string{"version", "merge", path, other}, []string{"(1.2, 2.1)"}},
		{[]string{"version", "list", path}, []string{"1.2", "2.1", "ga"}},
		{[]string{"version", "purge", path, "1.2"}, []string{"(2.1)"}},
	}
	for _, step := range steps {
		res := runCLI(t, nil, step.args...)
		if res.err != nil {
			t.Fatalf("%v failed: %v\n%s", step.args, res.err, res.stderr)
		}
		for _, want := range step.want {
			if !strings.Contains(res.stdout, want) {
				t.Errorf("%v output missing %q:\n%s", step.args, want, res.stdout)
			}
		}
	}

	if got := readModule(t, path).Versions(); len(got) != 1 || got[0].String() != "2.1" {
		t.Errorf("versions after purge = %v, want [2.1]", got)
	}

	res := runCLI(t, nil, "version", "label", path, "not-a-version")
	if res.err == nil {
		t.Error("labelling with an invalid version should fail")
	}
}

func TestRepoCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	v1 := writeModule(t, dir, "json-1.xtc", moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.2")))
	v2 := writeModule(t, dir, "json-2.xtc", moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("2.1")))
	unversioned := writeModule(t, dir, "app.xtc", moduletest.NewModule(t, "app.example.org"))

	if res := runCLI(t, nil, "--repo", repo, "repo", "store", v1, v2); res.err != nil {
		t.Fatalf("store failed: %v\n%s", res.err, res.stderr)
	}

	res := runCLI(t, nil, "--repo", repo, "repo", "list", "--long")
	if res.err != nil {
		t.Fatal(res.err)
	}
	for _, want := range []string{"json.xtclang.org", "1.2", "2.1", "json.xtclang.org-2.1."} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("repo list missing %q:\n%s", want, res.stdout)
		}
	}

	extracted := filepath.Join(dir, "found.xtc")
	if res := runCLI(t, nil, "--repo", repo, "repo", "find", "-o", extracted, "json.xtclang.org"); res.err != nil {
		t.Fatalf("find failed: %v\n%s", res.err, res.stderr)
	}
	if got := readModule(t, extracted).Versions(); len(got) != 1 || got[0].String() != "2.1" {
		t.Errorf("find without a version returned %v, want the highest version", got)
	}

	if res := runCLI(t, nil, "--repo", repo, "repo", "verify"); res.err != nil {
		t.Fatalf("verify failed: %v\n%s", res.err, res.stdout)
	}
	if res := runCLI(t, nil, "--repo", repo, "repo", "remove", "json.xtclang.org", "1.2"); res.err != nil {
		t.Fatalf("remove failed: %v", res.err)
	}
	res = runCLI(t, nil, "--repo", repo, "repo", "find", "json.xtclang.org", "1.2")
	wantIssue(t, res.err, ExitFailure, issue.ModuleNotFoundId)

	res = runCLI(t, nil, "--repo", repo, "repo", "reindex")
	if res.err != nil || !strings.Contains(res.stdout, "1 entries indexed") {
		t.Errorf("reindex: err=%v output=%q", res.err, res.stdout)
	}

	if res := runCLI(t, nil, "--repo", repo, "repo", "store", unversioned); res.err == nil {
		t.Error("storing an unversioned module should fail")
	}
}

func TestRepoVerify_Corrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	cfg := config.DefaultConfig()
	cfg.Repository.Compression = "none"
	path := writeModule(t, dir, "json.xtc", moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0")))
	if res := runCLI(t, cfg, "--repo", repo, "repo", "store", path); res.err != nil {
		t.Fatal(res.err)
	}

	stored, err := filepath.Glob(filepath.Join(repo, "json.xtclang.org-*"))
	if err != nil || len(stored) != 1 {
		t.Fatalf("stored files = %v, %v", stored, err)
	}
	data := testutil.MustReadFile(t, stored[0])
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(stored[0], data, 0o644); err != nil {
		t.Fatal(err)
	}

	res := runCLI(t, cfg, "--repo", repo, "repo", "verify")
	wantIssue(t, res.err, ExitInvalid, issue.RepositoryCorruptId)
	if !strings.Contains(res.stdout, "✗") {
		t.Errorf("verify should list the corrupt file, got:\n%s", res.stdout)
	}
}

func TestLink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	dep := writeModule(t, dir, "json.xtc", moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0")))
	if res := runCLI(t, nil, "--repo", repo, "repo", "store", dep); res.err != nil {
		t.Fatal(res.err)
	}
	app := writeModule(t, dir, "app.xtc", moduletest.NewModule(t, "app.example.org",
		moduletest.WithDependency("json.xtclang.org", moduletest.Allow("1.0")),
	))

	res := runCLI(t, nil, "--repo", repo, "link", "--define", "debug", app)
	if res.err != nil {
		t.Fatalf("link failed: %v\n%s%s", res.err, res.stdout, res.stderr)
	}
	jsonAt := strings.Index(res.stdout, "json.xtclang.org")
	appAt := strings.Index(res.stdout, "app.example.org")
	if jsonAt < 0 || appAt < 0 || jsonAt > appAt {
		t.Errorf("link order should list the dependency first:\n%s", res.stdout)
	}
}

func TestLink_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	dep := writeModule(t, dir, "json.xtc", moduletest.NewModule(t, "json.xtclang.org", moduletest.WithVersion("1.0")))
	if res := runCLI(t, nil, "--repo", repo, "repo", "store", dep); res.err != nil {
		t.Fatal(res.err)
	}
	badProfile := filepath.Join(dir, "bad.toml")
	testutil.MustWriteFile(t, badProfile, []byte("unknown_key = true\n"))

	tests := []struct {
		name    string
		module  *component.FileStructure
		extra   []string
		code    int
		id      issue.Id
		message string
	}{
		{
			name:    "missing module",
			module:  moduletest.NewModule(t, "app.example.org", moduletest.WithDependency("yaml.xtclang.org", moduletest.Allow("1.0"))),
			code:    ExitInvalid,
			id:      issue.ModuleNotFoundId,
			message: "not in the repository",
		},
		{
			name:    "version not allowed",
			module:  moduletest.NewModule(t, "app.example.org", moduletest.WithDependency("json.xtclang.org", moduletest.Allow("2.0"))),
			code:    ExitInvalid,
			id:      issue.VersionNotAllowedId,
			message: "not allowed",
		},
		{
			name:   "invalid profile",
			module: moduletest.NewModule(t, "app.example.org"),
			extra:  []string{"--profile", badProfile},
			code:   ExitFailure,
			id:     issue.InvalidProfileId,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeModule(t, dir, "app"+strings.Repeat("x", i)+".xtc", tt.module)
			args := append([]string{"--repo", repo, "link", path}, tt.extra...)
			res := runCLI(t, nil, args...)
			wantIssue(t, res.err, tt.code, tt.id)
			if tt.message != "" && !strings.Contains(res.stdout, tt.message) {
				t.Errorf("diagnostics should mention %q, got:\n%s", tt.message, res.stdout)
			}
		})
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Linker.Defines = []string{"debug"}

	res := runCLI(t, cfg, "config", "show")
	if res.err != nil {
		t.Fatal(res.err)
	}
	for _, want := range []string{"Current Configuration", "(using defaults)", "zstd", "debug", "max_errors: 20"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, res.stdout)
		}
	}

	res = runCLI(t, cfg, "config", "dump")
	if res.err != nil || !strings.Contains(res.stdout, `defines: ["debug"]`) {
		t.Errorf("config dump: err=%v output:\n%s", res.err, res.stdout)
	}
}

func TestSetConfigValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     string
		value   string
		check   func(*config.Config) bool
		wantErr bool
	}{
		{"repository.compression", "lz4", func(c *config.Config) bool { return c.Repository.Compression == "lz4" }, false},
		{"repository.path", "/tmp/repo", func(c *config.Config) bool { return c.Repository.Path == "/tmp/repo" }, false},
		{"file.lazy_children", "false", func(c *config.Config) bool { return !c.File.LazyChildren }, false},
		{"file.optimize", "nope", nil, true},
		{"diagnostics.max_errors", "5", func(c *config.Config) bool { return c.Diagnostics.MaxErrors == 5 }, false},
		{"diagnostics.max_errors", "many", nil, true},
		{"linker.defines", "debug, test,", func(c *config.Config) bool {
			return len(c.Linker.Defines) == 2 && c.Linker.Defines[1] == "test"
		}, false},
		{"ui.color_scheme", "dark", func(c *config.Config) bool { return c.UI.ColorScheme == config.ColorSchemeDark }, false},
		{"ui.verbose", "true", func(c *config.Config) bool { return c.UI.Verbose }, false},
		{"container_engine", "docker", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("setConfigValue(%q, %q) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	ae := issue.NewErrorContext().
		WithOperation("decode module").
		WithResource("./json.xtc").
		WithSuggestion("Run 'xtcmod info'").
		Wrap(errors.New("bad magic")).
		BuildError()

	got := formatErrorForDisplay(&ExitError{Code: ExitInvalid, Err: ae}, false)
	if !strings.Contains(got, "decode module") || !strings.Contains(got, "Run 'xtcmod info'") {
		t.Errorf("formatErrorForDisplay() = %q", got)
	}
	if got := formatErrorForDisplay(errors.New("plain"), true); got != "plain" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}
}
