// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func allIds() []Id {
	return []Id{
		FileNotFoundId,
		ModuleDecodeFailedId,
		ModuleNotFoundId,
		VersionNotAllowedId,
		DependencyCycleId,
		RepositoryCorruptId,
		ConfigLoadFailedId,
		InvalidProfileId,
		ValidationFailedId,
		PermissionDeniedId,
	}
}

// stubRender replaces the glamour renderer with the identity function for
// the duration of the test. Tests using it must not run in parallel.
func stubRender(t *testing.T) {
	t.Helper()
	original := render
	t.Cleanup(func() { render = original })
	render = func(in, _ string) (string, error) { return in, nil }
}

func TestId_Constants(t *testing.T) {
	t.Parallel()

	seen := make(map[Id]bool)
	for _, id := range allIds() {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}
	if FileNotFoundId != 1 {
		t.Errorf("FileNotFoundId = %d, want 1", FileNotFoundId)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id       Id
		contains string
	}{
		{FileNotFoundId, "File not found"},
		{ModuleDecodeFailedId, "not a valid module image"},
		{ModuleNotFoundId, "xtcmod repo store"},
		{VersionNotAllowedId, "No acceptable version"},
		{DependencyCycleId, "Dependency cycle"},
		{RepositoryCorruptId, "xtcmod repo reindex"},
		{ConfigLoadFailedId, "xtcmod config init"},
		{InvalidProfileId, "self_version"},
		{ValidationFailedId, "--max-errors"},
		{PermissionDeniedId, "Permission denied"},
	}
	for _, tt := range tests {
		issue := Get(tt.id)
		if issue == nil {
			t.Errorf("Get(%d) returned nil", tt.id)
			continue
		}
		if issue.Id() != tt.id {
			t.Errorf("Get(%d).Id() = %d", tt.id, issue.Id())
		}
		if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
			t.Errorf("issue %d should mention %q", tt.id, tt.contains)
		}
	}

	if Get(Id(999)) != nil {
		t.Error("Get(999) should return nil")
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	t.Parallel()

	issue := Get(ModuleDecodeFailedId)
	links := issue.DocLinks()
	if len(links) == 0 {
		t.Fatal("ModuleDecodeFailed should carry a doc link")
	}
	links[0] = "modified"
	if issue.DocLinks()[0] == "modified" {
		t.Error("DocLinks() should return a clone")
	}
	if got := issue.ExtLinks(); len(got) != 0 {
		t.Errorf("ExtLinks() = %v, want none", got)
	}
}

func TestIssue_Render(t *testing.T) {
	stubRender(t)

	rendered, err := Get(ValidationFailedId).Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "Module validation failed") {
		t.Error("Render() output should contain the message")
	}
	if !strings.Contains(rendered, "## See also") || !strings.Contains(rendered, "module-format") {
		t.Errorf("Render() output should list the doc link, got:\n%s", rendered)
	}

	rendered, err = Get(PermissionDeniedId).Render("")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("issues without links should not render a See also section")
	}
}

func TestIssue_RenderGlamour(t *testing.T) {
	t.Parallel()

	rendered, err := Get(DependencyCycleId).Render("notty")
	if err != nil {
		t.Fatalf("Render(notty) error = %v", err)
	}
	if !strings.Contains(rendered, "Dependency cycle detected") {
		t.Errorf("rendered output missing heading:\n%s", rendered)
	}
}

func TestValues(t *testing.T) {
	stubRender(t)

	values := Values()
	if len(values) != len(allIds()) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(allIds()))
	}
	for i, issue := range values {
		if issue.Id() != allIds()[i] {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), allIds()[i])
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("issue %d has empty MarkdownMsg", issue.Id())
		}
		if rendered, err := issue.Render(""); err != nil || rendered == "" {
			t.Errorf("issue %d failed to render: %v", issue.Id(), err)
		}
	}
}
