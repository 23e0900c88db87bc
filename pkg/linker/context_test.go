// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"context"
	"strings"
	"testing"

	"xtcmod/internal/testutil/moduletest"
	"xtcmod/pkg/component"
	"xtcmod/pkg/constant"
	"xtcmod/pkg/repository"
	"xtcmod/pkg/version"
)

func mustContext(t *testing.T, profile string, repo repository.Repository) *Context {
	t.Helper()
	var p *Profile
	if profile != "" {
		var err error
		if p, err = ParseProfile(strings.NewReader(profile)); err != nil {
			t.Fatal(err)
		}
	}
	lc, err := NewContext(context.Background(), p, repo)
	if err != nil {
		t.Fatal(err)
	}
	return lc
}

func TestContext(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemory()
	for _, v := range []string{"1.0", "2.0"} {
		if err := repo.Store(context.Background(), moduletest.NewModule(t, "ecstasy.xtclang.org", moduletest.WithVersion(v))); err != nil {
			t.Fatal(err)
		}
	}
	lc := mustContext(t, sampleProfile, repo)

	f := moduletest.NewModule(t, "app.example.org")
	pool := f.Pool()
	module := func(name string) *constant.ModuleConstant {
		m, err := pool.EnsureModule(name)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	util, err := f.Module().CreatePackage("util")
	if err != nil {
		t.Fatal(err)
	}
	strs, err := util.CreateClass("Strings", component.FormatClass)
	if err != nil {
		t.Fatal(err)
	}
	other, err := util.CreateClass("Other", component.FormatClass)
	if err != nil {
		t.Fatal(err)
	}
	json, ecstasy, missing := module("json.xtclang.org"), module("ecstasy.xtclang.org"), module("missing.example.org")

	if !lc.IsSpecified("debug") || lc.IsSpecified("release") {
		t.Error("IsSpecified does not follow the defines")
	}
	if got := lc.Defines(); len(got) != 2 || got[0] != "debug" || got[1] != "trace" {
		t.Errorf("Defines() = %v", got)
	}

	visible := []struct {
		id   constant.IdentityConstant
		want bool
	}{
		{json, true},
		{ecstasy, true},
		{missing, false},
		{strs.Identity(), true},
		{other.Identity(), false},
	}
	for _, tt := range visible {
		if got := lc.IsVisible(tt.id); got != tt.want {
			t.Errorf("IsVisible(%s) = %v, want %v", tt.id.Path(), got, tt.want)
		}
	}

	versions := []struct {
		id    constant.IdentityConstant
		ver   string
		exact bool
		want  bool
	}{
		{json, "1.1", true, true},
		{json, "1.0.0", true, true},
		{json, "1.2", true, false},
		{json, "1.0", false, true},
		{json, "2.0", false, false},
		{ecstasy, "2.0", true, true},
		{ecstasy, "1.0", false, true},
		{ecstasy, "3", false, false},
		{strs.Identity(), "7", true, true},
		{missing, "1", false, false},
	}
	for _, tt := range versions {
		if got := lc.IsVisibleVersion(tt.id, version.MustParse(tt.ver), tt.exact); got != tt.want {
			t.Errorf("IsVisibleVersion(%s, %s, %v) = %v, want %v", tt.id.Path(), tt.ver, tt.exact, got, tt.want)
		}
	}

	matches := []struct {
		ver   string
		exact bool
		want  bool
	}{
		{"1.2", true, true},
		{"1.2.0", true, true},
		{"1.1", true, false},
		{"1.1", false, true},
		{"1.3", false, false},
	}
	for _, tt := range matches {
		if got := lc.IsVersionMatch(version.MustParse(tt.ver), tt.exact); got != tt.want {
			t.Errorf("IsVersionMatch(%s, %v) = %v, want %v", tt.ver, tt.exact, got, tt.want)
		}
	}
}

func TestContext_EvaluatesConditions(t *testing.T) {
	t.Parallel()

	f := moduletest.NewModule(t, "app.example.org")
	pool := f.Pool()
	debug, err := pool.EnsureNamedCondition("debug")
	if err != nil {
		t.Fatal(err)
	}
	label, err := pool.EnsureVersionMatchCondition(version.MustParse("1.2"), true)
	if err != nil {
		t.Fatal(err)
	}
	both, err := pool.And(debug, label)
	if err != nil {
		t.Fatal(err)
	}

	if !constant.Evaluate(both, mustContext(t, sampleProfile, nil)) {
		t.Errorf("%s should hold under the sample profile", both)
	}
	if constant.Evaluate(both, mustContext(t, "", nil)) {
		t.Errorf("%s should not hold under an empty profile", both)
	}
}
