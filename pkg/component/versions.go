// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"fmt"

	"xtcmod/pkg/constant"
	"xtcmod/pkg/version"
)

// Version label errors.
var (
	// ErrMultipleVersions is returned when relabelling a file that already carries several versions.
	ErrMultipleVersions = errors.New("file carries more than one version label")
	// ErrNotVersioned is returned when merging files without version labels.
	ErrNotVersioned = errors.New("file has no version label")
	// ErrDifferentModule is returned when merging files of different primary modules.
	ErrDifferentModule = errors.New("files hold different primary modules")
	// ErrUnknownVersion is returned when a version label is not present in the file.
	ErrUnknownVersion = errors.New("version label not present in file")
)

// Versions returns the version labels of the file in ascending order.
func (f *FileStructure) Versions() []version.Version { return f.versions.Versions() }

// IsVersioned reports whether the file carries at least one version label.
func (f *FileStructure) IsVersioned() bool { return !f.versions.IsEmpty() }

// ContainsVersion reports whether v is one of the file's version labels.
func (f *FileStructure) ContainsVersion(v version.Version) bool {
	return !v.IsZero() && f.versions.Contains(v.Normalize())
}

// SupportsVersion reports whether the file can satisfy a request for v:
// either it carries v, or, when exact is false, it carries a version that
// satisfies v.
func (f *FileStructure) SupportsVersion(v version.Version, exact bool) bool {
	if f.ContainsVersion(v) {
		return true
	}
	if exact || v.IsZero() {
		return false
	}
	_, ok := f.versions.FindHighestFor(v.Normalize())
	return ok
}

// LabelVersion labels an unversioned file with v, or replaces the single
// existing label. Every top-level module is guarded by an exact version
// match on v and the primary module records v as its version.
func (f *FileStructure) LabelVersion(v version.Version) error {
	if v.IsZero() {
		return fmt.Errorf("LabelVersion: %w", version.ErrInvalidVersion)
	}
	v = v.Normalize()

	switch f.versions.Len() {
	case 0:
	case 1:
		if f.versions.Contains(v) {
			return nil
		}
		old, _ := f.versions.FindHighest()
		if err := f.PurgeVersion(old); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrMultipleVersions, f.primary.Name())
	}

	label, err := f.pool.EnsureVersionMatchCondition(v, true)
	if err != nil {
		return err
	}
	for _, s := range f.root.children().order {
		for _, m := range s.members {
			if err := m.AddCondition(label); err != nil {
				return err
			}
		}
	}
	if err := f.Module().SetVersion(v); err != nil {
		return err
	}
	f.versions.Put(v, true)
	f.logger.Debug("labelled module version", "module", f.primary.Name(), "version", v)
	return nil
}

// PurgeVersion removes the label v. When v is the only label, the label is
// stripped from every condition and the structure is kept. Otherwise the
// components that exist only in v are removed and the v label is stripped
// from the rest.
func (f *FileStructure) PurgeVersion(v version.Version) error {
	if v.IsZero() {
		return fmt.Errorf("PurgeVersion: %w", version.ErrInvalidVersion)
	}
	v = v.Normalize()
	if !f.versions.Contains(v) {
		return nil
	}
	if err := f.loadAll(); err != nil {
		return err
	}
	only := f.versions.Len() == 1

	var all []*Component
	f.root.VisitChildren(func(c *Component) bool {
		all = append(all, c)
		return true
	}, true, true)

	removed := 0
	for _, c := range all {
		if c.cond == nil {
			continue
		}
		cond, required, err := f.dropLabel(c.cond, v)
		if err != nil {
			return err
		}
		if required && !only && !f.isLastPrimary(c) {
			if err := c.Parent().RemoveChild(c); err != nil {
				return err
			}
			removed++
			continue
		}
		if cond == nil && len(c.slot.members) > 1 {
			continue
		}
		c.setCondition(cond)
	}

	if mod := f.Module(); mod != nil && mod.Version().Equal(v) {
		if err := mod.SetVersion(version.Version{}); err != nil {
			return err
		}
	}
	f.versions.Remove(v)
	if remaining, ok := f.versions.FindHighest(); ok && f.Module().Version().IsZero() {
		if err := f.Module().SetVersion(remaining); err != nil {
			return err
		}
	}
	f.root.modified = true
	f.logger.Debug("purged module version", "module", f.primary.Name(), "version", v, "removed", removed)
	return nil
}

// PurgeVersionsExcept removes every version label other than v.
func (f *FileStructure) PurgeVersionsExcept(v version.Version) error {
	if !f.ContainsVersion(v) {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, v)
	}
	v = v.Normalize()
	for _, other := range f.versions.Versions() {
		if other.Equal(v) {
			continue
		}
		if err := f.PurgeVersion(other); err != nil {
			return err
		}
	}
	return nil
}

// MergeVersions adds the version labels of other, which must hold the same
// primary module, to f. Only the labels are merged: each top-level module
// guarded by a label of f is widened to also exist in the new versions.
func (f *FileStructure) MergeVersions(other *FileStructure) error {
	switch {
	case other == nil:
		return errors.New("MergeVersions: no file to merge")
	case !f.IsVersioned():
		return fmt.Errorf("%w: %s", ErrNotVersioned, f.primary.Name())
	case !constant.Equal(f.primary, other.primary):
		return fmt.Errorf("%w: %s and %s", ErrDifferentModule, f.primary.Name(), other.primary.Name())
	case !other.IsVersioned():
		return fmt.Errorf("%w: %s", ErrNotVersioned, other.primary.Name())
	}

	var guarded []*Component
	for _, s := range f.root.children().order {
		for _, m := range s.members {
			if len(f.labelsOf(m.cond)) > 0 {
				guarded = append(guarded, m)
			}
		}
	}
	for v := range other.versions.All() {
		if f.versions.Contains(v) {
			continue
		}
		label, err := f.pool.EnsureVersionMatchCondition(v, true)
		if err != nil {
			return err
		}
		for _, m := range guarded {
			widened, err := f.pool.Or(m.cond, label)
			if err != nil {
				return err
			}
			m.setCondition(widened)
		}
		f.versions.Put(v, true)
		f.root.modified = true
	}
	return nil
}

// labelsOf returns the exact version labels cond tests, either directly or
// as an arm of an All or Any condition.
func (f *FileStructure) labelsOf(cond constant.Condition) []version.Version {
	var out []version.Version
	add := func(c constant.Condition) {
		if vm, ok := c.(*constant.VersionMatchCondition); ok && vm.Exact() {
			out = append(out, vm.Version().Normalize())
		}
	}
	switch c := cond.(type) {
	case *constant.VersionMatchCondition:
		add(c)
	case *constant.MultiCondition:
		if c.Format() != constant.FormatCondExactlyOne {
			for _, arm := range c.Conditions() {
				add(arm)
			}
		}
	}
	return out
}

// isLastPrimary reports whether c is the sole remaining member of the primary
// module slot.
func (f *FileStructure) isLastPrimary(c *Component) bool {
	return c.parent == f.root.slot && c.slot.key == f.primary.Name() && len(c.slot.members) == 1
}

// dropLabel rewrites cond without the exact version label v. required reports
// that cond demanded v, meaning the guarded component exists only in v.
func (f *FileStructure) dropLabel(cond constant.Condition, v version.Version) (out constant.Condition, required bool, err error) {
	switch c := cond.(type) {
	case *constant.VersionMatchCondition:
		if isLabel(c, v) {
			return nil, true, nil
		}
	case *constant.MultiCondition:
		if c.Format() == constant.FormatCondExactlyOne {
			return cond, false, nil
		}
		arms := c.Conditions()
		var kept []constant.Condition
		for _, arm := range arms {
			if vm, ok := arm.(*constant.VersionMatchCondition); ok && isLabel(vm, v) {
				continue
			}
			kept = append(kept, arm)
		}
		if len(kept) == len(arms) {
			return cond, false, nil
		}
		required = c.Format() == constant.FormatCondAll
		switch {
		case len(kept) == 0:
			return nil, required, nil
		case len(kept) == 1:
			return kept[0], required, nil
		case required:
			out, err = f.pool.EnsureAllCondition(kept...)
		default:
			out, err = f.pool.EnsureAnyCondition(kept...)
		}
		return out, required, err
	}
	return cond, false, nil
}

func isLabel(c *constant.VersionMatchCondition, v version.Version) bool {
	return c.Exact() && c.Version().Normalize().Equal(v)
}
