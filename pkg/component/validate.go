// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"

	"xtcmod/pkg/constant"
	"xtcmod/pkg/diag"
)

// ErrValidationAborted is returned by Validate when the sink asks it to stop.
var ErrValidationAborted = errors.New("validation aborted by diagnostics sink")

// Validate checks the structural rules of the whole tree and reports
// problems to sink:
//   - annotation contributions must target a mixin defined in the file;
//   - conditional siblings should be mutually exclusive;
//   - fingerprint modules should allow at least one version.
//
// Deferred children are loaded first.
func (f *FileStructure) Validate(sink diag.Sink) error {
	if err := f.loadAll(); err != nil {
		return err
	}

	byID := make(map[constant.IdentityConstant]*Component)
	var all []*Component
	f.root.VisitChildren(func(c *Component) bool {
		all = append(all, c)
		if _, ok := byID[c.id]; !ok {
			byID[c.id] = c
		}
		return true
	}, true, true)

	seen := make(map[*slot]bool)
	for _, c := range all {
		if abort := f.validateComponent(c, byID, sink); abort {
			return ErrValidationAborted
		}
		if len(c.slot.members) > 1 && !seen[c.slot] {
			seen[c.slot] = true
			if abort := validateSiblings(c.slot, sink); abort {
				return ErrValidationAborted
			}
		}
	}
	return nil
}

func (f *FileStructure) validateComponent(c *Component, byID map[constant.IdentityConstant]*Component, sink diag.Sink) bool {
	for _, contrib := range c.contribs {
		if contrib.Kind != ContribAnnotation {
			continue
		}
		target, ok := byID[contrib.Target]
		if !ok {
			continue
		}
		if target.Format() != FormatMixin {
			if sink.Log(diag.SeverityError, diag.CodeAnnotationNotMixin, []any{contrib.Target.Path()}, c.Path()) {
				return true
			}
		}
	}
	if c.IsFingerprint() && c.AllowedVersions().IsEmpty() {
		return sink.Log(diag.SeverityWarning, diag.CodeFingerprintNoVersion, []any{c.Name()}, c.Path())
	}
	return false
}

func validateSiblings(s *slot, sink diag.Sink) bool {
	for i, a := range s.members {
		for _, b := range s.members[i+1:] {
			exclusive, err := constant.MutuallyExclusive(a.cond, b.cond)
			if err != nil {
				if sink.Log(diag.SeverityInfo, diag.CodeConditionIndeterminate, []any{a.cond, err}, a.Path()) {
					return true
				}
				continue
			}
			if !exclusive && sink.Log(diag.SeverityWarning, diag.CodeSiblingsOverlap, []any{a.cond, b.cond}, a.Path()) {
				return true
			}
		}
	}
	return false
}
