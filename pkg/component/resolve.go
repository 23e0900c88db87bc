// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"xtcmod/pkg/constant"
)

// Resolution errors.
var (
	// ErrAbsent is returned by Resolved accessors when no sibling is present.
	ErrAbsent = errors.New("component is absent")
	// ErrDisagreement is returned when present siblings disagree on a property.
	ErrDisagreement = errors.New("conditional siblings disagree")
)

type (
	// Resolved is the outcome of looking up a child name under a linker
	// context: absent, exactly one component, or a composite of several
	// present siblings.
	Resolved struct {
		members []*Component
	}

	// DisagreementError reports the values found when present siblings
	// disagree on a property.
	DisagreementError struct {
		Property string
		Values   []string
	}
)

// Error implements the error interface.
func (e *DisagreementError) Error() string {
	return fmt.Sprintf("siblings disagree on %s: %s", e.Property, strings.Join(e.Values, ", "))
}

// Unwrap returns ErrDisagreement so callers can use errors.Is for programmatic detection.
func (e *DisagreementError) Unwrap() error { return ErrDisagreement }

// resolve selects the members of s that are present under ctx. A lone
// unconditional member is returned as is; a nil ctx selects every member.
func resolve(s *slot, ctx constant.LinkerContext) Resolved {
	if len(s.members) == 1 && s.members[0].cond == nil {
		return Resolved{members: s.members[:1:1]}
	}
	if ctx == nil {
		return Resolved{members: slices.Clone(s.members)}
	}
	var present []*Component
	for _, m := range s.members {
		if constant.Evaluate(m.cond, ctx) {
			present = append(present, m)
		}
	}
	return Resolved{members: present}
}

// IsAbsent reports whether no component is present.
func (r Resolved) IsAbsent() bool { return len(r.members) == 0 }

// IsComposite reports whether more than one sibling is present.
func (r Resolved) IsComposite() bool { return len(r.members) > 1 }

// One returns the component when exactly one is present.
func (r Resolved) One() (*Component, bool) {
	if len(r.members) != 1 {
		return nil, false
	}
	return r.members[0], true
}

// Members returns the present components, eldest first.
func (r Resolved) Members() []*Component { return slices.Clone(r.members) }

// Format returns the format all present members share.
func (r Resolved) Format() (Format, error) {
	return agree(r, "format", (*Component).Format)
}

// Access returns the access all present members share.
func (r Resolved) Access() (Access, error) {
	return agree(r, "access", (*Component).Access)
}

// Name returns the name all present members share.
func (r Resolved) Name() (string, error) {
	return agree(r, "name", (*Component).Name)
}

// Identity returns the identity all present members share.
func (r Resolved) Identity() (constant.IdentityConstant, error) {
	return agree(r, "identity", (*Component).Identity)
}

// IsAbstract reports the abstract flag all present members share.
func (r Resolved) IsAbstract() (bool, error) {
	return agree(r, "abstract", (*Component).IsAbstract)
}

// IsStatic reports the static flag all present members share.
func (r Resolved) IsStatic() (bool, error) {
	return agree(r, "static", (*Component).IsStatic)
}

// IsSynthetic reports the synthetic flag all present members share.
func (r Resolved) IsSynthetic() (bool, error) {
	return agree(r, "synthetic", (*Component).IsSynthetic)
}

func agree[T comparable](r Resolved, property string, get func(*Component) T) (T, error) {
	var zero T
	if len(r.members) == 0 {
		return zero, ErrAbsent
	}
	first := get(r.members[0])
	for _, m := range r.members[1:] {
		if get(m) != first {
			values := make([]string, len(r.members))
			for i, mm := range r.members {
				values[i] = fmt.Sprint(get(mm))
			}
			return zero, &DisagreementError{Property: property, Values: values}
		}
	}
	return first, nil
}
