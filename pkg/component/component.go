// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"fmt"

	"xtcmod/pkg/constant"
)

// Sentinel errors for tree manipulation.
var (
	// ErrChildNotAllowed is returned when a component cannot hold a child of the requested format.
	ErrChildNotAllowed = errors.New("child format not allowed here")
	// ErrUnconditionalSibling is returned when a second component is added to a
	// name slot and either component has no condition.
	ErrUnconditionalSibling = errors.New("siblings must all be conditional")
	// ErrNotChild is returned when removing a component from a parent that does not hold it.
	ErrNotChild = errors.New("component is not a child of this parent")
	// ErrWrongFormat is returned when a format-specific operation is applied to another format.
	ErrWrongFormat = errors.New("operation not supported for this format")
)

type (
	// Component is one node of the structure tree.
	Component struct {
		file *FileStructure
		// parent is the slot holding the parent component; nil for the file root.
		parent *slot
		// slot is the name slot this component occupies, shared with its
		// conditional siblings.
		slot *slot

		flags    uint16
		id       constant.IdentityConstant
		cond     constant.Condition
		doc      *constant.StringConstant
		contribs []Contribution
		body     body
		modified bool
	}

	// Contribution is a class relationship such as extends or annotation.
	Contribution struct {
		Kind   Composition
		Target constant.IdentityConstant
	}

	// ChildError describes a rejected child format.
	ChildError struct {
		Parent Format
		Child  Format
	}

	// SiblingError describes a rejected sibling in a name slot.
	SiblingError struct {
		Parent string
		Name   string
	}

	// FormatMismatchError describes a format-specific call on the wrong format.
	FormatMismatchError struct {
		Op     string
		Format Format
	}
)

// Error implements the error interface.
func (e *ChildError) Error() string {
	return fmt.Sprintf("a %s cannot contain a %s", e.Parent, e.Child)
}

// Unwrap returns ErrChildNotAllowed so callers can use errors.Is for programmatic detection.
func (e *ChildError) Unwrap() error { return ErrChildNotAllowed }

// Error implements the error interface.
func (e *SiblingError) Error() string {
	return fmt.Sprintf("%q in %q already exists; every sibling needs a condition", e.Name, e.Parent)
}

// Unwrap returns ErrUnconditionalSibling so callers can use errors.Is for programmatic detection.
func (e *SiblingError) Unwrap() error { return ErrUnconditionalSibling }

// Error implements the error interface.
func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("%s is not supported for a %s", e.Op, e.Format)
}

// Unwrap returns ErrWrongFormat so callers can use errors.Is for programmatic detection.
func (e *FormatMismatchError) Unwrap() error { return ErrWrongFormat }

// File returns the file structure that owns the component.
func (c *Component) File() *FileStructure { return c.file }

// Parent returns the parent component, or nil for the file root. When the
// parent has conditional siblings the eldest one is returned.
func (c *Component) Parent() *Component {
	if c.parent == nil {
		return nil
	}
	return c.parent.members[0]
}

// Format returns the component format.
func (c *Component) Format() Format { return Format(c.flags & FormatMask) }

// Flags returns the raw flag word.
func (c *Component) Flags() uint16 { return c.flags }

// Identity returns the identity constant, or nil for the file root.
func (c *Component) Identity() constant.IdentityConstant { return c.id }

// Name returns the simple name. Methods report the name of their multi-method.
func (c *Component) Name() string {
	if c.id == nil {
		return c.file.primary.Name()
	}
	return c.id.Name()
}

// Path returns the qualified identity path, or "" for the file root.
func (c *Component) Path() string {
	if c.id == nil {
		return ""
	}
	return c.id.Path()
}

// Access returns the component visibility.
func (c *Component) Access() Access { return Access(c.flags & AccessMask >> AccessShift) }

// SetAccess changes the component visibility.
func (c *Component) SetAccess(a Access) {
	c.setFlags(c.flags&^AccessMask | uint16(a)<<AccessShift&AccessMask)
}

// IsAbstract reports whether the abstract flag is set.
func (c *Component) IsAbstract() bool { return c.flags&AbstractBit != 0 }

// SetAbstract sets or clears the abstract flag.
func (c *Component) SetAbstract(b bool) { c.setBit(AbstractBit, b) }

// IsStatic reports whether the static flag is set.
func (c *Component) IsStatic() bool { return c.flags&StaticBit != 0 }

// SetStatic sets or clears the static flag.
func (c *Component) SetStatic(b bool) { c.setBit(StaticBit, b) }

// IsSynthetic reports whether the synthetic flag is set.
func (c *Component) IsSynthetic() bool { return c.flags&SyntheticBit != 0 }

// SetSynthetic sets or clears the synthetic flag.
func (c *Component) SetSynthetic(b bool) { c.setBit(SyntheticBit, b) }

func (c *Component) setBit(bit uint16, on bool) {
	if on {
		c.setFlags(c.flags | bit)
	} else {
		c.setFlags(c.flags &^ bit)
	}
}

func (c *Component) setFlags(flags uint16) {
	if flags != c.flags {
		c.flags = flags
		c.modified = true
	}
}

// Condition returns the condition guarding the component, or nil if it is
// unconditional.
func (c *Component) Condition() constant.Condition { return c.cond }

// IsConditional reports whether the component carries a condition.
func (c *Component) IsConditional() bool { return c.cond != nil }

// AddCondition ANDs cond onto the existing condition.
func (c *Component) AddCondition(cond constant.Condition) error {
	if cond == nil {
		return nil
	}
	combined, err := c.file.pool.And(c.cond, cond)
	if err != nil {
		return err
	}
	c.setCondition(combined)
	return nil
}

func (c *Component) setCondition(cond constant.Condition) {
	if cond != nil {
		cond = c.file.pool.Register(cond).(constant.Condition)
	}
	if cond != c.cond {
		c.cond = cond
		c.modified = true
	}
}

// Doc returns the documentation string.
func (c *Component) Doc() string {
	if c.doc == nil {
		return ""
	}
	return c.doc.Value()
}

// SetDoc replaces the documentation string; "" removes it.
func (c *Component) SetDoc(s string) {
	var doc *constant.StringConstant
	if s != "" {
		doc = c.file.pool.EnsureString(s)
	}
	if doc != c.doc {
		c.doc = doc
		c.modified = true
	}
}

// Contributions returns the class contributions in declaration order.
func (c *Component) Contributions() []Contribution {
	return append([]Contribution(nil), c.contribs...)
}

// AddContribution appends a class contribution. Only class formats accept
// contributions.
func (c *Component) AddContribution(kind Composition, target constant.IdentityConstant) error {
	if !c.Format().IsClass() {
		return &FormatMismatchError{Op: "contribution", Format: c.Format()}
	}
	if !kind.IsValid() {
		return fmt.Errorf("unknown contribution kind %d", kind)
	}
	if target == nil {
		return fmt.Errorf("%s contribution without a target", kind)
	}
	target = c.file.pool.Register(target).(constant.IdentityConstant)
	c.contribs = append(c.contribs, Contribution{Kind: kind, Target: target})
	c.modified = true
	return nil
}

// IsModified reports whether the component or any of its conditional
// siblings changed since the last reset.
func (c *Component) IsModified() bool {
	for _, m := range c.slot.members {
		if m.modified {
			return true
		}
	}
	return false
}

// ResetModified clears the modified flag on the component and its siblings.
func (c *Component) ResetModified() {
	for _, m := range c.slot.members {
		m.modified = false
	}
}

// register re-registers every constant the component refers to. It runs
// inside a pool registration pass.
func (c *Component) register(p *constant.Pool) {
	if c.id != nil {
		c.id = p.Register(c.id).(constant.IdentityConstant)
	}
	if c.cond != nil {
		c.cond = p.Register(c.cond).(constant.Condition)
	}
	if c.doc != nil {
		c.doc = p.Register(c.doc).(*constant.StringConstant)
	}
	for i := range c.contribs {
		c.contribs[i].Target = p.Register(c.contribs[i].Target).(constant.IdentityConstant)
	}
	if c.body != nil {
		c.body.register(p)
	}
}

// String returns the format and path of the component.
func (c *Component) String() string {
	if c.id == nil {
		return c.Format().String()
	}
	return c.Format().String() + " " + c.id.Path()
}
