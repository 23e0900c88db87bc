// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"strings"

	"xtcmod/internal/packed"
	"xtcmod/pkg/version"
)

// MaxConditionArity bounds the number of children of a decoded All, Any or
// ExactlyOne condition.
const MaxConditionArity = 63

type (
	// LinkerContext decides, at link time, which named options, structures and
	// versions are present.
	LinkerContext interface {
		// IsSpecified reports whether the named option is defined.
		IsSpecified(name string) bool
		// IsVisible reports whether the structure is present in any version.
		IsVisible(id IdentityConstant) bool
		// IsVisibleVersion reports whether the structure is present in the
		// given version; when exact is false a substitutable version suffices.
		IsVisibleVersion(id IdentityConstant, ver version.Version, exact bool) bool
		// IsVersionMatch reports whether the module being linked is the given
		// version (or, when exact is false, substitutable for it).
		IsVersionMatch(ver version.Version, exact bool) bool
	}

	// Condition is a boolean expression constant.
	Condition interface {
		Constant
		// Evaluate folds the expression against ctx.
		Evaluate(ctx LinkerContext) bool

		// eval folds the expression, asking leaf for the value of each
		// Named, Present and VersionMatch term.
		eval(leaf func(Condition) bool) bool
	}

	// leafCondition is a terminal term answered by a LinkerContext.
	leafCondition interface {
		Condition
		test(ctx LinkerContext) bool
	}

	// NamedCondition is true iff the named option is specified.
	NamedCondition struct {
		header
		name *StringConstant

		pendingName int
	}

	// PresentCondition is true iff a structure is visible, optionally in a
	// specific version.
	PresentCondition struct {
		header
		target IdentityConstant
		ver    *VersionConstant
		exact  bool

		pendingTarget, pendingVer int
	}

	// VersionMatchCondition is true iff the linked module matches a version.
	VersionMatchCondition struct {
		header
		ver   *VersionConstant
		exact bool

		pendingVer int
	}

	// NotCondition negates another condition.
	NotCondition struct {
		header
		cond Condition

		pendingCond int
	}

	// MultiCondition combines two or more conditions with All, Any or
	// ExactlyOne semantics, selected by its format.
	MultiCondition struct {
		header
		format Format
		conds  []Condition

		pending []int
	}
)

// Evaluate returns c.Evaluate(ctx), treating a nil condition as always true.
func Evaluate(c Condition, ctx LinkerContext) bool {
	if c == nil {
		return true
	}
	return c.Evaluate(ctx)
}

func evaluate(c Condition, ctx LinkerContext) bool {
	return c.eval(func(leaf Condition) bool {
		return leaf.(leafCondition).test(ctx)
	})
}

// Format implements Constant.
func (c *NamedCondition) Format() Format { return FormatCondNamed }

// Name returns the option name.
func (c *NamedCondition) Name() string { return c.name.value }

// Evaluate implements Condition.
func (c *NamedCondition) Evaluate(ctx LinkerContext) bool { return evaluate(c, ctx) }

func (c *NamedCondition) eval(leaf func(Condition) bool) bool { return leaf(c) }
func (c *NamedCondition) test(ctx LinkerContext) bool         { return ctx.IsSpecified(c.name.value) }
func (c *NamedCondition) String() string                      { return "named(" + c.name.value + ")" }
func (c *NamedCondition) detail() string                      { return c.name.value }
func (c *NamedCondition) locator() (any, bool)                { return c.name.value, true }
func (c *NamedCondition) visitRefs(fn func(Constant))         { fn(c.name) }
func (c *NamedCondition) rebind(fn func(Constant) Constant)   { c.name = fn(c.name).(*StringConstant) }
func (c *NamedCondition) encode(w *packed.Writer)             { w.PutIndex(c.name.pos) }

func (c *NamedCondition) decode(r *packed.Reader, limit int) (err error) {
	c.pendingName, err = requiredIndex(r, limit, "condition name")
	return err
}

func (c *NamedCondition) resolve(p *Pool) (err error) {
	c.name, err = resolveAs[*StringConstant](p, c.pendingName, "condition name")
	return err
}

// Format implements Constant.
func (c *PresentCondition) Format() Format { return FormatCondPresent }

// Target returns the structure whose presence is tested.
func (c *PresentCondition) Target() IdentityConstant { return c.target }

// Version returns the required version and whether one was given.
func (c *PresentCondition) Version() (version.Version, bool) {
	if c.ver == nil {
		return version.Version{}, false
	}
	return c.ver.value, true
}

// Exact reports whether the version must match exactly.
func (c *PresentCondition) Exact() bool { return c.exact }

// Evaluate implements Condition.
func (c *PresentCondition) Evaluate(ctx LinkerContext) bool { return evaluate(c, ctx) }

func (c *PresentCondition) eval(leaf func(Condition) bool) bool { return leaf(c) }

func (c *PresentCondition) test(ctx LinkerContext) bool {
	if c.ver == nil {
		return ctx.IsVisible(c.target)
	}
	return ctx.IsVisibleVersion(c.target, c.ver.value, c.exact)
}

func (c *PresentCondition) String() string {
	var sb strings.Builder
	sb.WriteString("present(")
	sb.WriteString(c.target.Path())
	if c.ver != nil {
		sb.WriteString(", ")
		sb.WriteString(c.ver.String())
		if c.exact {
			sb.WriteString(", exact")
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c *PresentCondition) detail() string {
	var k keyBuilder
	k.ref(c.target)
	if c.ver == nil {
		k.ref(nil)
	} else {
		k.ref(c.ver)
	}
	return k.flag(c.exact).String()
}

func (c *PresentCondition) visitRefs(fn func(Constant)) {
	fn(c.target)
	if c.ver != nil {
		fn(c.ver)
	}
}

func (c *PresentCondition) rebind(fn func(Constant) Constant) {
	c.target = fn(c.target).(IdentityConstant)
	if c.ver != nil {
		c.ver = fn(c.ver).(*VersionConstant)
	}
}

func (c *PresentCondition) encode(w *packed.Writer) {
	w.PutIndex(c.target.Position())
	if c.ver == nil {
		w.PutIndex(-1)
	} else {
		w.PutIndex(c.ver.pos)
	}
	w.PutBool(c.exact)
}

func (c *PresentCondition) decode(r *packed.Reader, limit int) (err error) {
	if c.pendingTarget, err = requiredIndex(r, limit, "present target"); err != nil {
		return err
	}
	if c.pendingVer, err = r.Index(limit); err != nil {
		return err
	}
	c.exact, err = r.Bool()
	return err
}

func (c *PresentCondition) resolve(p *Pool) (err error) {
	if c.target, err = resolveAs[IdentityConstant](p, c.pendingTarget, "present target"); err != nil {
		return err
	}
	if c.pendingVer >= 0 {
		c.ver, err = resolveAs[*VersionConstant](p, c.pendingVer, "present version")
	}
	return err
}

// Format implements Constant.
func (c *VersionMatchCondition) Format() Format { return FormatCondVersionMatch }

// Version returns the version being matched.
func (c *VersionMatchCondition) Version() version.Version { return c.ver.value }

// Exact reports whether the version must match exactly.
func (c *VersionMatchCondition) Exact() bool { return c.exact }

// Evaluate implements Condition.
func (c *VersionMatchCondition) Evaluate(ctx LinkerContext) bool { return evaluate(c, ctx) }

func (c *VersionMatchCondition) eval(leaf func(Condition) bool) bool { return leaf(c) }
func (c *VersionMatchCondition) test(ctx LinkerContext) bool {
	return ctx.IsVersionMatch(c.ver.value, c.exact)
}

func (c *VersionMatchCondition) String() string {
	if c.exact {
		return "version(" + c.ver.String() + ", exact)"
	}
	return "version(" + c.ver.String() + ")"
}

func (c *VersionMatchCondition) detail() string {
	var k keyBuilder
	return k.ref(c.ver).flag(c.exact).String()
}

func (c *VersionMatchCondition) visitRefs(fn func(Constant)) { fn(c.ver) }

func (c *VersionMatchCondition) rebind(fn func(Constant) Constant) {
	c.ver = fn(c.ver).(*VersionConstant)
}

func (c *VersionMatchCondition) encode(w *packed.Writer) {
	w.PutIndex(c.ver.pos)
	w.PutBool(c.exact)
}

func (c *VersionMatchCondition) decode(r *packed.Reader, limit int) (err error) {
	if c.pendingVer, err = requiredIndex(r, limit, "version match"); err != nil {
		return err
	}
	c.exact, err = r.Bool()
	return err
}

func (c *VersionMatchCondition) resolve(p *Pool) (err error) {
	c.ver, err = resolveAs[*VersionConstant](p, c.pendingVer, "version match")
	return err
}

// Format implements Constant.
func (c *NotCondition) Format() Format { return FormatCondNot }

// Underlying returns the negated condition.
func (c *NotCondition) Underlying() Condition { return c.cond }

// Evaluate implements Condition.
func (c *NotCondition) Evaluate(ctx LinkerContext) bool { return evaluate(c, ctx) }

func (c *NotCondition) eval(leaf func(Condition) bool) bool { return !c.cond.eval(leaf) }
func (c *NotCondition) String() string                      { return "!" + c.cond.String() }
func (c *NotCondition) locator() (any, bool)                { return c.cond, true }
func (c *NotCondition) visitRefs(fn func(Constant))         { fn(c.cond) }
func (c *NotCondition) rebind(fn func(Constant) Constant)   { c.cond = fn(c.cond).(Condition) }
func (c *NotCondition) encode(w *packed.Writer)             { w.PutIndex(c.cond.Position()) }

func (c *NotCondition) detail() string {
	var k keyBuilder
	return k.ref(c.cond).String()
}

func (c *NotCondition) decode(r *packed.Reader, limit int) (err error) {
	c.pendingCond, err = requiredIndex(r, limit, "negated condition")
	return err
}

func (c *NotCondition) resolve(p *Pool) (err error) {
	c.cond, err = resolveAs[Condition](p, c.pendingCond, "negated condition")
	return err
}

// Format implements Constant.
func (c *MultiCondition) Format() Format { return c.format }

// Conditions returns the combined conditions in order.
func (c *MultiCondition) Conditions() []Condition { return append([]Condition(nil), c.conds...) }

// Evaluate implements Condition.
func (c *MultiCondition) Evaluate(ctx LinkerContext) bool { return evaluate(c, ctx) }

func (c *MultiCondition) eval(leaf func(Condition) bool) bool {
	switch c.format {
	case FormatCondAll:
		for _, cond := range c.conds {
			if !cond.eval(leaf) {
				return false
			}
		}
		return true
	case FormatCondAny:
		for _, cond := range c.conds {
			if cond.eval(leaf) {
				return true
			}
		}
		return false
	default:
		found := false
		for _, cond := range c.conds {
			if cond.eval(leaf) {
				if found {
					return false
				}
				found = true
			}
		}
		return found
	}
}

func (c *MultiCondition) String() string {
	var sb strings.Builder
	sep := " && "
	switch c.format {
	case FormatCondAny:
		sep = " || "
	case FormatCondExactlyOne:
		sb.WriteString("one")
		sep = ", "
	}
	sb.WriteByte('(')
	for i, cond := range c.conds {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(cond.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c *MultiCondition) detail() string {
	var k keyBuilder
	k.sb.WriteString("n")
	for _, cond := range c.conds {
		k.ref(cond)
	}
	return k.String()
}

func (c *MultiCondition) visitRefs(fn func(Constant)) {
	for _, cond := range c.conds {
		fn(cond)
	}
}

func (c *MultiCondition) rebind(fn func(Constant) Constant) {
	for i, cond := range c.conds {
		c.conds[i] = fn(cond).(Condition)
	}
}

func (c *MultiCondition) encode(w *packed.Writer) { putIndices(w, c.conds) }

func (c *MultiCondition) decode(r *packed.Reader, limit int) error {
	start := r.Offset()
	n, err := r.Count(MaxConditionArity)
	if err != nil {
		return err
	}
	if n < 2 {
		return &packed.FormatError{Offset: start, What: c.format.String() + " with fewer than 2 conditions", Err: ErrBadReference}
	}
	c.pending = make([]int, n)
	for i := range c.pending {
		if c.pending[i], err = requiredIndex(r, limit, "condition"); err != nil {
			return err
		}
	}
	return nil
}

func (c *MultiCondition) resolve(p *Pool) (err error) {
	c.conds, err = resolveAll[Condition](p, c.pending, c.format.String())
	return err
}

// EnsureNamedCondition returns the canonical condition testing the named option.
func (p *Pool) EnsureNamedCondition(name string) (*NamedCondition, error) {
	if name == "" {
		return nil, &ConditionError{Format: FormatCondNamed, Reason: "empty name"}
	}
	if c, ok := p.located(FormatCondNamed, name); ok {
		return c.(*NamedCondition), nil
	}
	c := &NamedCondition{header: newHeader(p), name: p.EnsureString(name)}
	return p.Register(c).(*NamedCondition), nil
}

// EnsurePresentCondition returns the canonical condition testing whether target
// is visible. A zero ver tests presence in any version.
func (p *Pool) EnsurePresentCondition(target IdentityConstant, ver version.Version, exact bool) (*PresentCondition, error) {
	if target == nil {
		return nil, &ConditionError{Format: FormatCondPresent, Reason: "missing target"}
	}
	if ver.IsZero() && exact {
		return nil, &ConditionError{Format: FormatCondPresent, Reason: "exact match requires a version"}
	}
	c := &PresentCondition{header: newHeader(p), target: target, ver: p.EnsureVersion(ver), exact: exact}
	return p.Register(c).(*PresentCondition), nil
}

// EnsureVersionMatchCondition returns the canonical condition testing the
// version of the module being linked.
func (p *Pool) EnsureVersionMatchCondition(ver version.Version, exact bool) (*VersionMatchCondition, error) {
	if ver.IsZero() {
		return nil, &ConditionError{Format: FormatCondVersionMatch, Reason: "missing version"}
	}
	c := &VersionMatchCondition{header: newHeader(p), ver: p.EnsureVersion(ver), exact: exact}
	return p.Register(c).(*VersionMatchCondition), nil
}

// EnsureNotCondition returns the canonical negation of cond.
func (p *Pool) EnsureNotCondition(cond Condition) (*NotCondition, error) {
	if cond == nil {
		return nil, &ConditionError{Format: FormatCondNot, Reason: "missing condition"}
	}
	cond = p.Register(cond).(Condition)
	if c, ok := p.located(FormatCondNot, cond); ok {
		return c.(*NotCondition), nil
	}
	return p.Register(&NotCondition{header: newHeader(p), cond: cond}).(*NotCondition), nil
}

// EnsureAllCondition returns the canonical conjunction of conds.
func (p *Pool) EnsureAllCondition(conds ...Condition) (*MultiCondition, error) {
	return p.ensureMulti(FormatCondAll, conds)
}

// EnsureAnyCondition returns the canonical disjunction of conds.
func (p *Pool) EnsureAnyCondition(conds ...Condition) (*MultiCondition, error) {
	return p.ensureMulti(FormatCondAny, conds)
}

// EnsureExactlyOneCondition returns the canonical condition that is true iff
// exactly one of conds is true.
func (p *Pool) EnsureExactlyOneCondition(conds ...Condition) (*MultiCondition, error) {
	return p.ensureMulti(FormatCondExactlyOne, conds)
}

func (p *Pool) ensureMulti(f Format, conds []Condition) (*MultiCondition, error) {
	if len(conds) < 2 {
		return nil, &ConditionError{Format: f, Reason: "at least 2 conditions are required"}
	}
	for _, c := range conds {
		if c == nil {
			return nil, &ConditionError{Format: f, Reason: "nil condition"}
		}
	}
	c := &MultiCondition{header: newHeader(p), format: f, conds: append([]Condition(nil), conds...)}
	return p.Register(c).(*MultiCondition), nil
}
