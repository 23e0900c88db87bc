// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"errors"
	"fmt"
)

// MaxTerminals bounds the number of distinct terminal conditions that
// Satisfiability and MutuallyExclusive will enumerate.
const MaxTerminals = 16

const (
	// Contingent conditions are true under some contexts and false under others.
	Contingent Satisfiability = iota
	// AlwaysTrue conditions hold under every context.
	AlwaysTrue
	// AlwaysFalse conditions can never hold.
	AlwaysFalse
)

// ErrTooManyTerminals is returned when a truth table would be too large to enumerate.
var ErrTooManyTerminals = errors.New("too many terminal conditions")

// Satisfiability classifies a condition over all possible contexts.
type Satisfiability int

// String returns the classification name.
func (s Satisfiability) String() string {
	switch s {
	case AlwaysTrue:
		return "always-true"
	case AlwaysFalse:
		return "always-false"
	default:
		return "contingent"
	}
}

// And returns the conjunction of a and b, flattening nested All conditions and
// dropping duplicates. A nil operand means "unconditional" and is the identity.
func (p *Pool) And(a, b Condition) (Condition, error) {
	return p.combine(FormatCondAll, a, b)
}

// Or returns the disjunction of a and b, flattening nested Any conditions and
// dropping duplicates. A nil operand means "unconditional", so the result is nil.
func (p *Pool) Or(a, b Condition) (Condition, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	return p.combine(FormatCondAny, a, b)
}

func (p *Pool) combine(f Format, a, b Condition) (Condition, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	}
	var conds []Condition
	seen := make(map[Condition]bool)
	for _, c := range []Condition{a, b} {
		c = p.Register(c).(Condition)
		parts := []Condition{c}
		if m, ok := c.(*MultiCondition); ok && m.format == f {
			parts = m.conds
		}
		for _, part := range parts {
			if !seen[part] {
				seen[part] = true
				conds = append(conds, part)
			}
		}
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return p.ensureMulti(f, conds)
}

// Negate returns the negation of c, collapsing a double negation.
func (p *Pool) Negate(c Condition) (Condition, error) {
	if not, ok := c.(*NotCondition); ok {
		return not.cond, nil
	}
	return p.EnsureNotCondition(c)
}

// Terminals returns the distinct Named, Present and VersionMatch conditions of
// c in first-seen order.
func Terminals(c Condition) []Condition {
	var out []Condition
	seen := make(map[string]bool)
	collectTerminals(c, seen, &out)
	return out
}

func collectTerminals(c Condition, seen map[string]bool, out *[]Condition) {
	switch c := c.(type) {
	case *NotCondition:
		collectTerminals(c.cond, seen, out)
	case *MultiCondition:
		for _, cond := range c.conds {
			collectTerminals(cond, seen, out)
		}
	default:
		key := fmt.Sprintf("%d/%s", c.Format(), Key(c))
		if !seen[key] {
			seen[key] = true
			*out = append(*out, c)
		}
	}
}

// Satisfy classifies c by evaluating it under every assignment of its
// terminal conditions. A nil condition is AlwaysTrue.
func Satisfy(c Condition) (Satisfiability, error) {
	if c == nil {
		return AlwaysTrue, nil
	}
	terms := Terminals(c)
	var sawTrue, sawFalse bool
	err := enumerate(terms, func(leaf func(Condition) bool) bool {
		if c.eval(leaf) {
			sawTrue = true
		} else {
			sawFalse = true
		}
		return !(sawTrue && sawFalse)
	})
	switch {
	case err != nil:
		return Contingent, err
	case sawTrue && sawFalse:
		return Contingent, nil
	case sawTrue:
		return AlwaysTrue, nil
	default:
		return AlwaysFalse, nil
	}
}

// MutuallyExclusive reports whether a and b can never both be true. A nil
// condition is always true.
func MutuallyExclusive(a, b Condition) (bool, error) {
	if a == nil || b == nil {
		other := a
		if a == nil {
			other = b
		}
		if other == nil {
			return false, nil
		}
		s, err := Satisfy(other)
		return s == AlwaysFalse, err
	}

	terms := Terminals(a)
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		seen[fmt.Sprintf("%d/%s", t.Format(), Key(t))] = true
	}
	collectTerminals(b, seen, &terms)

	exclusive := true
	err := enumerate(terms, func(leaf func(Condition) bool) bool {
		if a.eval(leaf) && b.eval(leaf) {
			exclusive = false
		}
		return exclusive
	})
	return exclusive, err
}

// enumerate calls fn with a leaf oracle for every assignment of terms until fn
// returns false.
func enumerate(terms []Condition, fn func(leaf func(Condition) bool) bool) error {
	if len(terms) > MaxTerminals {
		return fmt.Errorf("%w: %d exceeds %d", ErrTooManyTerminals, len(terms), MaxTerminals)
	}
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[fmt.Sprintf("%d/%s", t.Format(), Key(t))] = i
	}
	for mask := 0; mask < 1<<len(terms); mask++ {
		leaf := func(c Condition) bool {
			i := index[fmt.Sprintf("%d/%s", c.Format(), Key(c))]
			return mask&(1<<i) != 0
		}
		if !fn(leaf) {
			break
		}
	}
	return nil
}
