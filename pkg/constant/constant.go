// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"xtcmod/internal/packed"
)

// Sentinel errors for constant construction and decoding.
var (
	// ErrInvalidName is returned when an identity name is not a legal identifier.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidParent is returned when an identity is placed under a parent of the wrong kind.
	ErrInvalidParent = errors.New("invalid parent")
	// ErrInvalidCondition is returned for malformed conditional constants.
	ErrInvalidCondition = errors.New("invalid condition")
	// ErrPoolNotEmpty is returned when decoding into a pool that already holds constants.
	ErrPoolNotEmpty = errors.New("constant pool is not empty")

	// ErrUnknownFormat is returned when a constant record carries an unknown tag.
	ErrUnknownFormat = fmt.Errorf("%w: unknown constant format", packed.ErrFormat)
	// ErrBadReference is returned when a constant refers to a missing or mistyped constant.
	ErrBadReference = fmt.Errorf("%w: bad constant reference", packed.ErrFormat)
	// ErrDuplicateConstant is returned when a pool image holds two equal constants.
	ErrDuplicateConstant = fmt.Errorf("%w: duplicate constant", packed.ErrFormat)
	// ErrCyclicConstant is returned when constant references form a cycle.
	ErrCyclicConstant = fmt.Errorf("%w: cyclic constant reference", packed.ErrFormat)
)

type (
	// Constant is an immutable value owned by exactly one Pool.
	Constant interface {
		// Format returns the kind of the constant.
		Format() Format
		// Position returns the index of the constant in its pool, or -1 if the
		// constant is not currently registered.
		Position() int
		// RefCount returns the number of references counted during the most
		// recent registration pass.
		RefCount() int
		// Pool returns the owning pool.
		Pool() *Pool
		// String returns a human readable rendering.
		String() string

		base() *header
		detail() string
		locator() (any, bool)
		visitRefs(fn func(Constant))
		rebind(fn func(Constant) Constant)
		encode(w *packed.Writer)
		decode(r *packed.Reader, limit int) error
		resolve(p *Pool) error
	}

	// header holds the pool bookkeeping shared by every constant.
	header struct {
		pool  *Pool
		pos   int
		refs  int
		key   string
		keyed bool
	}

	// NameError describes an invalid identity name.
	NameError struct {
		Kind string
		Name string
	}

	// ParentError describes an identity created under a parent of the wrong kind.
	ParentError struct {
		Kind   string
		Parent Format
	}

	// ConditionError describes a malformed conditional constant.
	ConditionError struct {
		Format Format
		Reason string
	}

	// ForeignConstantError is the panic value raised when a constant owned by one
	// pool is registered with another.
	ForeignConstantError struct {
		Constant Constant
	}
)

// Error implements the error interface.
func (e *NameError) Error() string {
	return fmt.Sprintf("invalid %s name %q", e.Kind, e.Name)
}

// Unwrap returns ErrInvalidName so callers can use errors.Is for programmatic detection.
func (e *NameError) Unwrap() error { return ErrInvalidName }

// Error implements the error interface.
func (e *ParentError) Error() string {
	return fmt.Sprintf("a %s cannot be nested in a %s", e.Kind, e.Parent)
}

// Unwrap returns ErrInvalidParent so callers can use errors.Is for programmatic detection.
func (e *ParentError) Unwrap() error { return ErrInvalidParent }

// Error implements the error interface.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("invalid %s condition: %s", e.Format, e.Reason)
}

// Unwrap returns ErrInvalidCondition so callers can use errors.Is for programmatic detection.
func (e *ConditionError) Unwrap() error { return ErrInvalidCondition }

// Error implements the error interface.
func (e *ForeignConstantError) Error() string {
	return fmt.Sprintf("constant %s (%s) belongs to a different pool", e.Constant, e.Constant.Format())
}

func (h *header) base() *header { return h }

// Position returns the index of the constant in its pool, or -1.
func (h *header) Position() int { return h.pos }

// RefCount returns the reference count from the last registration pass.
func (h *header) RefCount() int { return h.refs }

// Pool returns the owning pool.
func (h *header) Pool() *Pool { return h.pool }

func (h *header) locator() (any, bool)           { return nil, false }
func (h *header) visitRefs(func(Constant))       {}
func (h *header) rebind(func(Constant) Constant) {}
func (h *header) resolve(*Pool) error            { return nil }

func newHeader(p *Pool) header { return header{pool: p, pos: -1} }

func badRef(what string, i int) error {
	return &packed.FormatError{What: fmt.Sprintf("%s reference %d", what, i), Err: ErrBadReference}
}

// Key returns the structural identity of c: two constants of the same format
// are equal iff their keys are equal. Keys do not depend on positions.
func Key(c Constant) string {
	h := c.base()
	if !h.keyed {
		h.key = c.detail()
		h.keyed = true
	}
	return h.key
}

// Equal reports whether a and b have the same format and details.
func Equal(a, b Constant) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format() == b.Format() && Key(a) == Key(b)
}

// Compare orders constants by format, then by details.
func Compare(a, b Constant) int {
	if a.Format() != b.Format() {
		if a.Format() < b.Format() {
			return -1
		}
		return 1
	}
	return strings.Compare(Key(a), Key(b))
}

// keyBuilder assembles unambiguous detail keys from nested constant keys.
type keyBuilder struct {
	sb strings.Builder
}

func (k *keyBuilder) ref(c Constant) *keyBuilder {
	if c == nil {
		k.sb.WriteString("-;")
		return k
	}
	key := Key(c)
	k.sb.WriteString(strconv.Itoa(int(c.Format())))
	k.sb.WriteByte(':')
	k.sb.WriteString(strconv.Itoa(len(key)))
	k.sb.WriteByte(':')
	k.sb.WriteString(key)
	return k
}

func (k *keyBuilder) refs(cs []Constant) *keyBuilder {
	k.sb.WriteString(strconv.Itoa(len(cs)))
	k.sb.WriteByte('[')
	for _, c := range cs {
		k.ref(c)
	}
	k.sb.WriteByte(']')
	return k
}

func (k *keyBuilder) flag(b bool) *keyBuilder {
	if b {
		k.sb.WriteByte('T')
	} else {
		k.sb.WriteByte('F')
	}
	return k
}

func (k *keyBuilder) String() string { return k.sb.String() }

// IsIdentifier reports whether s is a legal simple name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// IsQualifiedName reports whether s is a dot-separated sequence of identifiers.
func IsQualifiedName(s string) bool {
	if s == "" {
		return false
	}
	for part := range strings.SplitSeq(s, ".") {
		if !IsIdentifier(part) {
			return false
		}
	}
	return true
}
