// SPDX-License-Identifier: MPL-2.0

package version

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is an immutable module version. The zero Version has no parts and
	// is used to mean "no version".
	Version struct {
		parts []int
		build string
	}

	// InvalidVersionError is returned when a version literal or part list does
	// not form a legal version.
	InvalidVersionError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid version %q", e.Value)
	}
	return fmt.Sprintf("invalid version %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Parse parses a version literal such as "1.2", "1.2.3-beta", "1.0.rc2" or
// "2.1+b77". A pre-release keyword may be introduced by either '.' or '-'.
func Parse(s string) (Version, error) {
	fail := func(reason string) (Version, error) {
		return Version{}, &InvalidVersionError{Value: s, Reason: reason}
	}

	var (
		parts []int
		i     int
	)
	for i < len(s) && isDigit(s[i]) {
		n, next, err := scanNumber(s, i)
		if err != nil {
			return fail(err.Error())
		}
		parts = append(parts, n)
		i = next
		if i == len(s) || s[i] == '+' {
			break
		}
		if s[i] != '.' && s[i] != '-' {
			return fail(fmt.Sprintf("unexpected %q", s[i]))
		}
		sep := s[i]
		i++
		if i == len(s) {
			return fail("trailing separator")
		}
		if sep == '-' && isDigit(s[i]) {
			return fail("'-' must introduce a pre-release keyword")
		}
	}
	if len(parts) == 0 {
		return fail("missing version number")
	}

	if i < len(s) && s[i] != '+' {
		cat, n, ok := matchKeyword(s[i:])
		if !ok {
			return fail(fmt.Sprintf("unknown pre-release keyword at %q", s[i:]))
		}
		parts = append(parts, int(cat))
		i += n
		if i < len(s) && isDigit(s[i]) {
			sub, next, err := scanNumber(s, i)
			if err != nil {
				return fail(err.Error())
			}
			parts = append(parts, sub)
			i = next
		}
	}

	var build string
	if i < len(s) {
		if s[i] != '+' {
			return fail(fmt.Sprintf("unexpected %q", s[i]))
		}
		build = s[i+1:]
		if build == "" {
			return fail("empty build metadata")
		}
	}
	return Version{parts: parts, build: build}, nil
}

// MustParse is like Parse but panics on error. It is intended for literals in
// code and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromParts builds a version from explicit parts. Negative parts denote a
// pre-release category; at most one may appear, only as the last or
// second-to-last part, never directly after a 0 part, and only a
// non-negative sub-revision may follow it.
func FromParts(parts []int, build string) (Version, error) {
	v := Version{parts: slices.Clone(parts), build: build}
	if len(parts) == 0 {
		return Version{}, &InvalidVersionError{Value: "", Reason: "no parts"}
	}
	for i, p := range parts {
		if p >= 0 {
			continue
		}
		if i == 0 {
			return Version{}, &InvalidVersionError{Value: v.String(), Reason: "pre-release marker needs a version number"}
		}
		if !Category(p).IsValid() {
			return Version{}, &InvalidVersionError{Value: v.String(), Reason: fmt.Sprintf("illegal part %d at %d", p, i)}
		}
		switch len(parts) - i {
		case 1:
		case 2:
			if parts[i+1] < 0 {
				return Version{}, &InvalidVersionError{Value: v.String(), Reason: "sub-revision must be non-negative"}
			}
		default:
			return Version{}, &InvalidVersionError{Value: v.String(), Reason: "pre-release marker must be last or second-to-last"}
		}
		if i > 0 && parts[i-1] == 0 {
			return Version{}, &InvalidVersionError{Value: v.String(), Reason: "pre-release marker may not follow a 0 part"}
		}
	}
	return v, nil
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool { return len(v.parts) == 0 }

// Len returns the number of parts, including any pre-release marker and sub-revision.
func (v Version) Len() int { return len(v.parts) }

// Part returns the i-th part.
func (v Version) Part(i int) int { return v.parts[i] }

// Parts returns a copy of the parts.
func (v Version) Parts() []int { return slices.Clone(v.parts) }

// Build returns the build metadata, if any.
func (v Version) Build() string { return v.build }

// IsGA reports whether v is a general-availability release.
func (v Version) IsGA() bool {
	return v.Category() == CategoryGA
}

// Category returns the pre-release category of v, or CategoryGA.
func (v Version) Category() Category {
	for _, p := range v.parts {
		if p < 0 {
			return Category(p)
		}
	}
	return CategoryGA
}

// gaLen returns the number of leading GA parts.
func (v Version) gaLen() int {
	n := len(v.parts)
	switch {
	case n >= 1 && v.parts[n-1] < 0:
		return n - 1
	case n >= 2 && v.parts[n-2] < 0:
		return n - 2
	default:
		return n
	}
}

// String renders the canonical form of the version.
func (v Version) String() string {
	var sb strings.Builder
	ga := true
	for i, p := range v.parts {
		switch {
		case p >= 0:
			if i > 0 && ga {
				sb.WriteByte('.')
			}
			sb.WriteString(strconv.Itoa(p))
		default:
			ga = false
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteString(Category(p).String())
		}
	}
	if v.build != "" {
		sb.WriteByte('+')
		sb.WriteString(v.build)
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the
// zero Version.
func (v *Version) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Equal reports whether v and other have identical parts and build metadata.
func (v Version) Equal(other Version) bool {
	return slices.Equal(v.parts, other.parts) && v.build == other.build
}

// Compare orders versions. Shared parts are compared left to right; when one
// version is a prefix of the other, the first non-zero extra part of the longer
// one decides (a pre-release marker sorts it lower, a positive part higher).
// When all extra parts are zero the longer version sorts higher, so "1.2" and
// "1.2.0" differ only by depth. Build metadata is ignored.
func (v Version) Compare(other Version) int {
	a, b := v.parts, other.parts
	shared := min(len(a), len(b))
	for i := range shared {
		if a[i] != b[i] {
			return cmp.Compare(a[i], b[i])
		}
	}

	longer, sign := a, 1
	if len(b) > len(a) {
		longer, sign = b, -1
	}
	for _, p := range longer[shared:] {
		switch {
		case p < 0:
			return -sign
		case p > 0:
			return sign
		}
	}
	return cmp.Compare(len(a), len(b))
}

// IsSameAs reports whether v and other denote the same release: the shared
// parts match and every extra trailing part of the longer one is 0.
func (v Version) IsSameAs(other Version) bool {
	a, b := v.parts, other.parts
	shared := min(len(a), len(b))
	if !slices.Equal(a[:shared], b[:shared]) {
		return false
	}
	remaining := a
	if len(b) > len(a) {
		remaining = b
	}
	for _, p := range remaining[shared:] {
		if p != 0 {
			return false
		}
	}
	return true
}

// IsSubstitutableFor reports whether v, as the version actually available,
// satisfies a request for version requested.
//
// Shared GA parts before the last shared GA part must match exactly, and the
// last shared GA part of v must be at least that of requested. On a tie, extra
// GA parts on v make it newer only if one is non-zero, while extra GA parts on
// requested must all be zero. Finally a GA v satisfies a pre-release request,
// a pre-release v never satisfies a GA request, and between two pre-releases
// the later category or sub-revision wins.
func (v Version) IsSubstitutableFor(requested Version) bool {
	if slices.Equal(v.parts, requested.parts) {
		return true
	}
	this, that := v.parts, requested.parts
	thisGA, thatGA := v.gaLen(), requested.gaLen()

	lastGA := min(thisGA, thatGA) - 1
	for i := 0; i < lastGA; i++ {
		if this[i] != that[i] {
			return false
		}
	}

	diff := 0
	if lastGA >= 0 {
		diff = this[lastGA] - that[lastGA]
	}
	if diff < 0 {
		return false
	}
	if diff > 0 {
		return thisGA >= thatGA
	}

	switch {
	case thisGA > thatGA:
		for _, p := range this[thatGA:thisGA] {
			if p > 0 {
				return true
			}
		}
	case thisGA < thatGA:
		for _, p := range that[thisGA:thatGA] {
			if p > 0 {
				return false
			}
		}
	}

	thisIsGA, thatIsGA := thisGA == len(this), thatGA == len(that)
	if thisIsGA && thatIsGA {
		return true
	}
	if thisIsGA != thatIsGA {
		return thisIsGA
	}

	thisPre, thatPre := this[thisGA:], that[thatGA:]
	shared := min(len(thisPre), len(thatPre))
	for i := range shared {
		switch d := thisPre[i] - thatPre[i]; {
		case d < 0:
			return false
		case d > 0:
			return true
		}
	}
	return len(thisPre) >= len(thatPre)
}

// Normalize strips trailing zero parts, keeping at least one part.
func (v Version) Normalize() Version {
	n := len(v.parts)
	for n > 1 && v.parts[n-1] == 0 {
		n--
	}
	if n == len(v.parts) {
		return v
	}
	return Version{parts: slices.Clone(v.parts[:n]), build: v.build}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func scanNumber(s string, i int) (n, next int, err error) {
	j := i
	for j < len(s) && isDigit(s[j]) {
		j++
	}
	n, err = strconv.Atoi(s[i:j])
	if err != nil {
		return 0, i, fmt.Errorf("part %q out of range", s[i:j])
	}
	return n, j, nil
}
