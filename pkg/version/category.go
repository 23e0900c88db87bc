// SPDX-License-Identifier: MPL-2.0

package version

import "strings"

// Pre-release categories. Each maps to a fixed negative part value so that
// every pre-release sorts below the GA release it precedes.
const (
	CategoryDev   Category = -6
	CategoryCI    Category = -5
	CategoryQC    Category = -4
	CategoryAlpha Category = -3
	CategoryBeta  Category = -2
	CategoryRC    Category = -1
	CategoryGA    Category = 0
)

type (
	// Category is the release category of a version: GA or one of the
	// pre-release markers.
	Category int

	keyword struct {
		text     string
		category Category
	}
)

// keywords lists the accepted pre-release spellings; "qa" is accepted as an
// alias of "qc".
var keywords = []keyword{
	{"alpha", CategoryAlpha},
	{"beta", CategoryBeta},
	{"dev", CategoryDev},
	{"ci", CategoryCI},
	{"qc", CategoryQC},
	{"qa", CategoryQC},
	{"rc", CategoryRC},
}

// String returns the canonical keyword for the category, or "ga".
func (c Category) String() string {
	switch c {
	case CategoryDev:
		return "dev"
	case CategoryCI:
		return "ci"
	case CategoryQC:
		return "qc"
	case CategoryAlpha:
		return "alpha"
	case CategoryBeta:
		return "beta"
	case CategoryRC:
		return "rc"
	case CategoryGA:
		return "ga"
	default:
		return "illegal"
	}
}

// IsValid reports whether c is GA or one of the six pre-release categories.
func (c Category) IsValid() bool {
	return c >= CategoryDev && c <= CategoryGA
}

// IsMoreStableThan reports whether c denotes a more mature release than other.
func (c Category) IsMoreStableThan(other Category) bool {
	return c > other
}

// matchKeyword returns the category whose keyword prefixes s (case-insensitively)
// and the keyword length.
func matchKeyword(s string) (Category, int, bool) {
	for _, kw := range keywords {
		if len(s) >= len(kw.text) && strings.EqualFold(s[:len(kw.text)], kw.text) {
			return kw.category, len(kw.text), true
		}
	}
	return CategoryGA, 0, false
}
