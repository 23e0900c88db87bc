// SPDX-License-Identifier: MPL-2.0

// Package version implements module version literals and the version-keyed trie
// used to record per-version facts about a module.
//
// A Version is an ordered list of integer parts. GA releases contain only
// non-negative parts; pre-release versions carry one negative category marker
// (dev, ci, qc, alpha, beta, rc) in the last or second-to-last position,
// optionally followed by a numeric sub-revision:
//
//	1.2.3        GA
//	1.2-beta     pre-release
//	1.2.rc2      pre-release with sub-revision 2
//	1.2.3+b1842  build metadata, ignored for ordering
//
// Three relations are defined and intentionally kept distinct: Compare (a total
// order), IsSameAs (trailing-zero-insensitive identity) and IsSubstitutableFor
// (the compatibility relation used when resolving module dependencies).
package version
