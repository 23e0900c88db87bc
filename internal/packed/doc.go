// SPDX-License-Identifier: MPL-2.0

// Package packed implements the primitive encodings of the module binary format:
// fixed-width big-endian integers, unsigned varint magnitudes, zigzag signed
// integers, optional constant indices and length-prefixed strings.
//
// Decoding failures are reported as *FormatError values that wrap one of the
// package sentinels, all of which match ErrFormat under errors.Is.
package packed
