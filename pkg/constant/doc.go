// SPDX-License-Identifier: MPL-2.0

// Package constant implements the constant pool of a module file: the
// canonical, deduplicated store of every literal, identity and condition value
// the module references.
//
// Constants are created only through a Pool (the Ensure* methods or Decode), and
// two constants with the same format and details are always the same object
// within one pool. Every live constant has a position equal to its index in the
// pool; that position is how the binary format refers to it.
//
// Serialization runs a registration pass bracketed by PreRegisterAll and
// PostRegisterAll. During the pass every Register call counts a reference, and
// the first reference to a constant also counts references to everything it
// depends on. PostRegisterAll(true) then drops unreferenced constants and
// reorders the rest so that the most used constants get the smallest
// positions, which keeps varint-encoded references short.
//
// Conditional constants (Named, Present, VersionMatch, Not, All, Any,
// ExactlyOne) form boolean expressions evaluated against a LinkerContext.
package constant
