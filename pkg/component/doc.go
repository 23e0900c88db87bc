// SPDX-License-Identifier: MPL-2.0

// Package component models the structure tree of a module file: modules,
// packages, classes, properties, multi-methods and methods, each identified
// by a constant from the file's pool.
//
// A name slot inside a parent holds either one unconditional component or a
// group of conditional siblings, each guarded by a condition constant; at
// link time a LinkerContext selects which siblings are present. Siblings of
// one slot share a single set of children, which may be kept as undecoded
// bytes until first accessed.
//
// FileStructure owns the constant pool and the tree and reads and writes the
// binary module format. None of the types in this package are safe for
// concurrent use; callers serialize access per FileStructure.
package component
