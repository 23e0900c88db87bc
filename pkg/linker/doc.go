// SPDX-License-Identifier: MPL-2.0

// Package linker resolves a module file against a repository.
//
// A Profile, usually read from TOML, names the defined options, the visible
// structures and the version of the module being linked. Context turns a
// profile and a repository into a constant.LinkerContext, and Link loads the
// transitive fingerprint dependencies of a file and orders them.
package linker
