// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown guidance
// for the problems xtcmod users run into: unreadable module files, missing
// dependencies, corrupt repositories and invalid configuration. Catalog
// entries are rendered for the terminal with glamour.
package issue
