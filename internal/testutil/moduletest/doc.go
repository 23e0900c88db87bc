// SPDX-License-Identifier: MPL-2.0

// Package moduletest builds module files for tests in packages that consume
// pkg/component, such as the repository and the linker.
package moduletest
