// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// The helpers cover environment variables (MustSetenv, SetHomeDir) and files
// (MustWriteFile, MustReadFile, MustRemoveAll). Module fixtures live in the
// moduletest subpackage.
package testutil
