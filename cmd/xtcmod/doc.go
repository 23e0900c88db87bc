// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the xtcmod command line interface: inspecting,
// validating and rewriting module files, managing version labels, the local
// module repository and linking.
package cmd
