// SPDX-License-Identifier: MPL-2.0

// Package repository stores module files and finds them by module name and
// version.
//
// Three implementations are provided: Memory keeps encoded files in memory,
// Dir keeps them in a directory (optionally zstd or lz4 compressed) with a
// CBOR index of their manifests and blake3 digests, and Chain searches a list
// of repositories in order.
package repository
