// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/xtcmod/config.cue on Linux,
// ~/Library/Application Support/xtcmod/config.cue on macOS and
// %APPDATA%\xtcmod\config.cue on Windows, validated against the embedded
// config_schema.cue and merged over the defaults. XTCMOD_* environment
// variables override file values (XTCMOD_REPOSITORY_COMPRESSION=zstd).
package config
