// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"xtcmod/pkg/component"
	"xtcmod/pkg/repository"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidDefine is returned when a linker define is not an identifier.
	ErrInvalidDefine = errors.New("invalid linker define")
	// ErrInvalidMaxErrors is returned when diagnostics.max_errors is negative.
	ErrInvalidMaxErrors = errors.New("invalid max errors")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	definePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Repository  RepositoryConfig  `json:"repository" mapstructure:"repository"`
		File        FileConfig        `json:"file" mapstructure:"file"`
		Diagnostics DiagnosticsConfig `json:"diagnostics" mapstructure:"diagnostics"`
		Linker      LinkerConfig      `json:"linker" mapstructure:"linker"`
		UI          UIConfig          `json:"ui" mapstructure:"ui"`
	}

	// RepositoryConfig locates the local module repository.
	RepositoryConfig struct {
		// Path is the repository directory; empty selects DefaultRepositoryDir.
		Path string `json:"path" mapstructure:"path"`
		// Compression is "none", "lz4" or "zstd".
		Compression string `json:"compression" mapstructure:"compression"`
	}

	// FileConfig controls how module files are read and written.
	FileConfig struct {
		LazyChildren bool `json:"lazy_children" mapstructure:"lazy_children"`
		Optimize     bool `json:"optimize" mapstructure:"optimize"`
	}

	// DiagnosticsConfig bounds validation output.
	DiagnosticsConfig struct {
		// MaxErrors aborts validation after this many errors (0 = unlimited).
		MaxErrors int `json:"max_errors" mapstructure:"max_errors"`
	}

	// LinkerConfig supplies the linker context used when none is given on
	// the command line.
	LinkerConfig struct {
		Profile string   `json:"profile" mapstructure:"profile"`
		Defines []string `json:"defines" mapstructure:"defines"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Repository: RepositoryConfig{
			Compression: repository.CompressionZstd.String(),
		},
		File: FileConfig{
			LazyChildren: true,
			Optimize:     true,
		},
		Diagnostics: DiagnosticsConfig{
			MaxErrors: 20,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// CompressionMode parses Compression.
func (c RepositoryConfig) CompressionMode() (repository.Compression, error) {
	return repository.ParseCompression(c.Compression)
}

// ReadOptions returns the component options matching the file section.
func (c FileConfig) ReadOptions() []component.FileOption {
	return []component.FileOption{component.WithLazyChildren(c.LazyChildren)}
}

// WriteOptions returns the encoder options matching the file section.
func (c FileConfig) WriteOptions() component.WriteOptions {
	return component.WriteOptions{Optimize: c.Optimize}
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// IsValid returns whether the Config has valid fields. The checks repeat
// what config_schema.cue enforces so that values coming from environment
// variables are held to the same rules.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if _, err := c.Repository.CompressionMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Repository.Path != "" && strings.TrimSpace(c.Repository.Path) == "" {
		errs = append(errs, fmt.Errorf("repository.path %q: must not be whitespace-only", c.Repository.Path))
	}
	if c.Diagnostics.MaxErrors < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidMaxErrors, c.Diagnostics.MaxErrors))
	}
	for _, d := range c.Linker.Defines {
		if !definePattern.MatchString(d) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDefine, d))
		}
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is
// matches both the config sentinel and the sentinel of each field.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
