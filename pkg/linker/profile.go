// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"xtcmod/pkg/version"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidProfile is returned when a linker profile fails validation.
var ErrInvalidProfile = errors.New("invalid linker profile")

type (
	// Profile describes the environment a module is linked in.
	//
	// Example:
	//
	//	defines      = ["debug"]
	//	self_version = "1.2"
	//
	//	[[visible]]
	//	path     = "json.xtclang.org"
	//	versions = ["1.0", "1.1"]
	Profile struct {
		Defines     []string        `toml:"defines"`
		SelfVersion version.Version `toml:"self_version"`
		Visible     []Visible       `toml:"visible"`
	}

	// Visible declares a structure path, such as "json.xtclang.org" or
	// "json.xtclang.org:mapping.Schema", present at link time. Without
	// versions the structure is present in every version.
	Visible struct {
		Path     string            `toml:"path"`
		Versions []version.Version `toml:"versions"`
	}

	// ProfileError reports an invalid profile entry.
	ProfileError struct {
		Field  string
		Reason string
	}
)

// Error implements the error interface.
func (e *ProfileError) Error() string {
	return fmt.Sprintf("invalid linker profile: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidProfile so callers can use errors.Is for programmatic detection.
func (e *ProfileError) Unwrap() error { return ErrInvalidProfile }

// LoadProfile reads a TOML profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading linker profile: %w", err)
	}
	return ParseProfile(bytes.NewReader(data))
}

// ParseProfile decodes and validates a TOML profile. Unknown keys are rejected.
func ParseProfile(r io.Reader) (*Profile, error) {
	var p Profile
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the profile entries.
func (p *Profile) Validate() error {
	for i, d := range p.Defines {
		if strings.TrimSpace(d) == "" {
			return &ProfileError{Field: fmt.Sprintf("defines[%d]", i), Reason: "empty option name"}
		}
	}
	seen := make(map[string]bool, len(p.Visible))
	for i, v := range p.Visible {
		field := fmt.Sprintf("visible[%d]", i)
		switch {
		case v.Path == "":
			return &ProfileError{Field: field, Reason: "missing path"}
		case seen[v.Path]:
			return &ProfileError{Field: field, Reason: "duplicate path " + v.Path}
		}
		seen[v.Path] = true
		for _, ver := range v.Versions {
			if ver.IsZero() {
				return &ProfileError{Field: field, Reason: "empty version"}
			}
		}
	}
	return nil
}

// Marshal encodes the profile as TOML.
func (p *Profile) Marshal() ([]byte, error) {
	return toml.Marshal(p)
}
