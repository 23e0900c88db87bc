// SPDX-License-Identifier: MPL-2.0

package component

import (
	"fmt"

	"xtcmod/internal/codec"
	"xtcmod/pkg/version"
)

type (
	// Manifest summarises a module file: what it defines and what it depends
	// on. Its CBOR encoding is deterministic.
	Manifest struct {
		Module        string        `cbor:"module"`
		Version       string        `cbor:"version,omitempty"`
		Versions      []string      `cbor:"versions,omitempty"`
		FormatVersion string        `cbor:"format"`
		Constants     int           `cbor:"constants"`
		Embedded      []string      `cbor:"embedded,omitempty"`
		Fingerprints  []Fingerprint `cbor:"fingerprints,omitempty"`
	}

	// Fingerprint describes one dependency of the primary module.
	Fingerprint struct {
		Module    string   `cbor:"module"`
		Type      string   `cbor:"type"`
		Allowed   []string `cbor:"allowed,omitempty"`
		Excluded  []string `cbor:"excluded,omitempty"`
		Preferred []string `cbor:"preferred,omitempty"`
	}
)

// Manifest builds the manifest of the file.
func (f *FileStructure) Manifest() Manifest {
	m := Manifest{
		Module:        f.primary.Name(),
		FormatVersion: fmt.Sprintf("%d.%d", f.major, f.minor),
		Constants:     f.pool.Len(),
	}
	if v := f.Module().Version(); !v.IsZero() {
		m.Version = v.String()
	}
	m.Versions = versionStrings(f.Versions())

	for _, mod := range f.Modules() {
		switch {
		case mod.IsFingerprint():
			fp := Fingerprint{Module: mod.Name(), Type: mod.ModuleType().String()}
			for v, allow := range mod.AllowedVersions().All() {
				if allow {
					fp.Allowed = append(fp.Allowed, v.String())
				} else {
					fp.Excluded = append(fp.Excluded, v.String())
				}
			}
			fp.Preferred = versionStrings(mod.PreferredVersions())
			m.Fingerprints = append(m.Fingerprints, fp)
		case mod.ModuleType() == ModuleEmbedded:
			m.Embedded = append(m.Embedded, mod.Name())
		}
	}
	return m
}

// Dependencies returns the module names of the fingerprints.
func (m Manifest) Dependencies() []string {
	out := make([]string, 0, len(m.Fingerprints))
	for _, fp := range m.Fingerprints {
		out = append(out, fp.Module)
	}
	return out
}

// MarshalManifest encodes the file's manifest as deterministic CBOR.
func (f *FileStructure) MarshalManifest() ([]byte, error) {
	return codec.Marshal(f.Manifest())
}

// UnmarshalManifest decodes a manifest produced by MarshalManifest.
func UnmarshalManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}

func versionStrings(vs []version.Version) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
