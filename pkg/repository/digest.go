// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is the keyed BLAKE3 digest of an uncompressed module file.
type Digest [32]byte

// digestKey separates module digests from other BLAKE3 uses of the same bytes.
var digestKey = [32]byte{
	'x', 't', 'c', 'm', 'o', 'd', '.', 'r', 'e', 'p', 'o', 's', 'i', 't', 'o', 'r',
	'y', '.', 'm', 'o', 'd', 'u', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestOf computes the digest of module bytes.
func DigestOf(data []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("repository: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}

// String returns the hex form of the digest.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters of the digest.
func (d Digest) Short() string { return hex.EncodeToString(d[:6]) }

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses the 64-character hex form of a digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parsing module digest: %w", err)
	}
	if len(decoded) != len(d) {
		return d, fmt.Errorf("module digest is %d bytes, want %d", len(decoded), len(d))
	}
	copy(d[:], decoded)
	return d, nil
}

// DigestMismatchError reports a stored module whose bytes changed.
type DigestMismatchError struct {
	File string
	Want Digest
	Got  Digest
}

// Error implements the error interface.
func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("%s: digest %s, index records %s", e.File, e.Got.Short(), e.Want.Short())
}

// Unwrap returns ErrCorrupt so callers can use errors.Is for programmatic detection.
func (e *DigestMismatchError) Unwrap() error { return ErrCorrupt }
