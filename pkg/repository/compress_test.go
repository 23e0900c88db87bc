// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompressRoundtrip(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("class Logger { property Int level; }\n"), 200)
	random := []byte{0x01, 0x7F, 0x33}

	tests := []struct {
		name string
		data []byte
		in   Compression
		used Compression
	}{
		{"none", text, CompressionNone, CompressionNone},
		{"lz4", text, CompressionLZ4, CompressionLZ4},
		{"zstd", text, CompressionZstd, CompressionZstd},
		{"lz4 incompressible", random, CompressionLZ4, CompressionNone},
		{"zstd incompressible", random, CompressionZstd, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			packed, used, err := compress(tt.data, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if used != tt.used {
				t.Errorf("compression used = %s, want %s", used, tt.used)
			}
			if used != CompressionNone && len(packed) >= len(tt.data) {
				t.Errorf("compressed %d bytes into %d", len(tt.data), len(packed))
			}
			got, err := decompress(packed, used)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Error("roundtrip changed the data")
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		got, err := ParseCompression(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCompression(%q) = %v, %v", c.String(), got, err)
		}
		if ext, ok := compressionOf("json.xtclang.org-1.0" + c.Ext()); !ok || ext != c {
			t.Errorf("compressionOf(%s) = %v, %v", c.Ext(), ext, ok)
		}
	}
	if _, err := ParseCompression("gzip"); !errors.Is(err, ErrUnknownCompression) {
		t.Errorf("ParseCompression(gzip) error = %v", err)
	}
	if _, ok := compressionOf(IndexFile); ok {
		t.Error("index file taken for a module file")
	}
}

func TestDecompressCorrupt(t *testing.T) {
	t.Parallel()

	if _, err := decompress([]byte{0xFF}, CompressionZstd); err == nil {
		t.Error("zstd garbage accepted")
	}
	if _, err := decompress([]byte{}, CompressionLZ4); err == nil {
		t.Error("lz4 without length header accepted")
	}
	if _, err := decompress([]byte{0x10, 0x00}, CompressionLZ4); err == nil {
		t.Error("lz4 short block accepted")
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()

	a, b := DigestOf([]byte("a")), DigestOf([]byte("b"))
	if a == b {
		t.Fatal("different data, same digest")
	}
	parsed, err := ParseDigest(a.String())
	if err != nil || parsed != a {
		t.Errorf("ParseDigest(String()) = %s, %v", parsed, err)
	}
	if len(a.Short()) != 12 {
		t.Errorf("Short() = %q", a.Short())
	}
	if _, err := ParseDigest("abcd"); err == nil {
		t.Error("short digest accepted")
	}
}
