// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnknownCompression is returned when parsing or applying an unknown compression name.
var ErrUnknownCompression = errors.New("unknown compression")

// Compression identifies the container a module file is stored in. The
// values are stored in the repository index.
type Compression uint8

const (
	// CompressionNone stores the module bytes as is (".xtc").
	CompressionNone Compression = iota
	// CompressionLZ4 stores an LZ4 block preceded by the uvarint uncompressed
	// length (".xtc.lz4").
	CompressionLZ4
	// CompressionZstd stores a zstd frame (".xtc.zst").
	CompressionZstd
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("repository: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("repository: zstd decoder initialization failed: " + err.Error())
	}
}

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Ext returns the file name extension of the container.
func (c Compression) Ext() string {
	switch c {
	case CompressionLZ4:
		return ".xtc.lz4"
	case CompressionZstd:
		return ".xtc.zst"
	default:
		return ".xtc"
	}
}

// ParseCompression parses a compression name as used in configuration.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

// compressionOf returns the container of a file name, or false when the name
// is not a module file.
func compressionOf(name string) (Compression, bool) {
	for _, c := range []Compression{CompressionLZ4, CompressionZstd, CompressionNone} {
		if len(name) > len(c.Ext()) && strings.HasSuffix(name, c.Ext()) {
			return c, true
		}
	}
	return 0, false
}

// compress wraps data in the container. Data that does not shrink is stored
// uncompressed and the container actually used is returned.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil

	case CompressionLZ4:
		dst := binary.AppendUvarint(nil, uint64(len(data)))
		header := len(dst)
		dst = append(dst, make([]byte, lz4.CompressBlockBound(len(data)))...)
		n, err := lz4.CompressBlock(data, dst[header:], nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || header+n >= len(data) {
			return data, CompressionNone, nil
		}
		return dst[:header+n], CompressionLZ4, nil

	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return data, CompressionNone, nil
		}
		return out, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
}

// decompress unwraps a container.
func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		size, header := binary.Uvarint(data)
		if header <= 0 {
			return nil, errors.New("lz4 decompress: bad length header")
		}
		if size > maxModuleSize {
			return nil, fmt.Errorf("lz4 decompress: length %d exceeds limit", size)
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data[header:], dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(n) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return dst, nil

	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
}

// maxModuleSize bounds the uncompressed size of a stored module.
const maxModuleSize = 1 << 30
