// SPDX-License-Identifier: MPL-2.0

package packed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrFormat is matched by every decoding failure.
var ErrFormat = errors.New("malformed module data")

// Decoding failure causes.
var (
	ErrTruncated  = fmt.Errorf("%w: unexpected end of data", ErrFormat)
	ErrOverflow   = fmt.Errorf("%w: varint overflow", ErrFormat)
	ErrOutOfRange = fmt.Errorf("%w: value out of range", ErrFormat)
	ErrBadUTF8    = fmt.Errorf("%w: invalid UTF-8", ErrFormat)
)

type (
	// FormatError describes where and why decoding failed.
	FormatError struct {
		Offset int
		What   string
		Err    error
	}

	// Writer appends encoded values to an in-memory buffer.
	Writer struct {
		buf []byte
	}

	// Reader decodes values from a byte slice.
	Reader struct {
		data []byte
		off  int
	}
)

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.What, e.Offset, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error { return e.Err }

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded data. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// PutByte writes one byte.
func (w *Writer) PutByte(b byte) { w.buf = append(w.buf, b) }

// PutUint16 writes a big-endian 16-bit value.
func (w *Writer) PutUint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

// PutUint32 writes a big-endian 32-bit value.
func (w *Writer) PutUint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

// PutMagnitude writes an unsigned varint.
func (w *Writer) PutMagnitude(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }

// PutCount writes a non-negative count as a magnitude.
func (w *Writer) PutCount(n int) { w.PutMagnitude(uint64(n)) }

// PutIndex writes an optional index; -1 (absent) is written as 0 and every
// other index i as i+1.
func (w *Writer) PutIndex(i int) { w.PutMagnitude(uint64(i + 1)) }

// PutInt writes a zigzag-encoded signed varint.
func (w *Writer) PutInt(v int64) { w.buf = binary.AppendVarint(w.buf, v) }

// PutBool writes 1 or 0.
func (w *Writer) PutBool(b bool) {
	if b {
		w.PutByte(1)
	} else {
		w.PutByte(0)
	}
}

// PutString writes a length-prefixed UTF-8 string.
func (w *Writer) PutString(s string) {
	w.PutCount(len(s))
	w.buf = append(w.buf, s...)
}

// PutBytes writes a length-prefixed byte string.
func (w *Writer) PutBytes(b []byte) {
	w.PutCount(len(b))
	w.buf = append(w.buf, b...)
}

// PutRaw writes b without a length prefix.
func (w *Writer) PutRaw(b []byte) { w.buf = append(w.buf, b...) }

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) fail(what string, err error) error {
	return &FormatError{Offset: r.off, What: what, Err: err}
}

// Byte reads one byte.
func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, r.fail("byte", ErrTruncated)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// Uint16 reads a big-endian 16-bit value.
func (r *Reader) Uint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, r.fail("uint16", ErrTruncated)
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 reads a big-endian 32-bit value.
func (r *Reader) Uint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, r.fail("uint32", ErrTruncated)
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// Magnitude reads an unsigned varint.
func (r *Reader) Magnitude() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	switch {
	case n == 0:
		return 0, r.fail("magnitude", ErrTruncated)
	case n < 0:
		return 0, r.fail("magnitude", ErrOverflow)
	}
	r.off += n
	return v, nil
}

// Count reads a magnitude that must not exceed limit.
func (r *Reader) Count(limit int) (int, error) {
	start := r.off
	v, err := r.Magnitude()
	if err != nil {
		return 0, err
	}
	if v > uint64(limit) {
		return 0, &FormatError{Offset: start, What: fmt.Sprintf("count %d exceeds %d", v, limit), Err: ErrOutOfRange}
	}
	return int(v), nil
}

// Index reads an optional index written by PutIndex. The result is -1 when
// absent; limit bounds the accepted indices.
func (r *Reader) Index(limit int) (int, error) {
	start := r.off
	v, err := r.Magnitude()
	if err != nil {
		return 0, err
	}
	if v > uint64(limit) {
		return 0, &FormatError{Offset: start, What: fmt.Sprintf("index %d not below %d", v-1, limit), Err: ErrOutOfRange}
	}
	return int(v) - 1, nil
}

// Int reads a zigzag-encoded signed varint.
func (r *Reader) Int() (int64, error) {
	v, n := binary.Varint(r.data[r.off:])
	switch {
	case n == 0:
		return 0, r.fail("int", ErrTruncated)
	case n < 0:
		return 0, r.fail("int", ErrOverflow)
	}
	r.off += n
	return v, nil
}

// Bool reads a byte written by PutBool.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, r.fail("bool", ErrOutOfRange)
	}
	return b == 1, nil
}

// Text reads a length-prefixed UTF-8 string.
func (r *Reader) Text() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.fail("string", ErrBadUTF8)
	}
	return string(b), nil
}

// Bytes reads a length-prefixed byte string. The result is a copy.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Count(r.Remaining())
	if err != nil {
		return nil, err
	}
	return r.Raw(n)
}

// Raw reads exactly n bytes. The result is a copy.
func (r *Reader) Raw(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, r.fail(fmt.Sprintf("%d bytes", n), ErrTruncated)
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}
