// SPDX-License-Identifier: MPL-2.0

package packed

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestWriterReader_Values(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.PutByte(0x7F)
	w.PutUint16(0xCAFE)
	w.PutUint32(0xEC57A5EE)
	w.PutMagnitude(300)
	w.PutIndex(-1)
	w.PutIndex(0)
	w.PutIndex(41)
	w.PutInt(-5)
	w.PutInt(math.MaxInt64)
	w.PutBool(true)
	w.PutString("héllo")
	w.PutBytes([]byte{1, 2, 3})
	w.PutRaw([]byte{9})

	r := NewReader(w.Bytes())
	mustEqual(t, "byte", must(r.Byte()), byte(0x7F))
	mustEqual(t, "uint16", must(r.Uint16()), uint16(0xCAFE))
	mustEqual(t, "uint32", must(r.Uint32()), uint32(0xEC57A5EE))
	mustEqual(t, "magnitude", must(r.Magnitude()), uint64(300))
	mustEqual(t, "absent index", must(r.Index(100)), -1)
	mustEqual(t, "index 0", must(r.Index(100)), 0)
	mustEqual(t, "index 41", must(r.Index(100)), 41)
	mustEqual(t, "int", must(r.Int()), int64(-5))
	mustEqual(t, "max int", must(r.Int()), int64(math.MaxInt64))
	mustEqual(t, "bool", must(r.Bool()), true)
	mustEqual(t, "string", must(r.Text()), "héllo")
	if b := must(r.Bytes()); !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("bytes = %v", b)
	}
	if b := must(r.Raw(1)); !bytes.Equal(b, []byte{9}) {
		t.Errorf("raw = %v", b)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestReader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		read func(*Reader) error
		want error
	}{
		{"empty_byte", nil, func(r *Reader) error { _, err := r.Byte(); return err }, ErrTruncated},
		{"short_uint16", []byte{1}, func(r *Reader) error { _, err := r.Uint16(); return err }, ErrTruncated},
		{"short_uint32", []byte{1, 2, 3}, func(r *Reader) error { _, err := r.Uint32(); return err }, ErrTruncated},
		{"unterminated_varint", []byte{0x80}, func(r *Reader) error { _, err := r.Magnitude(); return err }, ErrTruncated},
		{
			"overflow_varint",
			[]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01},
			func(r *Reader) error { _, err := r.Magnitude(); return err },
			ErrOverflow,
		},
		{"index_out_of_range", []byte{5}, func(r *Reader) error { _, err := r.Index(3); return err }, ErrOutOfRange},
		{"count_too_large", []byte{10}, func(r *Reader) error { _, err := r.Count(2); return err }, ErrOutOfRange},
		{"string_past_end", []byte{4, 'a'}, func(r *Reader) error { _, err := r.Text(); return err }, ErrOutOfRange},
		{"bad_utf8", []byte{1, 0xFF}, func(r *Reader) error { _, err := r.Text(); return err }, ErrBadUTF8},
		{"bad_bool", []byte{2}, func(r *Reader) error { _, err := r.Bool(); return err }, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.read(NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("error should match ErrFormat: %v", err)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("error should be a *FormatError: %T", err)
			}
		})
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustEqual[T comparable](t *testing.T, what string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}
