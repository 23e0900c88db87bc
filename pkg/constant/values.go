// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"

	"xtcmod/internal/packed"
	"xtcmod/pkg/version"
)

type (
	// ByteConstant is an 8-bit unsigned literal.
	ByteConstant struct {
		header
		value byte
	}

	// ByteStringConstant is a binary literal.
	ByteStringConstant struct {
		header
		value []byte
	}

	// CharConstant is a Unicode code point literal.
	CharConstant struct {
		header
		value rune
	}

	// StringConstant is a UTF-8 string literal. Identity constants refer to
	// their names through string constants.
	StringConstant struct {
		header
		value string
	}

	// IntConstant is a signed 64-bit integer literal.
	IntConstant struct {
		header
		value int64
	}

	// VersionConstant is a module version literal.
	VersionConstant struct {
		header
		value version.Version
	}
)

// Format implements Constant.
func (c *ByteConstant) Format() Format { return FormatByte }

// Value returns the byte.
func (c *ByteConstant) Value() byte { return c.value }

func (c *ByteConstant) String() string          { return fmt.Sprintf("0x%02X", c.value) }
func (c *ByteConstant) detail() string          { return string([]byte{c.value}) }
func (c *ByteConstant) locator() (any, bool)    { return c.value, true }
func (c *ByteConstant) encode(w *packed.Writer) { w.PutByte(c.value) }
func (c *ByteConstant) decode(r *packed.Reader, _ int) (err error) {
	c.value, err = r.Byte()
	return err
}

// Format implements Constant.
func (c *ByteStringConstant) Format() Format { return FormatByteString }

// Value returns a copy of the bytes.
func (c *ByteStringConstant) Value() []byte { return append([]byte(nil), c.value...) }

func (c *ByteStringConstant) String() string          { return "#" + hex.EncodeToString(c.value) }
func (c *ByteStringConstant) detail() string          { return string(c.value) }
func (c *ByteStringConstant) encode(w *packed.Writer) { w.PutBytes(c.value) }
func (c *ByteStringConstant) decode(r *packed.Reader, _ int) (err error) {
	c.value, err = r.Bytes()
	return err
}

// Format implements Constant.
func (c *CharConstant) Format() Format { return FormatChar }

// Value returns the code point.
func (c *CharConstant) Value() rune { return c.value }

func (c *CharConstant) String() string          { return strconv.QuoteRune(c.value) }
func (c *CharConstant) detail() string          { return strconv.Itoa(int(c.value)) }
func (c *CharConstant) locator() (any, bool)    { return c.value, true }
func (c *CharConstant) encode(w *packed.Writer) { w.PutMagnitude(uint64(c.value)) }
func (c *CharConstant) decode(r *packed.Reader, _ int) error {
	v, err := r.Magnitude()
	if err != nil {
		return err
	}
	if v > utf8.MaxRune {
		return &packed.FormatError{Offset: r.Offset(), What: fmt.Sprintf("char %d", v), Err: packed.ErrOutOfRange}
	}
	c.value = rune(v)
	return nil
}

// Format implements Constant.
func (c *StringConstant) Format() Format { return FormatString }

// Value returns the string.
func (c *StringConstant) Value() string { return c.value }

func (c *StringConstant) String() string          { return strconv.Quote(c.value) }
func (c *StringConstant) detail() string          { return c.value }
func (c *StringConstant) locator() (any, bool)    { return c.value, true }
func (c *StringConstant) encode(w *packed.Writer) { w.PutString(c.value) }
func (c *StringConstant) decode(r *packed.Reader, _ int) (err error) {
	c.value, err = r.Text()
	return err
}

// Format implements Constant.
func (c *IntConstant) Format() Format { return FormatInt }

// Value returns the integer.
func (c *IntConstant) Value() int64 { return c.value }

func (c *IntConstant) String() string          { return strconv.FormatInt(c.value, 10) }
func (c *IntConstant) detail() string          { return strconv.FormatInt(c.value, 10) }
func (c *IntConstant) locator() (any, bool)    { return c.value, true }
func (c *IntConstant) encode(w *packed.Writer) { w.PutInt(c.value) }
func (c *IntConstant) decode(r *packed.Reader, _ int) (err error) {
	c.value, err = r.Int()
	return err
}

// Format implements Constant.
func (c *VersionConstant) Format() Format { return FormatVersion }

// Version returns the version value.
func (c *VersionConstant) Version() version.Version { return c.value }

func (c *VersionConstant) String() string          { return c.value.String() }
func (c *VersionConstant) detail() string          { return c.value.String() }
func (c *VersionConstant) locator() (any, bool)    { return c.value.String(), true }
func (c *VersionConstant) encode(w *packed.Writer) { w.PutString(c.value.String()) }
func (c *VersionConstant) decode(r *packed.Reader, _ int) error {
	start := r.Offset()
	s, err := r.Text()
	if err != nil {
		return err
	}
	if c.value, err = version.Parse(s); err != nil {
		return &packed.FormatError{Offset: start, What: "version literal", Err: fmt.Errorf("%w: %w", packed.ErrFormat, err)}
	}
	return nil
}

// EnsureByte returns the canonical constant for b.
func (p *Pool) EnsureByte(b byte) *ByteConstant {
	if c, ok := p.located(FormatByte, b); ok {
		return c.(*ByteConstant)
	}
	return p.Register(&ByteConstant{header: newHeader(p), value: b}).(*ByteConstant)
}

// EnsureByteString returns the canonical constant for b.
func (p *Pool) EnsureByteString(b []byte) *ByteStringConstant {
	c := &ByteStringConstant{header: newHeader(p), value: append([]byte(nil), b...)}
	return p.Register(c).(*ByteStringConstant)
}

// EnsureChar returns the canonical constant for r.
func (p *Pool) EnsureChar(r rune) *CharConstant {
	if c, ok := p.located(FormatChar, r); ok {
		return c.(*CharConstant)
	}
	return p.Register(&CharConstant{header: newHeader(p), value: r}).(*CharConstant)
}

// EnsureString returns the canonical constant for s.
func (p *Pool) EnsureString(s string) *StringConstant {
	if c, ok := p.located(FormatString, s); ok {
		return c.(*StringConstant)
	}
	return p.Register(&StringConstant{header: newHeader(p), value: s}).(*StringConstant)
}

// EnsureInt returns the canonical constant for n.
func (p *Pool) EnsureInt(n int64) *IntConstant {
	if c, ok := p.located(FormatInt, n); ok {
		return c.(*IntConstant)
	}
	return p.Register(&IntConstant{header: newHeader(p), value: n}).(*IntConstant)
}

// EnsureVersion returns the canonical constant for v, or nil if v is the zero
// Version.
func (p *Pool) EnsureVersion(v version.Version) *VersionConstant {
	if v.IsZero() {
		return nil
	}
	if c, ok := p.located(FormatVersion, v.String()); ok {
		return c.(*VersionConstant)
	}
	return p.Register(&VersionConstant{header: newHeader(p), value: v}).(*VersionConstant)
}
