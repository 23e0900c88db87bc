// SPDX-License-Identifier: MPL-2.0

package component

import (
	"fmt"

	"xtcmod/internal/packed"
	"xtcmod/pkg/constant"
)

// ErrBadStructure is returned when a children block is malformed.
var ErrBadStructure = fmt.Errorf("%w: bad component structure", packed.ErrFormat)

// readConstant reads a pool index and resolves it as a T. With optional an
// absent index yields the zero T.
func readConstant[T constant.Constant](r *packed.Reader, p *constant.Pool, optional bool, what string) (T, error) {
	var zero T
	start := r.Offset()
	i, err := r.Index(p.Len())
	if err != nil {
		return zero, err
	}
	if i < 0 {
		if optional {
			return zero, nil
		}
		return zero, &packed.FormatError{Offset: start, What: what + " missing", Err: ErrBadStructure}
	}
	c, ok := p.At(i).(T)
	if !ok {
		return zero, &packed.FormatError{
			Offset: start,
			What:   fmt.Sprintf("%s: constant %d is a %s", what, i, p.At(i).Format()),
			Err:    ErrBadStructure,
		}
	}
	return c, nil
}

// identityFits reports whether id is the right kind of identity for format.
func identityFits(f Format, id constant.IdentityConstant) bool {
	switch id.(type) {
	case *constant.ModuleConstant:
		return f == FormatModule
	case *constant.PackageConstant:
		return f == FormatPackage
	case *constant.ClassConstant:
		return f.IsClass()
	case *constant.PropertyConstant:
		return f == FormatProperty
	case *constant.MultiMethodConstant:
		return f == FormatMultiMethod
	case *constant.MethodConstant:
		return f == FormatMethod
	default:
		return false
	}
}

// writeChildren encodes the slots of kids: a slot count, then per slot either
// a single unconditional component or a conditional group, then one
// length-prefixed block per slot holding that slot's own children.
func writeChildren(w *packed.Writer, kids *childSet, p *constant.Pool) {
	w.PutCount(len(kids.order))
	for _, s := range kids.order {
		if len(s.members) == 1 && s.members[0].cond == nil {
			writeComponent(w, s.members[0], p)
			continue
		}
		w.PutByte(ConditionalBit)
		w.PutCount(len(s.members))
		for _, m := range s.members {
			w.PutIndex(m.cond.Position())
			writeComponent(w, m, p)
		}
	}
	for _, s := range kids.order {
		if len(s.kids.order) == 0 {
			w.PutCount(0)
			continue
		}
		nested := packed.NewWriter()
		writeChildren(nested, s.kids, p)
		w.PutBytes(nested.Bytes())
	}
}

func writeComponent(w *packed.Writer, c *Component, p *constant.Pool) {
	w.PutUint16(c.flags)
	w.PutIndex(c.id.Position())
	if c.doc == nil {
		w.PutIndex(-1)
	} else {
		w.PutIndex(c.doc.Position())
	}
	w.PutCount(len(c.contribs))
	for _, contrib := range c.contribs {
		w.PutByte(byte(contrib.Kind))
		w.PutIndex(contrib.Target.Position())
	}
	if c.body != nil {
		c.body.write(w, p)
	}
}

// readChildren decodes a children block into parent's child set. With lazy
// the nested blocks are kept as raw bytes until first accessed.
func (f *FileStructure) readChildren(r *packed.Reader, parent *slot, lazy bool) error {
	parentFormat := parent.members[0].Format()
	n, err := r.Count(r.Remaining())
	if err != nil {
		return err
	}
	slots := make([]*slot, 0, n)
	for range n {
		s, err := f.readSlot(r, parent, parentFormat)
		if err != nil {
			return err
		}
		if _, dup := parent.kids.byKey[s.key]; dup {
			return &packed.FormatError{Offset: r.Offset(), What: fmt.Sprintf("duplicate child %q", s.key), Err: ErrBadStructure}
		}
		parent.kids.add(s)
		slots = append(slots, s)
	}
	for _, s := range slots {
		raw, err := r.Bytes()
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			continue
		}
		if lazy {
			s.kids.raw = raw
			continue
		}
		if err := f.decodeNested(s, raw, false); err != nil {
			return err
		}
	}
	return nil
}

func (f *FileStructure) decodeNested(s *slot, raw []byte, lazy bool) error {
	nr := packed.NewReader(raw)
	if err := f.readChildren(nr, s, lazy); err != nil {
		return fmt.Errorf("children of %s: %w", s.members[0].Path(), err)
	}
	if nr.Remaining() != 0 {
		return &packed.FormatError{Offset: nr.Offset(), What: "trailing bytes after children of " + s.members[0].Path(), Err: ErrBadStructure}
	}
	return nil
}

func (f *FileStructure) readSlot(r *packed.Reader, parent *slot, parentFormat Format) (*slot, error) {
	start := r.Offset()
	first, err := r.Byte()
	if err != nil {
		return nil, err
	}

	var members []*Component
	if first&ConditionalBit == 0 {
		lo, err := r.Byte()
		if err != nil {
			return nil, err
		}
		c, err := f.readComponent(r, uint16(first)<<8|uint16(lo), nil)
		if err != nil {
			return nil, err
		}
		members = append(members, c)
	} else {
		count, err := r.Count(r.Remaining())
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, &packed.FormatError{Offset: start, What: "empty sibling group", Err: ErrBadStructure}
		}
		for range count {
			cond, err := readConstant[constant.Condition](r, f.pool, count == 1, "sibling condition")
			if err != nil {
				return nil, err
			}
			flags, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			c, err := f.readComponent(r, flags, cond)
			if err != nil {
				return nil, err
			}
			members = append(members, c)
		}
	}

	s := &slot{key: slotKey(members[0].id), members: members, kids: newChildSet()}
	for _, m := range members {
		if !parentFormat.CanContain(m.Format()) {
			return nil, &packed.FormatError{Offset: start, What: (&ChildError{Parent: parentFormat, Child: m.Format()}).Error(), Err: ErrBadStructure}
		}
		if slotKey(m.id) != s.key {
			return nil, &packed.FormatError{Offset: start, What: fmt.Sprintf("siblings %q and %q differ in name", s.key, slotKey(m.id)), Err: ErrBadStructure}
		}
		m.slot = s
		m.parent = parent
	}
	return s, nil
}

func (f *FileStructure) readComponent(r *packed.Reader, flags uint16, cond constant.Condition) (*Component, error) {
	start := r.Offset()
	format := Format(flags & FormatMask)
	if !format.IsValid() || format == FormatFile {
		return nil, &packed.FormatError{Offset: start, What: fmt.Sprintf("component format %d", format), Err: ErrBadStructure}
	}
	id, err := readConstant[constant.IdentityConstant](r, f.pool, false, "component identity")
	if err != nil {
		return nil, err
	}
	if !identityFits(format, id) {
		return nil, &packed.FormatError{Offset: start, What: fmt.Sprintf("%s identity for a %s", id.Format(), format), Err: ErrBadStructure}
	}
	c := &Component{file: f, flags: flags, id: id, cond: cond, body: newBody(format)}
	if c.doc, err = readConstant[*constant.StringConstant](r, f.pool, true, "documentation"); err != nil {
		return nil, err
	}

	n, err := r.Count(r.Remaining())
	if err != nil {
		return nil, err
	}
	for range n {
		kind, err := r.Byte()
		if err != nil {
			return nil, err
		}
		if !Composition(kind).IsValid() {
			return nil, &packed.FormatError{Offset: r.Offset() - 1, What: fmt.Sprintf("contribution kind %d", kind), Err: ErrBadStructure}
		}
		target, err := readConstant[constant.IdentityConstant](r, f.pool, false, "contribution target")
		if err != nil {
			return nil, err
		}
		c.contribs = append(c.contribs, Contribution{Kind: Composition(kind), Target: target})
	}

	if c.body != nil {
		if err := c.body.read(r, f.pool); err != nil {
			return nil, err
		}
	}
	return c, nil
}
