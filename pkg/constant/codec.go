// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"fmt"

	"xtcmod/internal/packed"
)

// Encode writes the constant count followed by one tagged record per constant
// in position order.
func (p *Pool) Encode(w *packed.Writer) {
	w.PutCount(len(p.constants))
	for _, c := range p.constants {
		w.PutByte(byte(c.Format()))
		c.encode(w)
	}
}

// Decode reads a pool image written by Encode into an empty pool. Positions
// are assigned in read order before any reference is resolved, so records may
// refer to constants that appear later in the image.
func (p *Pool) Decode(r *packed.Reader) error {
	if len(p.constants) > 0 {
		return ErrPoolNotEmpty
	}

	// every record takes at least two bytes
	n, err := r.Count(r.Remaining() / 2)
	if err != nil {
		return err
	}
	constants := make([]Constant, n)
	for i := range constants {
		start := r.Offset()
		tag, err := r.Byte()
		if err != nil {
			return err
		}
		c := p.newEmpty(Format(tag))
		if c == nil {
			return &packed.FormatError{Offset: start, What: fmt.Sprintf("constant %d tag %d", i, tag), Err: ErrUnknownFormat}
		}
		if err := c.decode(r, n); err != nil {
			return fmt.Errorf("constant %d (%s): %w", i, c.Format(), err)
		}
		c.base().pos = i
		constants[i] = c
	}

	p.constants = constants
	fail := func(err error) error {
		p.reset()
		return err
	}
	for i, c := range constants {
		if err := c.resolve(p); err != nil {
			return fail(fmt.Errorf("constant %d (%s): %w", i, c.Format(), err))
		}
	}
	if err := checkAcyclic(constants); err != nil {
		return fail(err)
	}
	for i, c := range constants {
		if existing, dup := p.byKey[c.Format()][Key(c)]; dup {
			return fail(&packed.FormatError{
				What: fmt.Sprintf("constant %d duplicates constant %d (%s)", i, existing.Position(), c),
				Err:  ErrDuplicateConstant,
			})
		}
		p.index(c)
	}
	return nil
}

func (p *Pool) reset() {
	p.constants = nil
	p.byKey = [formatCount]map[string]Constant{}
	p.byLocator = [formatCount]map[any]Constant{}
}

func (p *Pool) newEmpty(f Format) Constant {
	h := newHeader(p)
	switch f {
	case FormatByte:
		return &ByteConstant{header: h}
	case FormatByteString:
		return &ByteStringConstant{header: h}
	case FormatChar:
		return &CharConstant{header: h}
	case FormatString:
		return &StringConstant{header: h}
	case FormatInt:
		return &IntConstant{header: h}
	case FormatVersion:
		return &VersionConstant{header: h}
	case FormatModule:
		return &ModuleConstant{header: h}
	case FormatPackage:
		return &PackageConstant{childIdentity{header: h}}
	case FormatClass:
		return &ClassConstant{childIdentity{header: h}}
	case FormatProperty:
		return &PropertyConstant{childIdentity{header: h}}
	case FormatMultiMethod:
		return &MultiMethodConstant{childIdentity{header: h}}
	case FormatSignature:
		return &SignatureConstant{header: h}
	case FormatMethod:
		return &MethodConstant{header: h}
	case FormatParameter:
		return &ParameterConstant{header: h}
	case FormatCondNamed:
		return &NamedCondition{header: h}
	case FormatCondPresent:
		return &PresentCondition{header: h}
	case FormatCondVersionMatch:
		return &VersionMatchCondition{header: h}
	case FormatCondNot:
		return &NotCondition{header: h}
	case FormatCondAll, FormatCondAny, FormatCondExactlyOne:
		return &MultiCondition{header: h, format: f}
	default:
		return nil
	}
}

// checkAcyclic rejects images whose references loop back on themselves; a
// pool built through Ensure calls can never contain such a loop.
func checkAcyclic(constants []Constant) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]byte, len(constants))
	var visit func(c Constant) error
	visit = func(c Constant) error {
		i := c.Position()
		switch state[i] {
		case done:
			return nil
		case visiting:
			return &packed.FormatError{What: fmt.Sprintf("constant %d", i), Err: ErrCyclicConstant}
		}
		state[i] = visiting
		var err error
		c.visitRefs(func(ref Constant) {
			if err == nil {
				err = visit(ref)
			}
		})
		state[i] = done
		return err
	}
	for _, c := range constants {
		if state[c.Position()] == unvisited {
			if err := visit(c); err != nil {
				return err
			}
		}
	}
	return nil
}
