// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"cmp"
	"fmt"
	"slices"
)

type (
	// Pool owns the constants of one module file. It is not safe for
	// concurrent use; callers serialize access per file.
	Pool struct {
		constants []Constant
		byKey     [formatCount]map[string]Constant
		byLocator [formatCount]map[any]Constant
		counting  bool
	}

	// FormatStat reports how many constants of one format a pool holds.
	FormatStat struct {
		Format Format
		Count  int
	}
)

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Len returns the number of live constants.
func (p *Pool) Len() int { return len(p.constants) }

// At returns the constant at position i.
func (p *Pool) At(i int) Constant { return p.constants[i] }

// Constants returns the live constants in position order.
func (p *Pool) Constants() []Constant { return slices.Clone(p.constants) }

// Stats returns the number of constants per format, for formats in use.
func (p *Pool) Stats() []FormatStat {
	var counts [formatCount]int
	for _, c := range p.constants {
		counts[c.Format()]++
	}
	var out []FormatStat
	for f, n := range counts {
		if n > 0 {
			out = append(out, FormatStat{Format: Format(f), Count: n})
		}
	}
	return out
}

// Register returns the canonical instance of c, adding c (and, recursively,
// every constant it refers to) to the pool if no equal constant exists yet.
// Register(nil) returns nil. During a registration pass Register also counts
// a reference to the result.
//
// Registering a constant owned by a different pool panics with a
// *ForeignConstantError.
func (p *Pool) Register(c Constant) Constant {
	if c == nil {
		return nil
	}
	canonical := p.intern(c)
	if p.counting {
		p.addRef(canonical)
	}
	return canonical
}

// Lookup returns the canonical instance equal to c without registering
// anything, or nil if the pool has no such constant.
func (p *Pool) Lookup(c Constant) Constant {
	if c == nil {
		return nil
	}
	return p.byKey[c.Format()][Key(c)]
}

// PreRegisterAll starts a registration pass: every reference count is reset
// and subsequent Register calls count references. Passes may not nest.
func (p *Pool) PreRegisterAll() {
	if p.counting {
		panic("constant: PreRegisterAll called during a registration pass")
	}
	for _, c := range p.constants {
		c.base().refs = 0
	}
	p.counting = true
}

// PostRegisterAll ends the registration pass. When optimize is true,
// unreferenced constants are discarded and the rest are reordered by
// descending reference count.
func (p *Pool) PostRegisterAll(optimize bool) {
	if !p.counting {
		panic("constant: PostRegisterAll called without PreRegisterAll")
	}
	p.counting = false
	if optimize {
		p.optimize()
	}
}

// IsRegistering reports whether a registration pass is in progress.
func (p *Pool) IsRegistering() bool { return p.counting }

func (p *Pool) optimize() {
	live := p.constants[:0:0]
	for _, c := range p.constants {
		if c.RefCount() > 0 {
			live = append(live, c)
			continue
		}
		p.unindex(c)
		c.base().pos = -1
	}
	slices.SortStableFunc(live, func(a, b Constant) int {
		if n := cmp.Compare(b.RefCount(), a.RefCount()); n != 0 {
			return n
		}
		return Compare(a, b)
	})
	for i, c := range live {
		c.base().pos = i
	}
	p.constants = live
}

func (p *Pool) intern(c Constant) Constant {
	h := c.base()
	if h.pool != p {
		panic(&ForeignConstantError{Constant: c})
	}
	if h.pos >= 0 {
		return c
	}
	c.rebind(p.intern)
	if existing, ok := p.byKey[c.Format()][Key(c)]; ok {
		return existing
	}
	h.pos = len(p.constants)
	p.constants = append(p.constants, c)
	p.index(c)
	return c
}

func (p *Pool) addRef(c Constant) {
	h := c.base()
	h.refs++
	if h.refs == 1 {
		c.visitRefs(p.addRef)
	}
}

// located returns the constant indexed under the locator key, counting a
// reference when a registration pass is running.
func (p *Pool) located(f Format, key any) (Constant, bool) {
	c, ok := p.byLocator[f][key]
	if ok && p.counting {
		p.addRef(c)
	}
	return c, ok
}

func (p *Pool) index(c Constant) {
	f := c.Format()
	if p.byKey[f] == nil {
		p.byKey[f] = make(map[string]Constant)
	}
	p.byKey[f][Key(c)] = c

	if loc, ok := c.locator(); ok {
		if p.byLocator[f] == nil {
			p.byLocator[f] = make(map[any]Constant)
		}
		if other, dup := p.byLocator[f][loc]; dup && other != c {
			panic(fmt.Sprintf("constant: locator collision for %s %v", f, loc))
		}
		p.byLocator[f][loc] = c
	}
}

func (p *Pool) unindex(c Constant) {
	f := c.Format()
	delete(p.byKey[f], Key(c))
	if loc, ok := c.locator(); ok {
		delete(p.byLocator[f], loc)
	}
}
