// SPDX-License-Identifier: MPL-2.0

package component

import (
	"slices"
	"strings"

	"xtcmod/pkg/constant"
)

type (
	// slot is one name inside a parent: a single component or a group of
	// conditional siblings. All members share one set of children.
	slot struct {
		key     string
		members []*Component
		kids    *childSet
	}

	// childSet holds the slots nested in a slot. raw is non-nil while the
	// children are still undecoded.
	childSet struct {
		raw   []byte
		order []*slot
		byKey map[string]*slot
	}

	// CreateOption customizes a component created by one of the Create methods.
	CreateOption func(*createSpec)

	createSpec struct {
		access    Access
		abstract  bool
		static    bool
		synthetic bool
		cond      constant.Condition
		doc       string
	}
)

// WithAccess sets the visibility of the new component. The default is public.
func WithAccess(a Access) CreateOption {
	return func(s *createSpec) { s.access = a }
}

// WithCondition guards the new component with cond, allowing it to share its
// name with other conditional siblings.
func WithCondition(cond constant.Condition) CreateOption {
	return func(s *createSpec) { s.cond = cond }
}

// WithDoc attaches a documentation string.
func WithDoc(doc string) CreateOption {
	return func(s *createSpec) { s.doc = doc }
}

// AsAbstract marks the new component abstract.
func AsAbstract() CreateOption {
	return func(s *createSpec) { s.abstract = true }
}

// AsStatic marks the new component static.
func AsStatic() CreateOption {
	return func(s *createSpec) { s.static = true }
}

// AsSynthetic marks the new component synthetic.
func AsSynthetic() CreateOption {
	return func(s *createSpec) { s.synthetic = true }
}

func newChildSet() *childSet {
	return &childSet{byKey: make(map[string]*slot)}
}

func (cs *childSet) add(s *slot) {
	cs.order = append(cs.order, s)
	cs.byKey[s.key] = s
}

func (cs *childSet) remove(s *slot) {
	delete(cs.byKey, s.key)
	cs.order = slices.DeleteFunc(cs.order, func(o *slot) bool { return o == s })
}

// slotKey returns the name a component is filed under in its parent. Methods
// share their multi-method's name and are told apart by signature.
func slotKey(id constant.IdentityConstant) string {
	if m, ok := id.(*constant.MethodConstant); ok {
		return "(" + constant.Key(m.Signature())
	}
	return id.Name()
}

// children returns the child set shared by the component and its siblings,
// decoding deferred bytes on first use.
func (c *Component) children() *childSet {
	kids := c.slot.kids
	if kids.raw != nil {
		c.file.loadDeferred(c.slot)
	}
	return kids
}

// HasChildren reports whether the component has at least one child.
func (c *Component) HasChildren() bool {
	return len(c.children().order) > 0
}

// ChildCount returns the number of name slots below the component.
func (c *Component) ChildCount() int {
	return len(c.children().order)
}

// Children returns the eldest component of every child slot, in insertion
// order. Conditional siblings other than the eldest are reached through
// Siblings or VisitChildren.
func (c *Component) Children() []*Component {
	kids := c.children()
	out := make([]*Component, 0, len(kids.order))
	for _, s := range kids.order {
		out = append(out, s.members[0])
	}
	return out
}

// Siblings returns every member of the component's name slot, the component
// itself included, eldest first.
func (c *Component) Siblings() []*Component {
	return slices.Clone(c.slot.members)
}

// Eldest returns the first member of the component's name slot.
func (c *Component) Eldest() *Component { return c.slot.members[0] }

// VisitChildren calls fn for each child until fn returns false. With siblings
// every member of a conditional group is visited, otherwise only the eldest.
// With deep the walk descends depth-first; shared children are visited once
// per slot. The result is false if fn stopped the walk.
func (c *Component) VisitChildren(fn func(*Component) bool, siblings, deep bool) bool {
	for _, s := range c.children().order {
		members := s.members[:1]
		if siblings {
			members = s.members
		}
		for _, m := range members {
			if !fn(m) {
				return false
			}
		}
		if deep && !s.members[0].VisitChildren(fn, siblings, deep) {
			return false
		}
	}
	return true
}

// Child resolves the named child against the file's linker context.
func (c *Component) Child(name string) Resolved {
	return c.ChildIn(name, c.file.ctx)
}

// ChildIn resolves the named child against ctx. A nil ctx selects every
// conditional sibling.
func (c *Component) ChildIn(name string, ctx constant.LinkerContext) Resolved {
	s, ok := c.children().byKey[name]
	if !ok {
		return Resolved{}
	}
	return resolve(s, ctx)
}

// Method resolves the method with the given signature inside a multi-method
// component.
func (c *Component) Method(sig *constant.SignatureConstant) Resolved {
	if sig == nil {
		return Resolved{}
	}
	s, ok := c.children().byKey["("+constant.Key(sig)]
	if !ok {
		return Resolved{}
	}
	return resolve(s, c.file.ctx)
}

// ChildByPath walks a dot-separated path of simple names. Every step must
// resolve to exactly one component under the file's linker context.
func (c *Component) ChildByPath(path string) (*Component, bool) {
	cur := c
	for name := range strings.SplitSeq(path, ".") {
		next, ok := cur.Child(name).One()
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// CreatePackage adds a package child.
func (c *Component) CreatePackage(name string, opts ...CreateOption) (*Component, error) {
	if !c.Format().CanContain(FormatPackage) {
		return nil, &ChildError{Parent: c.Format(), Child: FormatPackage}
	}
	id, err := c.file.pool.EnsurePackage(c.id, name)
	if err != nil {
		return nil, err
	}
	return c.createChild(FormatPackage, id, &packageBody{}, opts)
}

// CreateClass adds a class-like child of the given format.
func (c *Component) CreateClass(name string, format Format, opts ...CreateOption) (*Component, error) {
	if !format.IsClass() {
		return nil, &FormatMismatchError{Op: "CreateClass", Format: format}
	}
	if !c.Format().CanContain(format) {
		return nil, &ChildError{Parent: c.Format(), Child: format}
	}
	id, err := c.file.pool.EnsureClass(c.id, name)
	if err != nil {
		return nil, err
	}
	return c.createChild(format, id, nil, opts)
}

// CreateProperty adds a property child of the given type.
func (c *Component) CreateProperty(name string, typ constant.Constant, opts ...CreateOption) (*Component, error) {
	if typ == nil {
		return nil, &FormatMismatchError{Op: "untyped property", Format: FormatProperty}
	}
	if !c.Format().CanContain(FormatProperty) {
		return nil, &ChildError{Parent: c.Format(), Child: FormatProperty}
	}
	id, err := c.file.pool.EnsureProperty(c.id, name)
	if err != nil {
		return nil, err
	}
	body := &propertyBody{typ: c.file.pool.Register(typ)}
	return c.createChild(FormatProperty, id, body, opts)
}

// CreateMethod adds a method, creating the synthetic multi-method that holds
// it when needed. Options apply to the method only.
func (c *Component) CreateMethod(name string, params, returns []constant.Constant, opts ...CreateOption) (*Component, error) {
	if !c.Format().CanContain(FormatMultiMethod) {
		return nil, &ChildError{Parent: c.Format(), Child: FormatMultiMethod}
	}
	mmID, err := c.file.pool.EnsureMultiMethod(c.id, name)
	if err != nil {
		return nil, err
	}

	var mm *Component
	if s, ok := c.children().byKey[name]; ok {
		mm = s.members[0]
		if mm.Format() != FormatMultiMethod {
			return nil, &SiblingError{Parent: c.Path(), Name: name}
		}
	} else {
		mm, err = c.createChild(FormatMultiMethod, mmID, nil, []CreateOption{AsSynthetic()})
		if err != nil {
			return nil, err
		}
	}

	sig, err := c.file.pool.EnsureSignature(name, params, returns)
	if err != nil {
		return nil, err
	}
	id, err := c.file.pool.EnsureMethod(mmID, sig)
	if err != nil {
		return nil, err
	}
	return mm.createChild(FormatMethod, id, &methodBody{}, opts)
}

func (c *Component) createChild(format Format, id constant.IdentityConstant, b body, opts []CreateOption) (*Component, error) {
	if !c.Format().CanContain(format) {
		return nil, &ChildError{Parent: c.Format(), Child: format}
	}
	spec := createSpec{access: AccessPublic}
	for _, opt := range opts {
		opt(&spec)
	}
	child := &Component{
		file:     c.file,
		flags:    makeFlags(format, spec.access, spec.abstract, spec.static, spec.synthetic),
		id:       id,
		body:     b,
		modified: true,
	}
	if spec.cond != nil {
		child.cond = c.file.pool.Register(spec.cond).(constant.Condition)
	}
	if spec.doc != "" {
		child.doc = c.file.pool.EnsureString(spec.doc)
	}
	if err := c.addChild(child); err != nil {
		return nil, err
	}
	c.file.logger.Debug("created component", "format", format, "path", id.Path(), "conditional", child.cond != nil)
	return child, nil
}

// addChild files child under its name. A name that is already taken accepts
// the newcomer only if it and every existing member are conditional.
func (c *Component) addChild(child *Component) error {
	kids := c.children()
	key := slotKey(child.id)
	s, ok := kids.byKey[key]
	if !ok {
		s = &slot{key: key, members: []*Component{child}, kids: newChildSet()}
		kids.add(s)
		child.slot = s
		child.parent = c.slot
		c.modified = true
		return nil
	}

	if child.cond == nil || slices.ContainsFunc(s.members, func(m *Component) bool { return m.cond == nil }) {
		return &SiblingError{Parent: c.Path(), Name: child.Name()}
	}
	s.members = append(s.members, child)
	child.slot = s
	child.parent = c.slot
	c.modified = true
	return nil
}

// RemoveChild detaches child from the component. Removing the last member of
// a name slot removes the slot and its children.
func (c *Component) RemoveChild(child *Component) error {
	if child == nil || child.parent != c.slot {
		return ErrNotChild
	}
	s := child.slot
	i := slices.Index(s.members, child)
	if i < 0 {
		return ErrNotChild
	}
	s.members = slices.Delete(s.members, i, i+1)
	if len(s.members) == 0 {
		c.children().remove(s)
	}
	child.parent = nil
	c.modified = true
	c.file.logger.Debug("removed component", "path", child.Path())
	return nil
}
