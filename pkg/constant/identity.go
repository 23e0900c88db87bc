// SPDX-License-Identifier: MPL-2.0

package constant

import (
	"strings"

	"xtcmod/internal/packed"
)

type (
	// IdentityConstant names a structure: a module, package, class, property,
	// multi-method or method.
	IdentityConstant interface {
		Constant
		// Name returns the simple name.
		Name() string
		// Parent returns the enclosing identity, or nil for a module.
		Parent() IdentityConstant
		// Module returns the module the identity belongs to.
		Module() *ModuleConstant
		// Path returns the qualified path, e.g. "app.example.org:util.Strings".
		Path() string
	}

	// ModuleConstant identifies a module by its qualified name.
	ModuleConstant struct {
		header
		name *StringConstant

		pendingName int
	}

	// childIdentity is the shared shape of every identity nested in another.
	childIdentity struct {
		header
		parent IdentityConstant
		name   *StringConstant

		pendingParent, pendingName int
	}

	// PackageConstant identifies a package nested in a module or package.
	PackageConstant struct{ childIdentity }

	// ClassConstant identifies a class, interface, mixin, service, const or enum.
	ClassConstant struct{ childIdentity }

	// PropertyConstant identifies a property.
	PropertyConstant struct{ childIdentity }

	// MultiMethodConstant identifies the set of methods sharing one name.
	MultiMethodConstant struct{ childIdentity }

	// SignatureConstant is a method name plus parameter and return types.
	SignatureConstant struct {
		header
		name    *StringConstant
		params  []Constant
		returns []Constant

		pendingName    int
		pendingParams  []int
		pendingReturns []int
	}

	// MethodConstant identifies one method of a multi-method by signature.
	MethodConstant struct {
		header
		parent *MultiMethodConstant
		sig    *SignatureConstant

		pendingParent, pendingSig int
	}

	// ParameterConstant is a named, typed method parameter.
	ParameterConstant struct {
		header
		typ  Constant
		name *StringConstant

		pendingType, pendingName int
	}
)

// Format implements Constant.
func (c *ModuleConstant) Format() Format { return FormatModule }

// Name returns the qualified module name.
func (c *ModuleConstant) Name() string { return c.name.value }

// Parent returns nil.
func (c *ModuleConstant) Parent() IdentityConstant { return nil }

// Module returns c.
func (c *ModuleConstant) Module() *ModuleConstant { return c }

// Path returns the qualified module name.
func (c *ModuleConstant) Path() string { return c.name.value }

func (c *ModuleConstant) String() string                    { return c.Path() }
func (c *ModuleConstant) detail() string                    { return c.name.value }
func (c *ModuleConstant) locator() (any, bool)              { return c.name.value, true }
func (c *ModuleConstant) visitRefs(fn func(Constant))       { fn(c.name) }
func (c *ModuleConstant) rebind(fn func(Constant) Constant) { c.name = fn(c.name).(*StringConstant) }
func (c *ModuleConstant) encode(w *packed.Writer)           { w.PutIndex(c.name.pos) }

func (c *ModuleConstant) decode(r *packed.Reader, limit int) (err error) {
	c.pendingName, err = requiredIndex(r, limit, "module name")
	return err
}

func (c *ModuleConstant) resolve(p *Pool) (err error) {
	c.name, err = resolveAs[*StringConstant](p, c.pendingName, "module name")
	if err == nil && !IsQualifiedName(c.name.value) {
		err = badRef("module name", c.pendingName)
	}
	return err
}

// Name returns the simple name.
func (c *childIdentity) Name() string { return c.name.value }

// Parent returns the enclosing identity.
func (c *childIdentity) Parent() IdentityConstant { return c.parent }

// Module returns the module the identity belongs to.
func (c *childIdentity) Module() *ModuleConstant { return c.parent.Module() }

// Path returns the qualified path.
func (c *childIdentity) Path() string {
	sep := "."
	if _, ok := c.parent.(*ModuleConstant); ok {
		sep = ":"
	}
	return c.parent.Path() + sep + c.name.value
}

func (c *childIdentity) String() string { return c.Path() }

func (c *childIdentity) detail() string {
	var k keyBuilder
	return k.ref(c.parent).ref(c.name).String()
}

func (c *childIdentity) visitRefs(fn func(Constant)) {
	fn(c.parent)
	fn(c.name)
}

func (c *childIdentity) rebind(fn func(Constant) Constant) {
	c.parent = fn(c.parent).(IdentityConstant)
	c.name = fn(c.name).(*StringConstant)
}

func (c *childIdentity) encode(w *packed.Writer) {
	w.PutIndex(c.parent.Position())
	w.PutIndex(c.name.pos)
}

func (c *childIdentity) decode(r *packed.Reader, limit int) (err error) {
	if c.pendingParent, err = requiredIndex(r, limit, "parent"); err != nil {
		return err
	}
	c.pendingName, err = requiredIndex(r, limit, "name")
	return err
}

func (c *childIdentity) resolveChild(p *Pool, kind string, allowed func(Format) bool) error {
	parent, err := resolveAs[IdentityConstant](p, c.pendingParent, kind+" parent")
	if err != nil {
		return err
	}
	if !allowed(parent.Format()) {
		return badRef(kind+" parent", c.pendingParent)
	}
	c.parent = parent
	c.name, err = resolveAs[*StringConstant](p, c.pendingName, kind+" name")
	return err
}

// Format implements Constant.
func (c *PackageConstant) Format() Format { return FormatPackage }

func (c *PackageConstant) resolve(p *Pool) error {
	return c.resolveChild(p, "package", packageParent)
}

// Format implements Constant.
func (c *ClassConstant) Format() Format { return FormatClass }

func (c *ClassConstant) resolve(p *Pool) error {
	return c.resolveChild(p, "class", classParent)
}

// Format implements Constant.
func (c *PropertyConstant) Format() Format { return FormatProperty }

func (c *PropertyConstant) resolve(p *Pool) error {
	return c.resolveChild(p, "property", classParent)
}

// Format implements Constant.
func (c *MultiMethodConstant) Format() Format { return FormatMultiMethod }

func (c *MultiMethodConstant) resolve(p *Pool) error {
	return c.resolveChild(p, "multimethod", multiMethodParent)
}

func packageParent(f Format) bool {
	return f == FormatModule || f == FormatPackage
}

func classParent(f Format) bool {
	switch f {
	case FormatModule, FormatPackage, FormatClass, FormatMethod:
		return true
	default:
		return false
	}
}

func multiMethodParent(f Format) bool {
	return classParent(f) || f == FormatProperty
}

// Format implements Constant.
func (c *SignatureConstant) Format() Format { return FormatSignature }

// Name returns the method name.
func (c *SignatureConstant) Name() string { return c.name.value }

// Params returns the parameter types.
func (c *SignatureConstant) Params() []Constant { return append([]Constant(nil), c.params...) }

// Returns returns the return types.
func (c *SignatureConstant) Returns() []Constant { return append([]Constant(nil), c.returns...) }

func (c *SignatureConstant) String() string {
	var sb strings.Builder
	sb.WriteString(c.name.value)
	writeList(&sb, c.params)
	if len(c.returns) > 0 {
		sb.WriteString(" -> ")
		writeList(&sb, c.returns)
	}
	return sb.String()
}

func writeList(sb *strings.Builder, cs []Constant) {
	sb.WriteByte('(')
	for i, c := range cs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
	}
	sb.WriteByte(')')
}

func (c *SignatureConstant) detail() string {
	var k keyBuilder
	return k.ref(c.name).refs(c.params).refs(c.returns).String()
}

func (c *SignatureConstant) visitRefs(fn func(Constant)) {
	fn(c.name)
	for _, t := range c.params {
		fn(t)
	}
	for _, t := range c.returns {
		fn(t)
	}
}

func (c *SignatureConstant) rebind(fn func(Constant) Constant) {
	c.name = fn(c.name).(*StringConstant)
	for i, t := range c.params {
		c.params[i] = fn(t)
	}
	for i, t := range c.returns {
		c.returns[i] = fn(t)
	}
}

func (c *SignatureConstant) encode(w *packed.Writer) {
	w.PutIndex(c.name.pos)
	putIndices(w, c.params)
	putIndices(w, c.returns)
}

func (c *SignatureConstant) decode(r *packed.Reader, limit int) (err error) {
	if c.pendingName, err = requiredIndex(r, limit, "signature name"); err != nil {
		return err
	}
	if c.pendingParams, err = readIndices(r, limit); err != nil {
		return err
	}
	c.pendingReturns, err = readIndices(r, limit)
	return err
}

func (c *SignatureConstant) resolve(p *Pool) (err error) {
	if c.name, err = resolveAs[*StringConstant](p, c.pendingName, "signature name"); err != nil {
		return err
	}
	if c.params, err = resolveAll[Constant](p, c.pendingParams, "parameter type"); err != nil {
		return err
	}
	c.returns, err = resolveAll[Constant](p, c.pendingReturns, "return type")
	return err
}

// Format implements Constant.
func (c *MethodConstant) Format() Format { return FormatMethod }

// Name returns the method name.
func (c *MethodConstant) Name() string { return c.parent.Name() }

// Parent returns the multi-method.
func (c *MethodConstant) Parent() IdentityConstant { return c.parent }

// MultiMethod returns the multi-method the method belongs to.
func (c *MethodConstant) MultiMethod() *MultiMethodConstant { return c.parent }

// Signature returns the method signature.
func (c *MethodConstant) Signature() *SignatureConstant { return c.sig }

// Module returns the module the method belongs to.
func (c *MethodConstant) Module() *ModuleConstant { return c.parent.Module() }

// Path returns the multi-method path followed by the signature.
func (c *MethodConstant) Path() string {
	var sb strings.Builder
	sb.WriteString(c.parent.Path())
	writeList(&sb, c.sig.params)
	return sb.String()
}

func (c *MethodConstant) String() string { return c.Path() }

func (c *MethodConstant) detail() string {
	var k keyBuilder
	return k.ref(c.parent).ref(c.sig).String()
}

func (c *MethodConstant) visitRefs(fn func(Constant)) {
	fn(c.parent)
	fn(c.sig)
}

func (c *MethodConstant) rebind(fn func(Constant) Constant) {
	c.parent = fn(c.parent).(*MultiMethodConstant)
	c.sig = fn(c.sig).(*SignatureConstant)
}

func (c *MethodConstant) encode(w *packed.Writer) {
	w.PutIndex(c.parent.pos)
	w.PutIndex(c.sig.pos)
}

func (c *MethodConstant) decode(r *packed.Reader, limit int) (err error) {
	if c.pendingParent, err = requiredIndex(r, limit, "method parent"); err != nil {
		return err
	}
	c.pendingSig, err = requiredIndex(r, limit, "method signature")
	return err
}

func (c *MethodConstant) resolve(p *Pool) (err error) {
	if c.parent, err = resolveAs[*MultiMethodConstant](p, c.pendingParent, "method parent"); err != nil {
		return err
	}
	c.sig, err = resolveAs[*SignatureConstant](p, c.pendingSig, "method signature")
	return err
}

// Format implements Constant.
func (c *ParameterConstant) Format() Format { return FormatParameter }

// Name returns the parameter name.
func (c *ParameterConstant) Name() string { return c.name.value }

// Type returns the parameter type.
func (c *ParameterConstant) Type() Constant { return c.typ }

func (c *ParameterConstant) String() string { return c.typ.String() + " " + c.name.value }

func (c *ParameterConstant) detail() string {
	var k keyBuilder
	return k.ref(c.typ).ref(c.name).String()
}

func (c *ParameterConstant) visitRefs(fn func(Constant)) {
	fn(c.typ)
	fn(c.name)
}

func (c *ParameterConstant) rebind(fn func(Constant) Constant) {
	c.typ = fn(c.typ)
	c.name = fn(c.name).(*StringConstant)
}

func (c *ParameterConstant) encode(w *packed.Writer) {
	w.PutIndex(c.typ.Position())
	w.PutIndex(c.name.pos)
}

func (c *ParameterConstant) decode(r *packed.Reader, limit int) (err error) {
	if c.pendingType, err = requiredIndex(r, limit, "parameter type"); err != nil {
		return err
	}
	c.pendingName, err = requiredIndex(r, limit, "parameter name")
	return err
}

func (c *ParameterConstant) resolve(p *Pool) (err error) {
	if c.typ, err = resolveAs[Constant](p, c.pendingType, "parameter type"); err != nil {
		return err
	}
	c.name, err = resolveAs[*StringConstant](p, c.pendingName, "parameter name")
	return err
}

// EnsureModule returns the canonical identity of the module with the given
// qualified name.
func (p *Pool) EnsureModule(name string) (*ModuleConstant, error) {
	if !IsQualifiedName(name) {
		return nil, &NameError{Kind: "module", Name: name}
	}
	if c, ok := p.located(FormatModule, name); ok {
		return c.(*ModuleConstant), nil
	}
	c := &ModuleConstant{header: newHeader(p), name: p.EnsureString(name)}
	return p.Register(c).(*ModuleConstant), nil
}

// EnsurePackage returns the canonical identity of a package nested in a module
// or package.
func (p *Pool) EnsurePackage(parent IdentityConstant, name string) (*PackageConstant, error) {
	id, err := p.newChild(parent, name, "package", packageParent)
	if err != nil {
		return nil, err
	}
	return p.Register(&PackageConstant{id}).(*PackageConstant), nil
}

// EnsureClass returns the canonical identity of a class nested in a module,
// package, class or method.
func (p *Pool) EnsureClass(parent IdentityConstant, name string) (*ClassConstant, error) {
	id, err := p.newChild(parent, name, "class", classParent)
	if err != nil {
		return nil, err
	}
	return p.Register(&ClassConstant{id}).(*ClassConstant), nil
}

// EnsureProperty returns the canonical identity of a property.
func (p *Pool) EnsureProperty(parent IdentityConstant, name string) (*PropertyConstant, error) {
	id, err := p.newChild(parent, name, "property", classParent)
	if err != nil {
		return nil, err
	}
	return p.Register(&PropertyConstant{id}).(*PropertyConstant), nil
}

// EnsureMultiMethod returns the canonical identity of a multi-method.
func (p *Pool) EnsureMultiMethod(parent IdentityConstant, name string) (*MultiMethodConstant, error) {
	id, err := p.newChild(parent, name, "multimethod", multiMethodParent)
	if err != nil {
		return nil, err
	}
	return p.Register(&MultiMethodConstant{id}).(*MultiMethodConstant), nil
}

func (p *Pool) newChild(parent IdentityConstant, name, kind string, allowed func(Format) bool) (childIdentity, error) {
	if parent == nil {
		return childIdentity{}, &ParentError{Kind: kind}
	}
	if !allowed(parent.Format()) {
		return childIdentity{}, &ParentError{Kind: kind, Parent: parent.Format()}
	}
	if !IsIdentifier(name) {
		return childIdentity{}, &NameError{Kind: kind, Name: name}
	}
	return childIdentity{header: newHeader(p), parent: parent, name: p.EnsureString(name)}, nil
}

// EnsureSignature returns the canonical signature constant.
func (p *Pool) EnsureSignature(name string, params, returns []Constant) (*SignatureConstant, error) {
	if !IsIdentifier(name) {
		return nil, &NameError{Kind: "method", Name: name}
	}
	c := &SignatureConstant{
		header:  newHeader(p),
		name:    p.EnsureString(name),
		params:  append([]Constant(nil), params...),
		returns: append([]Constant(nil), returns...),
	}
	return p.Register(c).(*SignatureConstant), nil
}

// EnsureMethod returns the canonical identity of the method of parent with
// the given signature. The signature name must match the multi-method name.
func (p *Pool) EnsureMethod(parent *MultiMethodConstant, sig *SignatureConstant) (*MethodConstant, error) {
	if parent == nil || sig == nil {
		return nil, &ParentError{Kind: "method"}
	}
	if sig.Name() != parent.Name() {
		return nil, &NameError{Kind: "method", Name: sig.Name()}
	}
	c := &MethodConstant{header: newHeader(p), parent: parent, sig: sig}
	return p.Register(c).(*MethodConstant), nil
}

// EnsureParameter returns the canonical parameter constant.
func (p *Pool) EnsureParameter(typ Constant, name string) (*ParameterConstant, error) {
	if !IsIdentifier(name) {
		return nil, &NameError{Kind: "parameter", Name: name}
	}
	if typ == nil {
		return nil, &ParentError{Kind: "parameter"}
	}
	c := &ParameterConstant{header: newHeader(p), typ: typ, name: p.EnsureString(name)}
	return p.Register(c).(*ParameterConstant), nil
}

func requiredIndex(r *packed.Reader, limit int, what string) (int, error) {
	i, err := r.Index(limit)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, badRef(what, i)
	}
	return i, nil
}

func readIndices(r *packed.Reader, limit int) ([]int, error) {
	n, err := r.Count(r.Remaining())
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := range out {
		if out[i], err = requiredIndex(r, limit, "list element"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func putIndices[T Constant](w *packed.Writer, cs []T) {
	w.PutCount(len(cs))
	for _, c := range cs {
		w.PutIndex(c.Position())
	}
}

func resolveAs[T Constant](p *Pool, i int, what string) (T, error) {
	var zero T
	if i < 0 || i >= len(p.constants) {
		return zero, badRef(what, i)
	}
	c, ok := p.constants[i].(T)
	if !ok {
		return zero, badRef(what, i)
	}
	return c, nil
}

func resolveAll[T Constant](p *Pool, indices []int, what string) ([]T, error) {
	out := make([]T, len(indices))
	for j, i := range indices {
		c, err := resolveAs[T](p, i, what)
		if err != nil {
			return nil, err
		}
		out[j] = c
	}
	return out, nil
}
