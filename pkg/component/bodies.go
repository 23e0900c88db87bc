// SPDX-License-Identifier: MPL-2.0

package component

import (
	"fmt"
	"slices"

	"xtcmod/internal/packed"
	"xtcmod/pkg/constant"
	"xtcmod/pkg/version"
)

type (
	// body is the format-specific part of a component record.
	body interface {
		register(p *constant.Pool)
		write(w *packed.Writer, p *constant.Pool)
		read(r *packed.Reader, p *constant.Pool) error
	}

	moduleBody struct {
		typ ModuleType
		// ver is the version of a primary or embedded module.
		ver *constant.VersionConstant
		// allowed and preferred describe the acceptable versions of a fingerprint.
		allowed   *version.Tree[bool]
		preferred []version.Version
	}

	packageBody struct {
		imported *constant.ModuleConstant
	}

	propertyBody struct {
		typ   constant.Constant
		value constant.Constant
	}

	methodBody struct {
		code []byte
	}
)

// newBody returns an empty body for the format, or nil if the format carries
// no body.
func newBody(f Format) body {
	switch f {
	case FormatModule:
		return &moduleBody{allowed: version.NewTree[bool]()}
	case FormatPackage:
		return &packageBody{}
	case FormatProperty:
		return &propertyBody{}
	case FormatMethod:
		return &methodBody{}
	default:
		return nil
	}
}

func (b *moduleBody) register(p *constant.Pool) {
	if b.ver != nil {
		b.ver = p.Register(b.ver).(*constant.VersionConstant)
	}
	if !b.typ.IsFingerprint() {
		return
	}
	for v := range b.allowed.All() {
		p.EnsureVersion(v)
	}
	for _, v := range b.preferred {
		p.EnsureVersion(v)
	}
}

func (b *moduleBody) write(w *packed.Writer, p *constant.Pool) {
	w.PutByte(byte(b.typ))
	if !b.typ.IsFingerprint() {
		if b.ver == nil {
			w.PutIndex(-1)
		} else {
			w.PutIndex(b.ver.Position())
		}
		return
	}
	w.PutCount(b.allowed.Len())
	for v, allow := range b.allowed.All() {
		w.PutIndex(p.EnsureVersion(v).Position())
		w.PutBool(allow)
	}
	w.PutCount(len(b.preferred))
	for _, v := range b.preferred {
		w.PutIndex(p.EnsureVersion(v).Position())
	}
}

func (b *moduleBody) read(r *packed.Reader, p *constant.Pool) error {
	t, err := r.Byte()
	if err != nil {
		return err
	}
	b.typ = ModuleType(t)
	if !b.typ.IsValid() {
		return &packed.FormatError{Offset: r.Offset() - 1, What: fmt.Sprintf("module type %d", t), Err: ErrBadStructure}
	}
	if !b.typ.IsFingerprint() {
		b.ver, err = readConstant[*constant.VersionConstant](r, p, true, "module version")
		return err
	}

	n, err := r.Count(r.Remaining())
	if err != nil {
		return err
	}
	for range n {
		vc, err := readConstant[*constant.VersionConstant](r, p, false, "allowed version")
		if err != nil {
			return err
		}
		allow, err := r.Bool()
		if err != nil {
			return err
		}
		b.allowed.Put(vc.Version(), allow)
	}
	if n, err = r.Count(r.Remaining()); err != nil {
		return err
	}
	for range n {
		vc, err := readConstant[*constant.VersionConstant](r, p, false, "preferred version")
		if err != nil {
			return err
		}
		b.preferred = append(b.preferred, vc.Version())
	}
	return nil
}

func (b *packageBody) register(p *constant.Pool) {
	if b.imported != nil {
		b.imported = p.Register(b.imported).(*constant.ModuleConstant)
	}
}

func (b *packageBody) write(w *packed.Writer, _ *constant.Pool) {
	if b.imported == nil {
		w.PutIndex(-1)
		return
	}
	w.PutIndex(b.imported.Position())
}

func (b *packageBody) read(r *packed.Reader, p *constant.Pool) (err error) {
	b.imported, err = readConstant[*constant.ModuleConstant](r, p, true, "imported module")
	return err
}

func (b *propertyBody) register(p *constant.Pool) {
	b.typ = p.Register(b.typ)
	b.value = p.Register(b.value)
}

func (b *propertyBody) write(w *packed.Writer, _ *constant.Pool) {
	w.PutIndex(b.typ.Position())
	if b.value == nil {
		w.PutIndex(-1)
		return
	}
	w.PutIndex(b.value.Position())
}

func (b *propertyBody) read(r *packed.Reader, p *constant.Pool) (err error) {
	if b.typ, err = readConstant[constant.Constant](r, p, false, "property type"); err != nil {
		return err
	}
	b.value, err = readConstant[constant.Constant](r, p, true, "property value")
	return err
}

func (b *methodBody) register(*constant.Pool) {}

func (b *methodBody) write(w *packed.Writer, _ *constant.Pool) { w.PutBytes(b.code) }

func (b *methodBody) read(r *packed.Reader, _ *constant.Pool) (err error) {
	b.code, err = r.Bytes()
	return err
}

func (c *Component) moduleBody(op string) (*moduleBody, error) {
	if b, ok := c.body.(*moduleBody); ok {
		return b, nil
	}
	return nil, &FormatMismatchError{Op: op, Format: c.Format()}
}

// ModuleType returns the role of a module component.
func (c *Component) ModuleType() ModuleType {
	if b, ok := c.body.(*moduleBody); ok {
		return b.typ
	}
	return ModulePrimary
}

// IsFingerprint reports whether the component is a fingerprint module.
func (c *Component) IsFingerprint() bool {
	b, ok := c.body.(*moduleBody)
	return ok && b.typ.IsFingerprint()
}

// Version returns the version of a primary or embedded module, or the zero
// version when none is set.
func (c *Component) Version() version.Version {
	if b, ok := c.body.(*moduleBody); ok && b.ver != nil {
		return b.ver.Version()
	}
	return version.Version{}
}

// SetVersion sets the version of a primary or embedded module. The zero
// version clears it.
func (c *Component) SetVersion(v version.Version) error {
	b, err := c.moduleBody("SetVersion")
	if err != nil {
		return err
	}
	if b.typ.IsFingerprint() {
		return &FormatMismatchError{Op: "SetVersion on a fingerprint", Format: c.Format()}
	}
	b.ver = c.file.pool.EnsureVersion(v)
	c.modified = true
	return nil
}

// AllowedVersions returns a copy of the fingerprint's version table; the
// value of each entry is true when the version is allowed and false when it
// is explicitly excluded.
func (c *Component) AllowedVersions() *version.Tree[bool] {
	out := version.NewTree[bool]()
	if b, ok := c.body.(*moduleBody); ok {
		out.PutAll(b.allowed)
	}
	return out
}

// AllowVersion records v as allowed (or, with allow false, excluded) for a
// fingerprint module.
func (c *Component) AllowVersion(v version.Version, allow bool) error {
	b, err := c.fingerprintBody("AllowVersion")
	if err != nil {
		return err
	}
	if v.IsZero() {
		return fmt.Errorf("AllowVersion: %w", version.ErrInvalidVersion)
	}
	b.allowed.Put(v, allow)
	c.modified = true
	return nil
}

// PreferredVersions returns the preferred versions of a fingerprint module
// in preference order.
func (c *Component) PreferredVersions() []version.Version {
	if b, ok := c.body.(*moduleBody); ok {
		return slices.Clone(b.preferred)
	}
	return nil
}

// PreferVersion appends v to the preferred versions of a fingerprint module.
func (c *Component) PreferVersion(v version.Version) error {
	b, err := c.fingerprintBody("PreferVersion")
	if err != nil {
		return err
	}
	if v.IsZero() {
		return fmt.Errorf("PreferVersion: %w", version.ErrInvalidVersion)
	}
	if slices.ContainsFunc(b.preferred, v.Equal) {
		return nil
	}
	b.preferred = append(b.preferred, v)
	c.modified = true
	return nil
}

func (c *Component) fingerprintBody(op string) (*moduleBody, error) {
	b, err := c.moduleBody(op)
	if err != nil {
		return nil, err
	}
	if !b.typ.IsFingerprint() {
		return nil, &FormatMismatchError{Op: op + " on a " + b.typ.String() + " module", Format: c.Format()}
	}
	return b, nil
}

// ImportedModule returns the module a package imports, or nil.
func (c *Component) ImportedModule() *constant.ModuleConstant {
	if b, ok := c.body.(*packageBody); ok {
		return b.imported
	}
	return nil
}

// ImportModule turns a package into an import of mod.
func (c *Component) ImportModule(mod *constant.ModuleConstant) error {
	b, ok := c.body.(*packageBody)
	if !ok {
		return &FormatMismatchError{Op: "ImportModule", Format: c.Format()}
	}
	if mod != nil {
		mod = c.file.pool.Register(mod).(*constant.ModuleConstant)
	}
	b.imported = mod
	c.modified = true
	return nil
}

// PropertyType returns the declared type of a property.
func (c *Component) PropertyType() constant.Constant {
	if b, ok := c.body.(*propertyBody); ok {
		return b.typ
	}
	return nil
}

// PropertyValue returns the initial value of a property, or nil.
func (c *Component) PropertyValue() constant.Constant {
	if b, ok := c.body.(*propertyBody); ok {
		return b.value
	}
	return nil
}

// SetPropertyValue sets the initial value of a property; nil clears it.
func (c *Component) SetPropertyValue(v constant.Constant) error {
	b, ok := c.body.(*propertyBody)
	if !ok {
		return &FormatMismatchError{Op: "SetPropertyValue", Format: c.Format()}
	}
	b.value = c.file.pool.Register(v)
	c.modified = true
	return nil
}

// Code returns the method body bytes.
func (c *Component) Code() []byte {
	if b, ok := c.body.(*methodBody); ok {
		return slices.Clone(b.code)
	}
	return nil
}

// SetCode replaces the method body bytes.
func (c *Component) SetCode(code []byte) error {
	b, ok := c.body.(*methodBody)
	if !ok {
		return &FormatMismatchError{Op: "SetCode", Format: c.Format()}
	}
	b.code = slices.Clone(code)
	c.modified = true
	return nil
}

// Signature returns the signature of a method component.
func (c *Component) Signature() *constant.SignatureConstant {
	if m, ok := c.id.(*constant.MethodConstant); ok {
		return m.Signature()
	}
	return nil
}
