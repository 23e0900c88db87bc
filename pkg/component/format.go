// SPDX-License-Identifier: MPL-2.0

package component

import "fmt"

// Component formats. The ordinal occupies the low four bits of the flag word;
// the gaps are reserved.
const (
	FormatInterface   Format = 0
	FormatClass       Format = 1
	FormatConst       Format = 2
	FormatEnum        Format = 3
	FormatEnumValue   Format = 4
	FormatMixin       Format = 5
	FormatService     Format = 6
	FormatPackage     Format = 7
	FormatModule      Format = 8
	FormatProperty    Format = 10
	FormatMethod      Format = 11
	FormatMultiMethod Format = 14
	FormatFile        Format = 15
)

// Access levels, stored in bits 8-9 of the flag word.
const (
	AccessStruct Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

// Flag word layout.
const (
	FormatMask   uint16 = 0x000F
	AccessMask   uint16 = 0x0300
	AccessShift         = 8
	AbstractBit  uint16 = 0x0400
	StaticBit    uint16 = 0x0800
	SyntheticBit uint16 = 0x1000

	// ConditionalBit marks the first byte of a conditional sibling group in a
	// children block; it can never appear in the high byte of a flag word.
	ConditionalBit byte = 0x80
)

// Contribution kinds.
const (
	ContribAnnotation Composition = iota
	ContribExtends
	ContribImplements
	ContribDelegates
	ContribIncorporates
	ContribInto
)

// Module types. Optional, Desired and Required modules are fingerprints: they
// describe a dependency rather than define it.
const (
	ModulePrimary ModuleType = iota
	ModuleOptional
	ModuleDesired
	ModuleRequired
	ModuleEmbedded
)

type (
	// Format identifies the kind of a component.
	Format uint8

	// Access is the visibility of a component.
	Access uint8

	// Composition is the kind of a class contribution.
	Composition uint8

	// ModuleType describes the role of a module inside a file.
	ModuleType uint8
)

var formatNames = map[Format]string{
	FormatInterface:   "Interface",
	FormatClass:       "Class",
	FormatConst:       "Const",
	FormatEnum:        "Enum",
	FormatEnumValue:   "EnumValue",
	FormatMixin:       "Mixin",
	FormatService:     "Service",
	FormatPackage:     "Package",
	FormatModule:      "Module",
	FormatProperty:    "Property",
	FormatMethod:      "Method",
	FormatMultiMethod: "MultiMethod",
	FormatFile:        "File",
}

// String returns the format name.
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// IsValid reports whether f is a defined format.
func (f Format) IsValid() bool {
	_, ok := formatNames[f]
	return ok
}

// IsClass reports whether f is one of the class-like formats.
func (f Format) IsClass() bool {
	return f <= FormatService
}

// CanContain reports whether a component of format f may hold a child of
// format child.
func (f Format) CanContain(child Format) bool {
	switch f {
	case FormatFile:
		return child == FormatModule
	case FormatModule, FormatPackage:
		return child == FormatPackage || child.IsClass() || child == FormatProperty || child == FormatMultiMethod
	case FormatProperty:
		return child == FormatMultiMethod
	case FormatMultiMethod:
		return child == FormatMethod
	case FormatMethod:
		return child.IsClass() || child == FormatMultiMethod
	default:
		if f.IsClass() {
			return child.IsClass() || child == FormatProperty || child == FormatMultiMethod
		}
		return false
	}
}

// String returns the access keyword.
func (a Access) String() string {
	switch a {
	case AccessStruct:
		return "struct"
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// String returns the contribution keyword.
func (c Composition) String() string {
	switch c {
	case ContribAnnotation:
		return "annotation"
	case ContribExtends:
		return "extends"
	case ContribImplements:
		return "implements"
	case ContribDelegates:
		return "delegates"
	case ContribIncorporates:
		return "incorporates"
	case ContribInto:
		return "into"
	default:
		return fmt.Sprintf("Composition(%d)", uint8(c))
	}
}

// IsValid reports whether c is a defined contribution kind.
func (c Composition) IsValid() bool { return c <= ContribInto }

// String returns the module type name.
func (t ModuleType) String() string {
	switch t {
	case ModulePrimary:
		return "primary"
	case ModuleOptional:
		return "optional"
	case ModuleDesired:
		return "desired"
	case ModuleRequired:
		return "required"
	case ModuleEmbedded:
		return "embedded"
	default:
		return fmt.Sprintf("ModuleType(%d)", uint8(t))
	}
}

// IsValid reports whether t is a defined module type.
func (t ModuleType) IsValid() bool { return t <= ModuleEmbedded }

// IsFingerprint reports whether modules of this type only describe a
// dependency.
func (t ModuleType) IsFingerprint() bool {
	return t == ModuleOptional || t == ModuleDesired || t == ModuleRequired
}

func makeFlags(f Format, a Access, abstract, static, synthetic bool) uint16 {
	flags := uint16(f)&FormatMask | uint16(a)<<AccessShift&AccessMask
	if abstract {
		flags |= AbstractBit
	}
	if static {
		flags |= StaticBit
	}
	if synthetic {
		flags |= SyntheticBit
	}
	return flags
}
