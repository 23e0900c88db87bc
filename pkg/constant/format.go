// SPDX-License-Identifier: MPL-2.0

package constant

import "fmt"

// Constant formats. The ordinal is the tag byte written in front of each
// constant record.
const (
	FormatByte Format = iota
	FormatByteString
	FormatChar
	FormatString
	FormatInt
	FormatVersion
	FormatModule
	FormatPackage
	FormatClass
	FormatProperty
	FormatMultiMethod
	FormatSignature
	FormatMethod
	FormatParameter
	FormatCondNamed
	FormatCondPresent
	FormatCondVersionMatch
	FormatCondNot
	FormatCondAll
	FormatCondAny
	FormatCondExactlyOne

	formatCount
)

// Format identifies the kind of a constant.
type Format byte

var formatNames = [formatCount]string{
	FormatByte:             "Byte",
	FormatByteString:       "ByteString",
	FormatChar:             "Char",
	FormatString:           "String",
	FormatInt:              "Int",
	FormatVersion:          "Version",
	FormatModule:           "Module",
	FormatPackage:          "Package",
	FormatClass:            "Class",
	FormatProperty:         "Property",
	FormatMultiMethod:      "MultiMethod",
	FormatSignature:        "Signature",
	FormatMethod:           "Method",
	FormatParameter:        "Parameter",
	FormatCondNamed:        "CondNamed",
	FormatCondPresent:      "CondPresent",
	FormatCondVersionMatch: "CondVersionMatch",
	FormatCondNot:          "CondNot",
	FormatCondAll:          "CondAll",
	FormatCondAny:          "CondAny",
	FormatCondExactlyOne:   "CondExactlyOne",
}

// String returns the format name.
func (f Format) String() string {
	if f < formatCount {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", byte(f))
}

// IsValid reports whether f is a known format.
func (f Format) IsValid() bool { return f < formatCount }

// IsCondition reports whether constants of this format implement Condition.
func (f Format) IsCondition() bool {
	return f >= FormatCondNamed && f <= FormatCondExactlyOne
}

// IsIdentity reports whether constants of this format implement IdentityConstant.
func (f Format) IsIdentity() bool {
	switch f {
	case FormatModule, FormatPackage, FormatClass, FormatProperty, FormatMultiMethod, FormatMethod:
		return true
	default:
		return false
	}
}
