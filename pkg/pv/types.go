package pv

import (
	"fmt"
	"math"
	"strings"
)

// Type is the element type of a PV. The numeric codes are the Channel Access
// DBR base types.
type Type uint8

const (
	TypeString Type = 0
	TypeFloat  Type = 2
	TypeEnum   Type = 3
	TypeChar   Type = 4
	TypeInt    Type = 5
	TypeDouble Type = 6
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeEnum:
		return "enum"
	case TypeChar:
		return "char"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType parses a type name as returned by String. "long" and "short" are
// accepted for int.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return TypeString, nil
	case "float":
		return TypeFloat, nil
	case "enum":
		return TypeEnum, nil
	case "char":
		return TypeChar, nil
	case "int", "long", "short":
		return TypeInt, nil
	case "double":
		return TypeDouble, nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrConfiguration, s)
	}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeFloat, TypeEnum, TypeChar, TypeInt, TypeDouble:
		return true
	}
	return false
}

// IsNumeric reports whether values of t are numbers (everything but string).
func (t Type) IsNumeric() bool { return t != TypeString }

// IsFloating reports whether t is float or double.
func (t Type) IsFloating() bool { return t == TypeFloat || t == TypeDouble }

// IsIntegral reports whether t is enum, char or int.
func (t Type) IsIntegral() bool { return t == TypeEnum || t == TypeChar || t == TypeInt }

// intRange returns the representable range of an integral type.
func (t Type) intRange() (lo, hi int64) {
	switch t {
	case TypeChar:
		return 0, math.MaxUint8
	case TypeEnum:
		return 0, math.MaxUint16
	default:
		return math.MinInt32, math.MaxInt32
	}
}

// Fields returns the attribute fields a PV of this type carries.
func (t Type) Fields() Field {
	f := FieldValue | FieldStatus | FieldSeverity | FieldTimestamp
	if t == TypeString {
		return f
	}
	f |= FieldUnit | FieldLimits
	if t.IsFloating() {
		f |= FieldPrecision
	}
	if t == TypeEnum {
		f |= FieldEnumStrings
	}
	return f
}
