package contract

import (
	"fmt"
	"strings"
)

// Kind is the declared type of a contract field.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	KindBoolean
	KindEnum
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// KindFromString parses the names produced by Kind.String.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return KindString, nil
	case "integer", "int":
		return KindInteger, nil
	case "number", "float":
		return KindNumber, nil
	case "boolean", "bool":
		return KindBoolean, nil
	case "enum":
		return KindEnum, nil
	case "object":
		return KindObject, nil
	case "array", "list":
		return KindArray, nil
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// Type describes the shape a field value must take.
type Type struct {
	Kind Kind
	// Values lists the allowed strings of an enum.
	Values []string
	// Object is the nested contract of an object field.
	Object *Contract
	// Elem is the element type of an array field.
	Elem *Type
}

func String() Type  { return Type{Kind: KindString} }
func Integer() Type { return Type{Kind: KindInteger} }
func Number() Type  { return Type{Kind: KindNumber} }
func Boolean() Type { return Type{Kind: KindBoolean} }

func Enum(values ...string) Type {
	return Type{Kind: KindEnum, Values: append([]string(nil), values...)}
}

func Object(c *Contract) Type {
	return Type{Kind: KindObject, Object: c}
}

func ArrayOf(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

func (t Type) check() error {
	switch t.Kind {
	case KindString, KindInteger, KindNumber, KindBoolean:
		return nil
	case KindEnum:
		if len(t.Values) == 0 {
			return fmt.Errorf("enum declares no values")
		}
	case KindObject:
		if t.Object == nil {
			return fmt.Errorf("object type has no nested contract")
		}
	case KindArray:
		if t.Elem == nil {
			return fmt.Errorf("array type has no element type")
		}
		return t.Elem.check()
	default:
		return fmt.Errorf("unknown kind %d", t.Kind)
	}
	return nil
}

func (t Type) String() string {
	switch t.Kind {
	case KindEnum:
		return fmt.Sprintf("enum(%s)", strings.Join(t.Values, "|"))
	case KindObject:
		return fmt.Sprintf("object(%s)", t.Object.Name())
	case KindArray:
		return fmt.Sprintf("array(%s)", t.Elem.String())
	default:
		return t.Kind.String()
	}
}

// Field is one named entry of a contract. Fields are required unless
// Optional is set.
type Field struct {
	Name        string
	Type        Type
	Description string
	Optional    bool
}
