package contract

import (
	"fmt"
)

// FieldDefinition is the configuration form of a Field, as read from a
// pipeline config file.
type FieldDefinition struct {
	Name        string            `json:"name" mapstructure:"name"`
	Type        string            `json:"type" mapstructure:"type"`
	Description string            `json:"description,omitempty" mapstructure:"description"`
	Optional    bool              `json:"optional,omitempty" mapstructure:"optional"`
	Values      []string          `json:"values,omitempty" mapstructure:"values"`
	Items       *FieldDefinition  `json:"items,omitempty" mapstructure:"items"`
	Fields      []FieldDefinition `json:"fields,omitempty" mapstructure:"fields"`
}

// FromDefinitions builds a contract from configuration. Nested object fields
// get contracts named "<parent>.<field>".
func FromDefinitions(name string, defs []FieldDefinition) (*Contract, error) {
	fields := make([]Field, 0, len(defs))
	for _, d := range defs {
		t, err := d.toType(name + "." + d.Name)
		if err != nil {
			return nil, fmt.Errorf("contract %q field %q: %w", name, d.Name, err)
		}
		fields = append(fields, Field{
			Name:        d.Name,
			Type:        t,
			Description: d.Description,
			Optional:    d.Optional,
		})
	}
	return New(name, fields...)
}

func (d FieldDefinition) toType(nestedName string) (Type, error) {
	kind, err := KindFromString(d.Type)
	if err != nil {
		return Type{}, err
	}
	switch kind {
	case KindEnum:
		return Enum(d.Values...), nil
	case KindObject:
		nested, err := FromDefinitions(nestedName, d.Fields)
		if err != nil {
			return Type{}, err
		}
		return Object(nested), nil
	case KindArray:
		if d.Items == nil {
			return Type{}, fmt.Errorf("array field requires items")
		}
		elem, err := d.Items.toType(nestedName)
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(elem), nil
	}
	return Type{Kind: kind}, nil
}
