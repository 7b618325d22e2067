package contract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kiosk404/conductor/pkg/utils/json"
)

// Contract is an immutable, named set of typed fields a final answer must
// satisfy.
type Contract struct {
	name   string
	fields []Field
	doc    map[string]any
	schema *jsonschema.Schema
}

// New builds a contract and compiles its JSON Schema.
func New(name string, fields ...Field) (*Contract, error) {
	if name == "" {
		return nil, fmt.Errorf("contract name is required")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("contract %q declares no fields", name)
	}

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("contract %q: field name is required", name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("contract %q: duplicate field %q", name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := f.Type.check(); err != nil {
			return nil, fmt.Errorf("contract %q field %q: %w", name, f.Name, err)
		}
	}

	c := &Contract{
		name:   name,
		fields: append([]Field(nil), fields...),
	}
	c.doc = c.schemaDoc()

	sch, err := compile(c.doc)
	if err != nil {
		return nil, fmt.Errorf("contract %q: compile schema: %w", name, err)
	}
	c.schema = sch
	return c, nil
}

// MustNew is New for package-level contract definitions.
func MustNew(name string, fields ...Field) *Contract {
	c, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Contract) Name() string {
	return c.name
}

// Fields returns a copy of the declared fields in declaration order.
func (c *Contract) Fields() []Field {
	return append([]Field(nil), c.fields...)
}

// JSONSchema returns the JSON Schema document published to the model.
func (c *Contract) JSONSchema() map[string]any {
	return c.schemaDoc()
}

// SchemaString renders JSONSchema as indented JSON.
func (c *Contract) SchemaString() string {
	b, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (c *Contract) schemaDoc() map[string]any {
	props := make(map[string]any, len(c.fields))
	required := make([]any, 0, len(c.fields))
	for _, f := range c.fields {
		p := typeSchema(f.Type)
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"title":      c.name,
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func typeSchema(t Type) map[string]any {
	switch t.Kind {
	case KindString:
		return map[string]any{"type": "string"}
	case KindInteger:
		return map[string]any{"type": "integer"}
	case KindNumber:
		return map[string]any{"type": "number"}
	case KindBoolean:
		return map[string]any{"type": "boolean"}
	case KindEnum:
		vals := make([]any, 0, len(t.Values))
		for _, v := range t.Values {
			vals = append(vals, v)
		}
		return map[string]any{"type": "string", "enum": vals}
	case KindObject:
		return t.Object.schemaDoc()
	case KindArray:
		return map[string]any{"type": "array", "items": typeSchema(*t.Elem)}
	}
	return map[string]any{}
}

func compile(doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("contract.json", schemaDoc); err != nil {
		return nil, err
	}
	return compiler.Compile("contract.json")
}

// checkSchema re-validates an already coerced value against the compiled
// schema.
func (c *Contract) checkSchema(value map[string]any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return violation("", fmt.Sprintf("re-encode value: %v", err))
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return violation("", fmt.Sprintf("re-decode value: %v", err))
	}
	if err := c.schema.Validate(inst); err != nil {
		return violation("", strings.TrimSpace(err.Error()))
	}
	return nil
}
