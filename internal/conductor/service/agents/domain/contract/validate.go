package contract

import (
	stdjson "encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/pkg/errno"
	"github.com/kiosk404/conductor/pkg/utils/json"
)

// ViolationError reports the first field that failed validation.
type ViolationError struct {
	Path   string
	Reason string
}

func (e *ViolationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", errno.ErrSchemaViolation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", errno.ErrSchemaViolation, e.Path, e.Reason)
}

func (e *ViolationError) Is(target error) bool {
	return target == errno.ErrSchemaViolation
}

func violation(path, reason string) *ViolationError {
	return &ViolationError{Path: path, Reason: reason}
}

// Validate parses a raw model answer and coerces it into the contract.
// The answer may be bare JSON or a fenced ```json block.
func (c *Contract) Validate(raw string) (map[string]any, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, violation("", "answer is empty")
	}

	var v any
	if err := json.UnmarshalUseNumber([]byte(body), &v); err != nil {
		return nil, violation("", fmt.Sprintf("answer is not valid JSON: %v", err))
	}
	return c.ValidateValue(v)
}

// ValidateValue coerces an already decoded value into the contract.
func (c *Contract) ValidateValue(v any) (map[string]any, error) {
	out, err := c.coerceObject("", v)
	if err != nil {
		return nil, err
	}
	if err := c.checkSchema(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode maps a validated value into out, typically a struct with json tags.
func Decode(value map[string]any, out any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode validated value: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode validated value: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string, e.g. "json"
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (c *Contract) coerceObject(path string, v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, violation(path, fmt.Sprintf("expected object, got %s", describe(v)))
	}

	out := make(map[string]any, len(c.fields))
	for _, f := range c.fields {
		fp := joinPath(path, f.Name)
		raw, present := obj[f.Name]
		if !present || raw == nil {
			if f.Optional {
				continue
			}
			return nil, violation(fp, "required field is missing")
		}
		val, err := coerce(fp, f.Type, raw)
		if err != nil {
			return nil, err
		}
		out[f.Name] = val
	}
	return out, nil
}

func coerce(path string, t Type, v any) (any, error) {
	switch t.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, violation(path, fmt.Sprintf("expected string, got %s", describe(v)))
		}
		return s, nil

	case KindBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(b) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, violation(path, fmt.Sprintf("expected boolean, got %s", describe(v)))

	case KindInteger:
		return toInt(path, v)

	case KindNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, violation(path, fmt.Sprintf("expected number, got %s", describe(v)))
		}
		return f, nil

	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, violation(path, fmt.Sprintf("expected one of %v, got %s", t.Values, describe(v)))
		}
		if !slices.Contains(t.Values, s) {
			return nil, violation(path, fmt.Sprintf("value %q is not one of %v", s, t.Values))
		}
		return s, nil

	case KindObject:
		return t.Object.coerceObject(path, v)

	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return nil, violation(path, fmt.Sprintf("expected array, got %s", describe(v)))
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			val, err := coerce(fmt.Sprintf("%s[%d]", path, i), *t.Elem, item)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	return nil, violation(path, fmt.Sprintf("unsupported kind %s", t.Kind))
}

// toInt accepts only values an int64 holds exactly.
func toInt(path string, v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case stdjson.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		// "1e3" and "4.0" are integral but not in integer syntax
		f, err := n.Float64()
		if err != nil || math.Abs(f) >= 1<<53 {
			return nil, violation(path, fmt.Sprintf("integer %s is out of range", n))
		}
		v = f
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, violation(path, fmt.Sprintf("expected integer, got %s", describe(v)))
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, violation(path, fmt.Sprintf("expected integer, got %v", f))
	}
	// float64 only represents every integer exactly below 2^53
	if math.Abs(f) >= 1<<53 {
		return nil, violation(path, fmt.Sprintf("integer %v is out of range", f))
	}
	return int64(f), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case stdjson.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case stdjson.Number, float64, float32, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
