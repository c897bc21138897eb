package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType enumerates the value types a configuration field accepts.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldBool   FieldType = "bool"
)

// Field describes one configurable value a service accepts. The dispatcher
// never interprets fields; they exist so a configuration surface can render
// and validate a form.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
	Help     string    `json:"help,omitempty"`
}

// Schema is the ordered set of configuration fields for one service.
type Schema []Field

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Pack validates values against the schema and serializes them. Unknown
// fields are rejected, required fields must be present, and optional fields
// with a default are filled in so the stored blob is self-contained.
func (s Schema) Pack(values map[string]any) ([]byte, error) {
	normalized := make(map[string]any, len(s))
	for name, value := range values {
		f, ok := s.field(name)
		if !ok {
			return nil, fmt.Errorf("unknown config field %q", name)
		}
		coerced, err := coerceValue(f, value)
		if err != nil {
			return nil, err
		}
		normalized[name] = coerced
	}
	for _, f := range s {
		if _, ok := normalized[f.Name]; ok {
			continue
		}
		if f.Required {
			return nil, fmt.Errorf("missing required config field %q", f.Name)
		}
		if f.Default != nil {
			coerced, err := coerceValue(f, f.Default)
			if err != nil {
				return nil, err
			}
			normalized[f.Name] = coerced
		}
	}
	return json.Marshal(normalized)
}

// Unpack deserializes a blob produced by Pack back into field values.
// Unpack(Pack(x)) == x for any fully specified valid x.
func (s Schema) Unpack(blob []byte) (map[string]any, error) {
	values := make(map[string]any, len(s))
	if len(blob) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, fmt.Errorf("decode config blob: %w", err)
		}
		for name, value := range raw {
			f, ok := s.field(name)
			if !ok {
				// Stored under a schema the service no longer declares.
				continue
			}
			coerced, err := coerceValue(f, value)
			if err != nil {
				return nil, err
			}
			values[name] = coerced
		}
	}
	for _, f := range s {
		if _, ok := values[f.Name]; ok || f.Default == nil {
			continue
		}
		coerced, err := coerceValue(f, f.Default)
		if err != nil {
			return nil, err
		}
		values[f.Name] = coerced
	}
	return values, nil
}

func coerceValue(f Field, value any) (any, error) {
	switch f.Type {
	case FieldString:
		if v, ok := value.(string); ok {
			return strings.TrimSpace(v), nil
		}
	case FieldInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case json.Number:
			return v.Int64()
		}
	case FieldBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("config field %q expects %s, got %T", f.Name, f.Type, value)
}
