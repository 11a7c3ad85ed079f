// Package schema parses component field schemas and validates content trees
// against them. Validation accumulates every violation in a single pass;
// only a malformed schema declaration itself is a hard error.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/edupack/edupack/internal/models"
)

// Parse reads a raw schema declaration (a JSON array of field definitions)
// into an immutable FieldSchema tree. A non-array or otherwise malformed
// declaration is a hard error: it means the component descriptor was
// corrupted in transit, not that authored content is wrong.
func Parse(raw []byte) ([]models.FieldSchema, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("malformed schema declaration: %w", err)
	}

	entries, ok := top.([]any)
	if !ok {
		return nil, fmt.Errorf("malformed schema declaration: expected a top-level array, got %s", jsonKind(top))
	}

	fields := make([]models.FieldSchema, 0, len(entries))
	for i, entry := range entries {
		field, err := parseField(entry)
		if err != nil {
			return nil, fmt.Errorf("schema field %d: %w", i, err)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func parseField(entry any) (models.FieldSchema, error) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return models.FieldSchema{}, fmt.Errorf("expected an object, got %s", jsonKind(entry))
	}

	name, _ := obj["name"].(string)
	if name == "" {
		return models.FieldSchema{}, fmt.Errorf("missing field name")
	}

	kindStr, _ := obj["type"].(string)
	kind := models.FieldKind(kindStr)
	switch kind {
	case models.KindText, models.KindNumber, models.KindBoolean,
		models.KindList, models.KindGroup, models.KindComponentRef, models.KindMedia:
	default:
		return models.FieldSchema{}, fmt.Errorf("field %q: unknown kind %q", name, kindStr)
	}

	field := models.FieldSchema{
		Name:    name,
		Kind:    kind,
		Default: obj["default"],
	}

	if opt, ok := obj["optional"].(bool); ok {
		field.Optional = opt
	}
	if min, ok := toNumber(obj["min"]); ok {
		field.Min = &min
	}
	if max, ok := toNumber(obj["max"]); ok {
		field.Max = &max
	}

	switch kind {
	case models.KindGroup:
		children, ok := obj["fields"].([]any)
		if !ok {
			return models.FieldSchema{}, fmt.Errorf("group field %q: missing fields array", name)
		}
		for i, child := range children {
			parsed, err := parseField(child)
			if err != nil {
				return models.FieldSchema{}, fmt.Errorf("group field %q, child %d: %w", name, i, err)
			}
			field.Children = append(field.Children, parsed)
		}

	case models.KindList:
		element, ok := obj["field"]
		if !ok {
			return models.FieldSchema{}, fmt.Errorf("list field %q: missing element schema", name)
		}
		parsed, err := parseField(element)
		if err != nil {
			return models.FieldSchema{}, fmt.Errorf("list field %q: %w", name, err)
		}
		field.ElementSchema = &parsed

	case models.KindComponentRef:
		if opts, ok := obj["options"].([]any); ok {
			for _, o := range opts {
				if s, ok := o.(string); ok {
					field.AllowedComponents = append(field.AllowedComponents, s)
				}
			}
		}
	}

	return field, nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
