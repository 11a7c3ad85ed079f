package schema

import (
	"fmt"

	"github.com/edupack/edupack/internal/models"
)

// RefField is the key a componentRef object must carry when the schema
// restricts its allowed targets.
const RefField = "component"

// Validate checks a content object against a declared field list, walking the
// tree depth-first and accumulating every violation into one result. It never
// fails fast and never panics on structurally wrong values; extra keys the
// schema does not declare are ignored.
func Validate(content map[string]any, fields []models.FieldSchema) models.ValidationResult {
	var errs []models.ValidationError
	for _, field := range fields {
		validateField(content[field.Name], field, field.Name, &errs)
	}
	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateField checks a single value against one field schema. Exposed for
// callers validating a lone field rather than a whole content object.
func ValidateField(value any, field models.FieldSchema) models.ValidationResult {
	var errs []models.ValidationError
	validateField(value, field, field.Name, &errs)
	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateField(value any, field models.FieldSchema, path string, errs *[]models.ValidationError) {
	if value == nil {
		// A field is optional when flagged so, when it declares a default,
		// or unconditionally when its kind is boolean. The boolean rule is a
		// long-standing ecosystem behavior; real content relies on it.
		if field.Optional || field.Default != nil || field.Kind == models.KindBoolean {
			return
		}
		*errs = append(*errs, models.ValidationError{
			FieldPath:    path,
			Message:      "missing required field",
			ExpectedKind: string(field.Kind),
		})
		return
	}

	switch field.Kind {
	case models.KindText:
		if _, ok := value.(string); !ok {
			*errs = append(*errs, kindError(path, field.Kind, value))
		}

	case models.KindNumber:
		n, ok := toNumber(value)
		if !ok {
			*errs = append(*errs, kindError(path, field.Kind, value))
			return
		}
		if field.Min != nil && n < *field.Min {
			*errs = append(*errs, models.ValidationError{
				FieldPath: path,
				Message:   fmt.Sprintf("value %v is below minimum %v", n, *field.Min),
			})
		}
		if field.Max != nil && n > *field.Max {
			*errs = append(*errs, models.ValidationError{
				FieldPath: path,
				Message:   fmt.Sprintf("value %v is above maximum %v", n, *field.Max),
			})
		}

	case models.KindBoolean:
		if _, ok := value.(bool); !ok {
			*errs = append(*errs, kindError(path, field.Kind, value))
		}

	case models.KindList:
		validateList(value, field, path, errs)

	case models.KindGroup:
		obj, ok := value.(map[string]any)
		if !ok {
			*errs = append(*errs, kindError(path, field.Kind, value))
			return
		}
		for _, child := range field.Children {
			validateField(obj[child.Name], child, path+"."+child.Name, errs)
		}

	case models.KindComponentRef:
		obj, ok := value.(map[string]any)
		if !ok {
			*errs = append(*errs, kindError(path, field.Kind, value))
			return
		}
		if len(field.AllowedComponents) > 0 {
			if _, ok := obj[RefField].(string); !ok {
				*errs = append(*errs, models.ValidationError{
					FieldPath: path,
					Message:   fmt.Sprintf("component reference is missing its %q field", RefField),
				})
			}
		}

	case models.KindMedia:
		if _, ok := value.(map[string]any); !ok {
			*errs = append(*errs, kindError(path, field.Kind, value))
		}
	}
}

func validateList(value any, field models.FieldSchema, path string, errs *[]models.ValidationError) {
	items, ok := value.([]any)
	if !ok {
		*errs = append(*errs, kindError(path, field.Kind, value))
		return
	}

	if field.Min != nil && float64(len(items)) < *field.Min {
		*errs = append(*errs, models.ValidationError{
			FieldPath: path,
			Message:   fmt.Sprintf("list has %d elements, fewer than minimum %v", len(items), *field.Min),
		})
	}
	if field.Max != nil && float64(len(items)) > *field.Max {
		*errs = append(*errs, models.ValidationError{
			FieldPath: path,
			Message:   fmt.Sprintf("list has %d elements, more than maximum %v", len(items), *field.Max),
		})
	}

	if field.ElementSchema == nil {
		return
	}
	for i, item := range items {
		validateField(item, *field.ElementSchema, fmt.Sprintf("%s[%d]", path, i), errs)
	}
}

func kindError(path string, expected models.FieldKind, actual any) models.ValidationError {
	return models.ValidationError{
		FieldPath:    path,
		Message:      fmt.Sprintf("expected %s, got %s", expected, jsonKind(actual)),
		ExpectedKind: string(expected),
		ActualKind:   jsonKind(actual),
	}
}
