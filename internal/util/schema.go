package util

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Path of the field that failed, e.g. itinerario[1].day
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

var timeType = reflect.TypeOf(time.Time{})

// CreateSchema creates a JSON schema from a Go struct using reflection.
// Nested structs, slices and pointers are expanded; interface typed fields
// produce an unconstrained schema. Fields without omitempty that are not
// pointers are required. The `description` tag becomes the description.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	return typeSchema(t)
}

func typeSchema(t reflect.Type) map[string]any {
	switch t.Kind() {
	case reflect.Ptr:
		return typeSchema(t.Elem())
	case reflect.Interface:
		return map[string]any{}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object"}
	case reflect.Struct:
		if t == timeType {
			return map[string]any{"type": "string", "format": "date-time"}
		}
		return structSchema(t)
	default:
		return map[string]any{"type": getJSONType(t)}
	}
}

func structSchema(t reflect.Type) map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := typeSchema(field.Type)

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			values := strings.Split(enum, ",")
			anyValues := make([]any, len(values))
			for i, v := range values {
				anyValues[i] = strings.TrimSpace(v)
			}
			fieldSchema["enum"] = anyValues
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidateParameters validates parameters against a JSON schema. Nested
// objects and array items are checked recursively; the first failure is
// returned as a *ValidationError whose Field is the full path.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	return validateObject("", params, schema)
}

func validateObject(path string, obj map[string]any, schema map[string]any) error {
	for _, fieldName := range stringList(schema["required"]) {
		v, exists := obj[fieldName]
		if !exists {
			return &ValidationError{
				Field:   joinPath(path, fieldName),
				Message: "required field is missing",
			}
		}
		if v == nil {
			return &ValidationError{
				Field:   joinPath(path, fieldName),
				Message: "required field is null",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range obj {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue // Allow extra fields
		}

		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}

		if err := validateValue(joinPath(path, fieldName), value, propMap); err != nil {
			return err
		}
	}

	return nil
}

// validateValue accepts nil only for optional object properties; required
// ones are rejected by validateObject and typed array items by the caller.
func validateValue(path string, value any, schema map[string]any) error {
	if value == nil {
		return nil
	}

	expectedType, _ := schema["type"].(string)
	if !isValidType(value, expectedType) {
		return &ValidationError{
			Field:   path,
			Value:   value,
			Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
		}
	}

	if enum := schema["enum"]; enum != nil {
		if !inEnum(value, enum) {
			return &ValidationError{
				Field:   path,
				Value:   value,
				Message: fmt.Sprintf("value must be one of %v", enum),
			}
		}
	}

	switch expectedType {
	case "object":
		if m, ok := value.(map[string]any); ok {
			return validateObject(path, m, schema)
		}
	case "array":
		items, _ := schema["items"].(map[string]any)
		if len(items) == 0 {
			return nil
		}
		rv := reflect.ValueOf(value)
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				return &ValidationError{Field: itemPath, Message: "null item"}
			}
			if err := validateValue(itemPath, item, items); err != nil {
				return err
			}
		}
	}

	return nil
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func inEnum(value any, enum any) bool {
	for _, e := range stringList(enum) {
		if s, ok := value.(string); ok && s == e {
			return true
		}
	}
	return false
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling produces float64 for numbers
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // Unknown or absent types are assumed valid
	}
}
