package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/travelmesh/core"
)

// NewTypedTool builds a FunctionTool whose schema is derived from Args and
// whose arguments are decoded into an Args value before fn runs.
//
// Example:
//
//	type countryArgs struct {
//	  Country string `json:"pais" description:"Selected country"`
//	}
//
//	t := NewTypedTool("save_country", "Store the country", func(tc *core.ToolContext, a countryArgs) (any, error) {
//	  tc.SetState("pais", a.Country)
//	  return map[string]any{"status": "ok"}, nil
//	})
func NewTypedTool[Args any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args Args) (any, error),
) *FunctionTool {
	var zero Args

	return NewFunctionToolFromStruct(name, description, zero, func(tc *core.ToolContext, raw map[string]any) (any, error) {
		args, err := DecodeArgs[Args](raw)
		if err != nil {
			return nil, newValidationError(name, err)
		}

		return fn(tc, args)
	})
}

// DecodeArgs converts a validated argument map into T. Type mismatches are
// reported as *ValidationError naming the offending field.
func DecodeArgs[T any](raw map[string]any) (T, error) {
	var out T

	b, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode arguments: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return out, &ValidationError{
				Field:   typeErr.Field,
				Value:   typeErr.Value,
				Message: fmt.Sprintf("expected %s", typeErr.Type),
			}
		}

		return out, fmt.Errorf("decode arguments: %w", err)
	}

	return out, nil
}
