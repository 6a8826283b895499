// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments and
// consistent error reporting.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/internal/util"
)

// Tool is a capability an agent can invoke through function calling.
//
// All tools receive a ToolContext for session state, agent flow control and
// artifact management. Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to decide when to call the tool.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes reported by FunctionTool.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`            // Name of the tool that failed
	Message string `json:"message"`         // Error message
	Code    string `json:"code"`            // Error code for categorization
	Field   string `json:"field,omitempty"` // Offending argument path on validation errors
	Details any    `json:"details,omitempty"`

	cause error
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// newValidationError wraps err as a VALIDATION_ERROR, lifting the field path
// when err carries one.
func newValidationError(tool string, err error) *ToolError {
	te := &ToolError{
		Tool:    tool,
		Message: fmt.Sprintf("parameter validation failed: %v", err),
		Code:    CodeValidation,
		cause:   err,
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		te.Field = ve.Field
	}

	return te
}
