package tool

import (
	"fmt"
	"slices"

	"github.com/hupe1980/travelmesh/core"
)

// TransferToAgentName is the function name models use to hand over control.
const TransferToAgentName = "transfer_to_agent"

// transferToAgentTool requests orchestration transfer to a named agent.
type transferToAgentTool struct {
	targets []string
}

// NewTransferToAgentTool constructs a transfer tool accepting any agent name.
func NewTransferToAgentTool() Tool { return &transferToAgentTool{} }

// NewTransferToAgentToolFor constructs a transfer tool restricted to targets.
// The names are advertised to the model as an enum.
func NewTransferToAgentToolFor(targets ...string) Tool {
	return &transferToAgentTool{targets: slices.Clone(targets)}
}

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	return "Transfer the conversation to another agent by name. Use when another agent is better suited to answer."
}

func (t *transferToAgentTool) Parameters() map[string]any {
	prop := map[string]any{"type": "string", "description": "Target agent name"}
	if len(t.targets) > 0 {
		enum := make([]any, len(t.targets))
		for i, name := range t.targets {
			enum[i] = name
		}
		prop["enum"] = enum
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": prop,
		},
		"required": []string{"agent_name"},
	}
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["agent_name"]
	if !ok {
		return nil, &ToolError{Tool: t.Name(), Code: CodeValidation, Field: "agent_name", Message: "missing required field 'agent_name'"}
	}

	agentName, ok := raw.(string)
	if !ok || agentName == "" {
		return nil, &ToolError{Tool: t.Name(), Code: CodeValidation, Field: "agent_name", Message: fmt.Sprintf("field 'agent_name' must be non-empty string, got %v", raw)}
	}

	if len(t.targets) > 0 && !slices.Contains(t.targets, agentName) {
		return nil, &ToolError{Tool: t.Name(), Code: CodeValidation, Field: "agent_name", Message: fmt.Sprintf("unknown agent %q, expected one of %v", agentName, t.targets)}
	}

	tc.TransferToAgent(agentName)

	return map[string]any{"transferred": true, "agent_name": agentName}, nil
}
