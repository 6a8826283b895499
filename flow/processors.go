package flow

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/travelmesh/core"
	internalutil "github.com/hupe1980/travelmesh/internal/util"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

// InstructionsProcessor resolves the agent instruction and fills in state
// placeholders such as {pais} or {atracciones?}.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the system instruction of the request.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	rendered, err := internalutil.InjectState(instructions, runCtx.GetState)
	if err != nil {
		return fmt.Errorf("failed to inject state: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(rendered))

	req.Instructions = rendered

	return nil
}

// ContentsProcessor adds the conversation history. Events authored by other
// agents are rewritten as user context so the model does not mistake them
// for its own turns.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest fills req.Contents.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if runCtx.Session != nil {
		for _, ev := range runCtx.Session.GetConversationHistory() {
			if ev.Content == nil || len(ev.Content.Parts) == 0 {
				continue
			}
			if ev.Author == core.RoleUser || ev.Author == agent.GetName() {
				contents = append(contents, *ev.Content)
				continue
			}
			if c, ok := foreignContent(ev); ok {
				contents = append(contents, c)
			}
		}
	}

	if len(contents) == 0 && len(runCtx.UserContent.Parts) > 0 {
		contents = append(contents, runCtx.UserContent)
	}

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(contents) > limit {
		contents = contents[len(contents)-limit:]
		// a trimmed window must not open with orphaned tool results
		for len(contents) > 1 && contents[0].Role == core.RoleTool {
			contents = contents[1:]
		}
	}

	req.Contents = contents

	return nil
}

func foreignContent(ev core.Event) (core.Content, bool) {
	var sb strings.Builder

	for _, part := range ev.Content.Parts {
		switch p := part.(type) {
		case core.TextPart:
			if p.Text != "" {
				fmt.Fprintf(&sb, "[%s] said: %s\n", ev.Author, p.Text)
			}
		case core.FunctionCallPart:
			fmt.Fprintf(&sb, "[%s] called tool `%s` with parameters: %s\n", ev.Author, p.FunctionCall.Name, p.FunctionCall.Arguments)
		case core.FunctionResponsePart:
			fmt.Fprintf(&sb, "[%s] `%s` tool returned result: %s\n", ev.Author, p.FunctionResponse.Name, model.FunctionResponseText(p.FunctionResponse))
		case core.DataPart:
			b, _ := json.Marshal(p.Data)
			fmt.Fprintf(&sb, "[%s] shared data: %s\n", ev.Author, b)
		}
	}

	if sb.Len() == 0 {
		return core.Content{}, false
	}

	return core.NewTextContent(core.RoleUser, "For context:\n"+strings.TrimRight(sb.String(), "\n")), true
}

// ToolsProcessor declares the agent's tools in name order.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest appends tool definitions when function calling is enabled.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsFunctionCallingEnabled() {
		return nil
	}

	tools := agent.GetTools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		req.Tools = appendToolDefinition(req.Tools, tools[name])
	}

	return nil
}

// TransferToolInjector declares transfer_to_agent and tells the model which
// agents it can hand over to.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer" }

// ProcessRequest adds the transfer tool once and lists the targets.
func (p *TransferToolInjector) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	names := transferTargetNames(agent)
	if len(names) == 0 {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == tool.TransferToAgentName {
			return nil
		}
	}

	req.Tools = appendToolDefinition(req.Tools, tool.NewTransferToAgentToolFor(names...))

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\nYou are agent `%s`. You can hand the conversation to another agent with the `%s` tool when it is better suited to answer. Available agents:\n", agent.GetName(), tool.TransferToAgentName)
	for _, t := range agent.TransferTargets() {
		fmt.Fprintf(&sb, "- `%s`: %s\n", t.Name(), t.Description())
	}

	req.Instructions += strings.TrimRight(sb.String(), "\n")

	return nil
}

func appendToolDefinition(defs []model.ToolDefinition, t tool.Tool) []model.ToolDefinition {
	return append(defs, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	})
}

// OutputKeyProcessor stores the final text of the agent under its output key.
type OutputKeyProcessor struct{}

// NewOutputKeyProcessor creates a new output key processor.
func NewOutputKeyProcessor() *OutputKeyProcessor { return &OutputKeyProcessor{} }

// Name returns the processor's identifier.
func (p *OutputKeyProcessor) Name() string { return "output_key" }

// ProcessResponse writes the text of final, tool-free responses.
func (p *OutputKeyProcessor) ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error {
	key := agent.GetOutputKey()
	if key == "" || len(resp.Content.FunctionCalls()) > 0 {
		return nil
	}

	if text := resp.Content.Text(); text != "" {
		runCtx.SetState(key, text)
	}

	return nil
}
