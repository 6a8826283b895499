// Package flow orchestrates the model turn loop of an agent: it assembles the
// request through processors, runs model callbacks, calls the model, executes
// requested tools and follows agent transfers until a final response.
package flow

import (
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

// Flow defines the interface for agent execution flows.
//
// Run drives the agent until it produces a final response or hands over to
// another agent. Events are emitted through runCtx.EmitEvent as they occur.
type Flow interface {
	Run(runCtx *core.RunContext) error
}

// FlowAgent is the view of an agent a flow needs. It exposes capabilities
// without the full agent implementation.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions returns the raw system instruction. State
	// placeholders are filled in by the InstructionsProcessor.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// GetSubAgents returns the list of child agents.
	GetSubAgents() []FlowAgent

	// TransferTargets lists the agents this one may hand control to.
	TransferTargets() []core.Agent

	IsFunctionCallingEnabled() bool
	IsStreamingEnabled() bool
	IsTransferEnabled() bool

	// GetOutputKey returns the session state key for saving final text.
	GetOutputKey() string

	// MaxHistoryMessages caps the history sent to the model (0 = no cap).
	MaxHistoryMessages() int

	// GenerateConfig returns the sampling settings of the agent.
	GenerateConfig() model.GenerateConfig

	BeforeModelCallbacks() []BeforeModelCallback
	AfterModelCallbacks() []AfterModelCallback

	// ToolExecution configures how batches of function calls run.
	ToolExecution() FunctionExecutorConfig

	// TransferToAgent runs the named agent of the tree on runCtx.
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes a final response before it is emitted.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse inspects or adjusts the final model response.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
