package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/flow"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction           InstructionProvider
	Description           string
	EnableStreaming       bool
	EnableFunctionCalling bool
	// DisallowTransfer hides transfer_to_agent from the model.
	DisallowTransfer   bool
	OutputKey          string
	MaxHistoryMessages int
	Temperature        *float64
	MaxOutputTokens    *int
	Tools              []tool.Tool
	SubAgents          []core.Agent
	BeforeModel        []flow.BeforeModelCallback
	AfterModel         []flow.AfterModelCallback
	// ToolTimeout bounds a single tool call. Zero disables the bound.
	ToolTimeout time.Duration
	// MaxParallelTools caps concurrent tool calls of one model turn. The
	// default of 1 runs them in order, so read-modify-write tools never
	// race.
	MaxParallelTools int
}

// ModelAgent is a conversational agent backed by a language model.
//
// It supports:
//   - system instructions with session state placeholders
//   - function calling with registered tools
//   - streaming responses
//   - before/after model callbacks
//   - handing the conversation to other agents of its tree
type ModelAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           InstructionProvider
	tools                 map[string]tool.Tool
	enableFunctionCalling bool
	enableStreaming       bool
	allowTransfer         bool
	outputKey             string
	maxHistoryMessages    int
	generateConfig        model.GenerateConfig
	beforeModel           []flow.BeforeModelCallback
	afterModel            []flow.AfterModelCallback
	toolExecution         flow.FunctionExecutorConfig
}

// NewModelAgent creates a model agent. Defaults:
//   - streaming and function calling enabled
//   - 15 second tool timeout, tools run one at a time
//   - 20 message history window
//   - transfers allowed
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	opts := ModelAgentOptions{
		Instruction:           Text(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           15 * time.Second,
		MaxHistoryMessages:    20,
		MaxParallelTools:      1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if llm == nil {
		return nil, fmt.Errorf("agent %s: model is required", name)
	}

	a := &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		tools:                 make(map[string]tool.Tool, len(opts.Tools)),
		enableFunctionCalling: opts.EnableFunctionCalling,
		enableStreaming:       opts.EnableStreaming,
		allowTransfer:         !opts.DisallowTransfer,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		generateConfig: model.GenerateConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
		beforeModel: opts.BeforeModel,
		afterModel:  opts.AfterModel,
		toolExecution: flow.FunctionExecutorConfig{
			MaxParallel:   opts.MaxParallelTools,
			PreserveOrder: true,
			Timeout:       opts.ToolTimeout,
		},
	}
	a.bind(a)

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	for _, t := range opts.Tools {
		if t.Name() == tool.TransferToAgentName {
			return nil, fmt.Errorf("agent %s: tool name %s is reserved", name, t.Name())
		}
		if _, dup := a.tools[t.Name()]; dup {
			return nil, fmt.Errorf("agent %s: duplicate tool %s", name, t.Name())
		}
		a.tools[t.Name()] = t
	}

	if len(opts.SubAgents) > 0 {
		if err := a.SetSubAgents(opts.SubAgents...); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// WithInstruction sets a static instruction.
func WithInstruction(text string) func(o *ModelAgentOptions) {
	return func(o *ModelAgentOptions) { o.Instruction = Text(text) }
}

// WithTools registers tools with the agent.
func WithTools(tools ...tool.Tool) func(o *ModelAgentOptions) {
	return func(o *ModelAgentOptions) { o.Tools = append(o.Tools, tools...) }
}

// WithSubAgents attaches child agents.
func WithSubAgents(children ...core.Agent) func(o *ModelAgentOptions) {
	return func(o *ModelAgentOptions) { o.SubAgents = append(o.SubAgents, children...) }
}

// WithModelCallbacks attaches a before and an after model callback. Either
// may be nil.
func WithModelCallbacks(before flow.BeforeModelCallback, after flow.AfterModelCallback) func(o *ModelAgentOptions) {
	return func(o *ModelAgentOptions) {
		if before != nil {
			o.BeforeModel = append(o.BeforeModel, before)
		}
		if after != nil {
			o.AfterModel = append(o.AfterModel, after)
		}
	}
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tools.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}

	return tools
}

// GetSubAgents returns the child agents that can drive a flow.
func (a *ModelAgent) GetSubAgents() []flow.FlowAgent {
	subAgents := a.SubAgents()
	flowAgents := make([]flow.FlowAgent, 0, len(subAgents))
	for _, subAgent := range subAgents {
		if flowAgent, ok := subAgent.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, flowAgent)
		}
	}
	return flowAgents
}

// IsFunctionCallingEnabled returns whether function calling is enabled.
func (a *ModelAgent) IsFunctionCallingEnabled() bool { return a.enableFunctionCalling }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled returns whether agent transfer is enabled.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// GetOutputKey returns the session state key for saving responses.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the history window sent to the model.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// GenerateConfig returns the sampling settings of the agent.
func (a *ModelAgent) GenerateConfig() model.GenerateConfig { return a.generateConfig }

// BeforeModelCallbacks returns the callbacks run before each model call.
func (a *ModelAgent) BeforeModelCallbacks() []flow.BeforeModelCallback { return a.beforeModel }

// AfterModelCallbacks returns the callbacks run after each model call.
func (a *ModelAgent) AfterModelCallbacks() []flow.AfterModelCallback { return a.afterModel }

// ToolExecution returns how batches of function calls run.
func (a *ModelAgent) ToolExecution() flow.FunctionExecutorConfig { return a.toolExecution }

// ResolveInstructions returns the raw instruction text.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	if a.instruction == nil {
		return "", nil
	}
	return a.instruction.Instruction(runCtx)
}

// TransferTargets lists the agents this one may hand control to, or nil
// when transfers are disallowed.
func (a *ModelAgent) TransferTargets() []core.Agent {
	if !a.allowTransfer {
		return nil
	}
	return a.BaseAgent.TransferTargets()
}

// TransferToAgent looks agentName up anywhere in the tree and runs it on
// the same run: shared session, state buffer and emit channel.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	if agentName == a.Name() {
		return fmt.Errorf("agent %s cannot transfer to itself", agentName)
	}

	target := a.Root().FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent '%s' not found in hierarchy", agentName)
	}

	runCtx.LogInfo("agent.transfer", "from_agent", a.Name(), "to_agent", agentName)

	return target.Run(runCtx.WithAgent(core.AgentInfo{Name: target.Name(), Type: agentType(target)}))
}

// Run implements core.Agent. It picks a flow for the agent's capabilities
// and drives it until the agent answers or hands over.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	if runCtx.Agent.Name != a.Name() {
		runCtx = runCtx.WithAgent(core.AgentInfo{Name: a.Name(), Type: agentType(a)})
	}

	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	fl := flow.NewSelector().SelectFlow(a)

	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	if err := fl.Run(runCtx); err != nil {
		runCtx.LogError("agent.run.error", "agent", a.Name(), "error", err.Error())
		return err
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}

func agentType(a core.Agent) string {
	if _, ok := a.(*ModelAgent); ok {
		return "model"
	}
	return "custom"
}
