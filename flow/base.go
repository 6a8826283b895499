package flow

import (
	"fmt"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

// ErrorCodeModel marks events carrying a model side failure.
const ErrorCodeModel = "MODEL_ERROR"

// BaseFlow is the single agent turn loop: request -> callbacks -> model ->
// (optional tool batch) -> repeat, with pluggable request and response
// processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow without processors. The function executor is
// configured from agent.ToolExecution().
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           NewParallelFunctionExecutor(agent.ToolExecution()),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed on each final response.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the executor used for tool batches.
func (f *BaseFlow) SetFunctionExecutor(e FunctionExecutor) { f.executor = e }

// Run loops model turns until a final response, a transfer or an error.
func (f *BaseFlow) Run(runCtx *core.RunContext) error {
	for {
		if err := runCtx.Err(); err != nil {
			return err
		}

		last, err := f.runOnce(runCtx)
		if err != nil {
			return err
		}

		if last == nil {
			return nil
		}

		if target := last.Actions.TransferToAgent; target != nil {
			runCtx.LogInfo("flow.transfer", "from_agent", f.agent.GetName(), "to_agent", *target)
			return f.agent.TransferToAgent(runCtx, *target)
		}

		if last.IsFinalResponse() {
			return nil
		}
	}
}

// runOnce performs one model turn including the tool batch it requests and
// returns the last emitted non-partial event.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	name := f.agent.GetName()

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			return nil, err
		}
	}

	req := &model.Request{
		Stream: f.agent.IsStreamingEnabled(),
		Config: f.agent.GenerateConfig(),
	}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	cbCtx := core.NewCallbackContext(runCtx)

	resp, err := runBeforeModel(cbCtx, f.agent.BeforeModelCallbacks(), req)
	if err != nil {
		return nil, err
	}

	if resp == nil {
		resp, err = f.callModel(runCtx, req)
		if err != nil {
			return nil, err
		}
	}

	if resp == nil {
		return nil, nil
	}

	for _, processor := range f.responseProcessors {
		if err := processor.ProcessResponse(runCtx, resp, f.agent); err != nil {
			return nil, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
		}
	}

	ev := f.responseEvent(runCtx, resp)
	if err := runCtx.EmitEvent(ev); err != nil {
		return nil, err
	}

	last := &ev

	fnCalls := ev.GetFunctionCalls()
	if len(fnCalls) == 0 {
		return last, nil
	}

	var transfer *core.Event

	f.executor.Execute(runCtx, f.agent, f.toolRegistry(), fnCalls, func(respEv core.Event) error {
		if err := runCtx.EmitEvent(respEv); err != nil {
			return err
		}
		last = &respEv
		if respEv.Actions.TransferToAgent != nil && transfer == nil {
			transfer = &respEv
		}
		return nil
	})

	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	if transfer != nil {
		return transfer, nil
	}

	runCtx.LogDebug("flow.tools.complete", "agent", name, "count", len(fnCalls))

	return last, nil
}

// callModel streams the model output, emitting partial chunks, and returns
// the final response after the after-model callbacks ran.
func (f *BaseFlow) callModel(runCtx *core.RunContext, req *model.Request) (*model.Response, error) {
	name := f.agent.GetName()
	llm := f.agent.GetLLM()
	if llm == nil {
		return nil, fmt.Errorf("agent %s has no model", name)
	}

	runCtx.LogDebug("flow.model.request", "agent", name, "model", llm.Info().Name, "contents", len(req.Contents), "tools", len(req.Tools))

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var final *model.Response

	for resp := range respCh {
		if resp.Partial {
			ev := core.NewEvent(runCtx.RunID, name)
			content := resp.Content
			ev.Content = &content
			partial := true
			ev.Partial = &partial
			if err := runCtx.EmitEvent(ev); err != nil {
				return nil, err
			}
			continue
		}

		r := resp
		final = &r
	}

	modelErr := <-errCh
	if modelErr == nil && final == nil {
		modelErr = fmt.Errorf("model %s returned no final response", llm.Info().Name)
	}

	cbCtx := core.NewCallbackContext(runCtx)

	if modelErr != nil {
		runCtx.LogError("flow.model.error", "agent", name, "error", modelErr.Error())

		replacement, err := runAfterModel(cbCtx, f.agent.AfterModelCallbacks(), nil, modelErr)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			return replacement, nil
		}

		return nil, fmt.Errorf("model call of agent %s: %w", name, modelErr)
	}

	if final.Usage != nil {
		runCtx.LogDebug("flow.model.usage", "agent", name, "prompt_tokens", final.Usage.PromptTokens, "completion_tokens", final.Usage.CompletionTokens)
	}

	replacement, err := runAfterModel(cbCtx, f.agent.AfterModelCallbacks(), final, nil)
	if err != nil {
		return nil, err
	}
	if replacement != nil {
		return replacement, nil
	}

	return final, nil
}

// responseEvent converts a final response into an event, assigning ids to
// function calls the provider left anonymous.
func (f *BaseFlow) responseEvent(runCtx *core.RunContext, resp *model.Response) core.Event {
	ev := core.NewEvent(runCtx.RunID, f.agent.GetName())

	if len(resp.Content.Parts) > 0 {
		parts := make([]core.Part, len(resp.Content.Parts))
		for i, p := range resp.Content.Parts {
			if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
				fc.FunctionCall.ID = "call_" + core.NewID()
				p = fc
			}
			parts[i] = p
		}
		ev.Content = &core.Content{Role: core.RoleAssistant, Parts: parts}
	}

	if resp.ErrorMessage != "" {
		code := ErrorCodeModel
		msg := resp.ErrorMessage
		ev.ErrorCode = &code
		ev.ErrorMessage = &msg
	}

	if len(ev.GetFunctionCalls()) == 0 {
		complete := true
		ev.TurnComplete = &complete
	}

	return ev
}

// toolRegistry returns the agent tools plus the transfer tool when the
// agent may hand over control.
func (f *BaseFlow) toolRegistry() map[string]tool.Tool {
	tools := f.agent.GetTools()
	if tools == nil {
		tools = map[string]tool.Tool{}
	}

	if names := transferTargetNames(f.agent); len(names) > 0 {
		tools[tool.TransferToAgentName] = tool.NewTransferToAgentToolFor(names...)
	}

	return tools
}

func transferTargetNames(agent FlowAgent) []string {
	if !agent.IsTransferEnabled() {
		return nil
	}

	targets := agent.TransferTargets()
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name())
	}

	return names
}
