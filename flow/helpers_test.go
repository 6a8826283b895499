package flow

import (
	"time"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

type mockTool struct {
	name        string
	delay       time.Duration
	result      any
	err         error
	panicMsg    any
	actionState map[string]any
	transferTo  string
}

func (mt *mockTool) Name() string               { return mt.name }
func (mt *mockTool) Description() string        { return "mock tool" }
func (mt *mockTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (mt *mockTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	for k, v := range mt.actionState {
		tc.SetState(k, v)
	}
	if mt.transferTo != "" {
		tc.TransferToAgent(mt.transferTo)
	}
	return mt.result, mt.err
}

// namedAgent is a tree node used only as a transfer target.
type namedAgent struct{ name, desc string }

func (a *namedAgent) Name() string                     { return a.name }
func (a *namedAgent) Description() string              { return a.desc }
func (a *namedAgent) Run(*core.RunContext) error       { return nil }
func (a *namedAgent) SetSubAgents(...core.Agent) error { return nil }
func (a *namedAgent) SubAgents() []core.Agent          { return nil }
func (a *namedAgent) Parent() core.Agent               { return nil }
func (a *namedAgent) FindAgent(string) core.Agent      { return nil }

type stubAgent struct {
	name        string
	llm         model.Model
	instruction string
	tools       map[string]tool.Tool
	targets     []core.Agent
	streaming   bool
	outputKey   string
	maxHistory  int
	config      model.GenerateConfig
	before      []BeforeModelCallback
	after       []AfterModelCallback
	exec        FunctionExecutorConfig

	transferredTo []string
}

func (a *stubAgent) GetName() string     { return a.name }
func (a *stubAgent) GetLLM() model.Model { return a.llm }
func (a *stubAgent) ResolveInstructions(*core.RunContext) (string, error) {
	return a.instruction, nil
}
func (a *stubAgent) GetTools() map[string]tool.Tool {
	out := map[string]tool.Tool{}
	for k, v := range a.tools {
		out[k] = v
	}
	return out
}
func (a *stubAgent) GetSubAgents() []FlowAgent                   { return nil }
func (a *stubAgent) TransferTargets() []core.Agent               { return a.targets }
func (a *stubAgent) IsFunctionCallingEnabled() bool              { return true }
func (a *stubAgent) IsStreamingEnabled() bool                    { return a.streaming }
func (a *stubAgent) IsTransferEnabled() bool                     { return len(a.targets) > 0 }
func (a *stubAgent) GetOutputKey() string                        { return a.outputKey }
func (a *stubAgent) MaxHistoryMessages() int                     { return a.maxHistory }
func (a *stubAgent) GenerateConfig() model.GenerateConfig        { return a.config }
func (a *stubAgent) BeforeModelCallbacks() []BeforeModelCallback { return a.before }
func (a *stubAgent) AfterModelCallbacks() []AfterModelCallback   { return a.after }
func (a *stubAgent) ToolExecution() FunctionExecutorConfig       { return a.exec }
func (a *stubAgent) TransferToAgent(_ *core.RunContext, name string) error {
	a.transferredTo = append(a.transferredTo, name)
	return nil
}

func finalEvents(evs []core.Event) []core.Event {
	var out []core.Event
	for _, ev := range evs {
		if !ev.IsPartial() {
			out = append(out, ev)
		}
	}
	return out
}
