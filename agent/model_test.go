package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/artifact"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/flow"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/session"
	"github.com/hupe1980/travelmesh/tool"
)

type echoTool struct{ name string }

func (e *echoTool) Name() string               { return e.name }
func (e *echoTool) Description() string        { return "echo" }
func (e *echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (e *echoTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	for k, v := range args {
		tc.SetState(k, v)
	}
	return map[string]any{"status": "ok"}, nil
}

type runFixture struct {
	runCtx *core.RunContext
	events chan core.Event
}

func newFixture(t *testing.T, text string) *runFixture {
	t.Helper()
	sessions := session.NewInMemoryStore()
	sess, err := sessions.Create("sess")
	require.NoError(t, err)

	user := core.NewUserMessageEvent("run-1", text)
	sess.AddEvent(user)

	events := make(chan core.Event, 64)
	runCtx := core.NewRunContext(context.Background(), "sess", "run-1", core.AgentInfo{},
		*user.Content, 10, events, sess, sessions, artifact.NewInMemoryStore(), logging.NoOpLogger{})

	return &runFixture{runCtx: runCtx, events: events}
}

func newRunContext(t *testing.T) *core.RunContext {
	return newFixture(t, "hola").runCtx
}

func (f *runFixture) drain() []core.Event {
	var out []core.Event
	for {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestModelAgent_RunAnswers(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").EnqueueText("¡Hola, viajero!")
	a, err := NewModelAgent("greeting_agent", llm, WithInstruction("Saluda."))
	require.NoError(t, err)

	f := newFixture(t, "Hola")
	require.NoError(t, a.Run(f.runCtx))

	evs := f.drain()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, "greeting_agent", last.Author)
	assert.Equal(t, "¡Hola, viajero!", last.Text())
}

func TestModelAgent_TransferRunsTargetOnSameRun(t *testing.T) {
	rootLLM := model.NewMockModel("root", "mock").
		EnqueueFunctionCall(tool.TransferToAgentName, map[string]any{"agent_name": "selector_paises"})
	childLLM := model.NewMockModel("child", "mock").
		EnqueueFunctionCall("guardar", map[string]any{"pais": "Japón"}).
		EnqueueText("Japón guardado")

	child, err := NewModelAgent("selector_paises", childLLM,
		WithInstruction("Elige un país."),
		WithTools(&echoTool{name: "guardar"}),
		func(o *ModelAgentOptions) { o.EnableStreaming = false },
	)
	require.NoError(t, err)

	root, err := NewModelAgent("greeting_agent", rootLLM,
		WithInstruction("Saluda."),
		WithSubAgents(child),
		func(o *ModelAgentOptions) { o.EnableStreaming = false },
	)
	require.NoError(t, err)

	f := newFixture(t, "Quiero ir a Japón")
	require.NoError(t, root.Run(f.runCtx))

	evs := f.drain()
	var authors []string
	for _, ev := range evs {
		authors = append(authors, ev.Author)
	}
	assert.Equal(t, []string{"greeting_agent", "greeting_agent", "selector_paises", "selector_paises", "selector_paises"}, authors)
	assert.Equal(t, "Japón guardado", evs[len(evs)-1].Text())
	assert.Equal(t, "Japón", f.runCtx.StateOr("pais", ""))

	// the child saw the root's transfer as context, not as its own turn
	reqs := childLLM.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, strings.HasPrefix(reqs[0].Instructions, "Elige un país."))
	for _, c := range reqs[0].Contents {
		assert.NotEqual(t, core.RoleTool, c.Role)
	}
}

func TestModelAgent_TransferErrors(t *testing.T) {
	a := newAgent(t, "a")
	f := newFixture(t, "x")

	assert.ErrorContains(t, a.TransferToAgent(f.runCtx, "ghost"), "not found")
	assert.ErrorContains(t, a.TransferToAgent(f.runCtx, "a"), "itself")
}

func TestModelAgent_CallbacksAttached(t *testing.T) {
	var before, after int
	llm := model.NewMockModel("mock", "mock").EnqueueText("ok")
	a, err := NewModelAgent("a", llm, WithModelCallbacks(
		func(*core.CallbackContext, *model.Request) (*model.Response, error) {
			before++
			return nil, nil
		},
		func(cbCtx *core.CallbackContext, _ *model.Response, _ error) (*model.Response, error) {
			after++
			assert.Equal(t, "a", cbCtx.AgentName())
			return nil, nil
		},
	))
	require.NoError(t, err)

	require.NoError(t, a.Run(newFixture(t, "x").runCtx))
	assert.Equal(t, 1, before)
	assert.Equal(t, 1, after)
}

func TestModelAgent_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("unavailable")
	llm := model.NewMockModel("mock", "mock").EnqueueError(boom)
	a, err := NewModelAgent("a", llm)
	require.NoError(t, err)

	err = a.Run(newFixture(t, "x").runCtx)
	assert.ErrorIs(t, err, boom)
}

var _ flow.FlowAgent = (*ModelAgent)(nil)
