package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/internal/testutil"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

func TestInstructionsProcessor_InjectsState(t *testing.T) {
	h := testutil.NewSessionBuilder("sess").State("pais", "España").Harness()
	agent := &stubAgent{name: "a", instruction: "Destino: {pais}. Atracciones: { atracciones? }."}

	req := &model.Request{}
	require.NoError(t, NewInstructionsProcessor().ProcessRequest(h.RunCtx, req, agent))
	assert.Equal(t, "Destino: España. Atracciones: .", req.Instructions)

	h.RunCtx.SetState("atracciones", []string{"Museo del Prado"})
	require.NoError(t, NewInstructionsProcessor().ProcessRequest(h.RunCtx, req, agent))
	assert.Equal(t, `Destino: España. Atracciones: ["Museo del Prado"].`, req.Instructions)
}

func TestInstructionsProcessor_MissingRequiredKey(t *testing.T) {
	h := testutil.NewHarness("sess")
	agent := &stubAgent{name: "a", instruction: "Destino: {pais}"}

	err := NewInstructionsProcessor().ProcessRequest(h.RunCtx, &model.Request{}, agent)
	assert.ErrorContains(t, err, "pais")
}

func TestContentsProcessor_RewritesForeignEvents(t *testing.T) {
	call := core.NewFunctionCallEvent("greeting_agent", tool.TransferToAgentName, `{"agent_name":"selector_paises"}`)
	h := testutil.NewSessionBuilder("sess").
		Event(core.NewUserMessageEvent("r", "Hola")).
		Event(core.NewMessageEvent("greeting_agent", "¡Bienvenido!")).
		Event(call).
		Event(core.NewMessageEvent("selector_paises", "¿Qué país?")).
		Harness()

	agent := &stubAgent{name: "selector_paises"}
	req := &model.Request{}
	require.NoError(t, NewContentsProcessor().ProcessRequest(h.RunCtx, req, agent))

	require.Len(t, req.Contents, 4)
	assert.Equal(t, core.RoleUser, req.Contents[0].Role)
	assert.Equal(t, core.RoleUser, req.Contents[1].Role)
	assert.Contains(t, req.Contents[1].Text(), "[greeting_agent] said: ¡Bienvenido!")
	assert.Contains(t, req.Contents[2].Text(), "called tool `transfer_to_agent`")
	assert.Equal(t, core.RoleAssistant, req.Contents[3].Role)
}

func TestContentsProcessor_TrimDropsLeadingToolResults(t *testing.T) {
	h := testutil.NewSessionBuilder("sess").
		Event(core.NewUserMessageEvent("r", "uno")).
		Event(core.NewFunctionCallEvent("a", "t", "{}")).
		Event(core.NewFunctionResponseEvent("a", "", "t", "ok", nil)).
		Event(core.NewMessageEvent("a", "dos")).
		Harness()

	agent := &stubAgent{name: "a", maxHistory: 2}
	req := &model.Request{}
	require.NoError(t, NewContentsProcessor().ProcessRequest(h.RunCtx, req, agent))

	require.Len(t, req.Contents, 1)
	assert.Equal(t, "dos", req.Contents[0].Text())
}

func TestContentsProcessor_FallsBackToUserContent(t *testing.T) {
	h := testutil.NewHarness("sess")
	h.RunCtx.UserContent = core.NewTextContent(core.RoleUser, "hola")

	req := &model.Request{}
	require.NoError(t, NewContentsProcessor().ProcessRequest(h.RunCtx, req, &stubAgent{name: "a"}))
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "hola", req.Contents[0].Text())
}

func TestToolsProcessor_SortedDefinitions(t *testing.T) {
	agent := &stubAgent{name: "a", tools: map[string]tool.Tool{
		"b_tool": &mockTool{name: "b_tool"},
		"a_tool": &mockTool{name: "a_tool"},
	}}
	req := &model.Request{}
	require.NoError(t, NewToolsProcessor().ProcessRequest(nil, req, agent))
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "a_tool", req.Tools[0].Function.Name)
	assert.Equal(t, "function", req.Tools[0].Type)
}

func TestTransferToolInjector_Injection(t *testing.T) {
	agent := &stubAgent{name: "root", targets: []core.Agent{&namedAgent{name: "child", desc: "Helps"}}}
	inj := NewTransferToolInjector()
	h := testutil.NewHarness("sess")
	req := &model.Request{}
	if err := inj.ProcessRequest(h.RunCtx, req, agent); err != nil {
		t.Fatalf("inject error: %v", err)
	}

	// second call should not duplicate
	_ = inj.ProcessRequest(h.RunCtx, req, agent)
	count := 0
	for _, td := range req.Tools {
		if td.Function.Name == tool.TransferToAgentName {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected single definition, got %d", count)
	}
	assert.Contains(t, req.Instructions, "`child`: Helps")

	// no targets, nothing injected
	req = &model.Request{}
	require.NoError(t, inj.ProcessRequest(h.RunCtx, req, &stubAgent{name: "leaf"}))
	assert.Empty(t, req.Tools)
}
