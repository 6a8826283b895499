package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
)

func TestToMessages_InstructionsAndToolResults(t *testing.T) {
	req := model.Request{
		Instructions: "Eres un planificador de viajes.",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "Quiero ir a Francia"),
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "call_1", Name: "guardar_pais_al_estado", Arguments: `{"pais":"Francia"}`}},
			}},
			{Role: core.RoleTool, Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "call_1", Name: "guardar_pais_al_estado", Response: map[string]any{"status": "País seleccionado actualizado: Francia"}}},
			}},
		},
	}

	msgs := toMessages(req)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Equal(t, "call_1", msgs[2].OfAssistant.ToolCalls[0].ID)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
}

func TestToMessages_SkipsEmptyUserAndAnonymousResults(t *testing.T) {
	req := model.Request{
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, ""),
			core.NewTextContent(core.RoleAssistant, "Hola"),
			{Role: core.RoleTool, Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{Name: "x"}},
			}},
		},
	}

	msgs := toMessages(req)
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].OfAssistant)
}

func TestStreamState_Final(t *testing.T) {
	st := &streamState{id: "chatcmpl-1", calls: map[int64]*pendingCall{
		1: {id: "call_b", name: "guardar_pais_al_estado", args: `{"pais":"Chile"}`},
		0: {id: "call_a", name: "transfer_to_agent", args: `{}`},
	}}
	st.text.WriteString("Un momento")

	resp := st.final("tool_calls")
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, "Un momento", resp.Content.Text())

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "guardar_pais_al_estado", calls[1].Name)
}

func TestBuildParams_RequestConfigWins(t *testing.T) {
	m := &Model{opts: Options{Model: "gpt-4o-mini", Temperature: 0.7, MaxCompletionTokens: 4096}}

	temp, maxTokens := 0.1, 512
	req := model.Request{
		Config: model.GenerateConfig{Temperature: &temp, MaxOutputTokens: &maxTokens},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "guardar_busquedas_al_estado", Parameters: map[string]any{"type": "object"},
		}}},
	}

	params := m.buildParams(req, nil)
	assert.InDelta(t, 0.1, params.Temperature.Value, 1e-9)
	assert.Equal(t, int64(512), params.MaxCompletionTokens.Value)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "guardar_busquedas_al_estado", params.Tools[0].Function.Name)
}

func TestFunctionResponseText_Error(t *testing.T) {
	txt := model.FunctionResponseText(core.FunctionResponse{Name: "x", Error: "boom"})
	assert.JSONEq(t, `{"error":"boom"}`, txt)
}
