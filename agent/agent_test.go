package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
)

func newAgent(t *testing.T, name string, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	t.Helper()
	a, err := NewModelAgent(name, model.NewMockModel("mock", "mock"), optFns...)
	require.NoError(t, err)
	return a
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	root := newAgent(t, "greeting_agent")
	paises := newAgent(t, "selector_paises")
	atracciones := newAgent(t, "planificador_atracciones")
	nested := newAgent(t, "nested")

	require.NoError(t, atracciones.SetSubAgents(nested))
	require.NoError(t, root.SetSubAgents(paises, atracciones))

	assert.Nil(t, root.Parent())
	assert.Same(t, root, paises.Parent())
	assert.Len(t, root.SubAgents(), 2)

	assert.Same(t, nested, root.FindAgent("nested"))
	assert.Same(t, root, root.FindAgent("greeting_agent"))
	assert.Nil(t, root.FindAgent("missing"))

	assert.Same(t, root, nested.Root())
}

func TestBaseAgent_SetSubAgentsRules(t *testing.T) {
	root := newAgent(t, "root")
	other := newAgent(t, "other")
	child := newAgent(t, "child")

	err := root.SetSubAgents(child, newAgent(t, "child"))
	assert.ErrorContains(t, err, "duplicate agent name")

	require.NoError(t, root.SetSubAgents(child))
	// idempotent for the same parent
	require.NoError(t, root.SetSubAgents(child))

	err = other.SetSubAgents(child)
	assert.ErrorContains(t, err, "already has parent")

	// replacing detaches old children
	require.NoError(t, root.SetSubAgents())
	assert.Nil(t, child.Parent())
	require.NoError(t, other.SetSubAgents(child))
}

func TestBaseAgent_BareAgentCannotRun(t *testing.T) {
	b := NewBaseAgent("bare")
	found := b.FindAgent("bare")
	require.NotNil(t, found)
	assert.Error(t, found.Run(nil))
	assert.Equal(t, "Agent bare", found.Description())
}

func TestModelAgent_TransferTargets(t *testing.T) {
	root := newAgent(t, "root")
	a := newAgent(t, "a")
	b := newAgent(t, "b")
	c := newAgent(t, "c")
	leaf := newAgent(t, "leaf")
	require.NoError(t, a.SetSubAgents(leaf))
	require.NoError(t, root.SetSubAgents(a, b, c))

	names := func(agents []core.Agent) []string {
		var out []string
		for _, ag := range agents {
			out = append(out, ag.Name())
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c"}, names(root.TransferTargets()))
	assert.Equal(t, []string{"leaf", "root", "b", "c"}, names(a.TransferTargets()))
	assert.Equal(t, []string{"a"}, names(leaf.TransferTargets()))

	locked := newAgent(t, "locked", func(o *ModelAgentOptions) { o.DisallowTransfer = true })
	require.NoError(t, b.SetSubAgents(locked))
	assert.Empty(t, locked.TransferTargets())
	assert.False(t, locked.IsTransferEnabled())
}

func TestNewModelAgent_Options(t *testing.T) {
	temp := 0.1
	maxTokens := 512

	a := newAgent(t, "greeting_agent",
		WithInstruction("Saluda al usuario."),
		func(o *ModelAgentOptions) {
			o.Description = "Agente de bienvenida"
			o.Temperature = &temp
			o.MaxOutputTokens = &maxTokens
			o.EnableStreaming = false
			o.OutputKey = "saludo"
		},
	)

	assert.Equal(t, "Agente de bienvenida", a.Description())
	assert.Equal(t, 0.1, *a.GenerateConfig().Temperature)
	assert.Equal(t, 512, *a.GenerateConfig().MaxOutputTokens)
	assert.False(t, a.IsStreamingEnabled())
	assert.True(t, a.IsFunctionCallingEnabled())
	assert.Equal(t, "saludo", a.GetOutputKey())
	assert.Equal(t, 20, a.MaxHistoryMessages())
	assert.Equal(t, 1, a.ToolExecution().MaxParallel)
	assert.True(t, a.ToolExecution().PreserveOrder)

	instr, err := a.ResolveInstructions(nil)
	require.NoError(t, err)
	assert.Equal(t, "Saluda al usuario.", instr)
}

func TestNewModelAgent_Validation(t *testing.T) {
	_, err := NewModelAgent("", model.NewMockModel("m", "mock"))
	assert.Error(t, err)

	_, err = NewModelAgent("a", nil)
	assert.ErrorContains(t, err, "model is required")

	dup := &echoTool{name: "x"}
	_, err = NewModelAgent("a", model.NewMockModel("m", "mock"), WithTools(dup, dup))
	assert.ErrorContains(t, err, "duplicate tool")

	_, err = NewModelAgent("a", model.NewMockModel("m", "mock"), WithTools(&echoTool{name: "transfer_to_agent"}))
	assert.ErrorContains(t, err, "reserved")
}

func TestModelAgent_GetToolsReturnsCopy(t *testing.T) {
	a := newAgent(t, "a", WithTools(&echoTool{name: "x"}))
	tools := a.GetTools()
	delete(tools, "x")
	assert.Len(t, a.GetTools(), 1)
}

func TestInstructionFunc(t *testing.T) {
	a := newAgent(t, "a", func(o *ModelAgentOptions) {
		o.Instruction = InstructionFunc(func(runCtx *core.RunContext) (string, error) {
			return "Destino: " + runCtx.StateOr("pais", "desconocido").(string), nil
		})
	})

	instr, err := a.ResolveInstructions(newRunContext(t))
	require.NoError(t, err)
	assert.Equal(t, "Destino: desconocido", instr)
}
