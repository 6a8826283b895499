package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolContext_BasicFunctionality(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	require.NoError(t, tc.Validate())
	if tc.SessionID() != "sess-x" {
		t.Errorf("session id mismatch")
	}
	if tc.RunID() != "run-x" {
		t.Errorf("run id mismatch")
	}
	if tc.FunctionCallID() != "test-call-id" {
		t.Errorf("function call id mismatch")
	}
	if tc.AgentName() != "Agent1" {
		t.Errorf("agent name mismatch")
	}
	if tc.Logger() == nil {
		t.Errorf("expected logger")
	}
	assert.Equal(t, context.Background(), tc.Context())
}

func TestToolContext_StateManagement(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")

	assert.Equal(t, []string{}, tc.StateOr("atracciones", []string{}))

	tc.SetState("pais", "España")
	actions := tc.Actions()
	require.NotNil(t, actions.StateDelta)
	assert.Equal(t, "España", actions.StateDelta["pais"])

	// visible through the run context and to sibling tool contexts
	other := NewToolContext(rc, "other-call")
	assert.Equal(t, "España", other.StateOr("pais", ""))
	assert.Equal(t, "España", tc.StateView()["pais"])
}

func TestToolContext_AgentFlowControl(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	tc.SkipSummarization()
	tc.TransferToAgent("other-agent")
	tc.Escalate()

	ev := NewFunctionResponseEvent("Agent1", "test-call-id", "f", "ok", nil)
	tc.InternalApplyActions(&ev)

	if ev.Actions.SkipSummarization == nil || !*ev.Actions.SkipSummarization {
		t.Error("skip summarization not set")
	}
	if ev.Actions.TransferToAgent == nil || *ev.Actions.TransferToAgent != "other-agent" {
		t.Error("transfer not set")
	}
	if ev.Actions.Escalate == nil || !*ev.Actions.Escalate {
		t.Error("escalate not set")
	}
}

func TestToolContext_ArtifactManagement(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	if err := tc.SaveArtifact("viaje.md", []byte("data")); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	b, err := tc.LoadArtifact("viaje.md")
	if err != nil || string(b) != "data" {
		t.Fatalf("load artifact mismatch: %v %s", err, string(b))
	}
	list, err := tc.ListArtifacts()
	if err != nil || len(list) != 1 || list[0] != "viaje.md" {
		t.Fatalf("list artifacts mismatch: %v %v", err, list)
	}
	assert.Equal(t, 4, tc.Actions().ArtifactDelta["viaje.md"])
}

func TestToolContext_ArtifactStoreMissing(t *testing.T) {
	rc := NewRunContext(context.Background(), "s", "r", AgentInfo{Name: "a"}, Content{}, 0, nil, nil, nil, nil, nil)
	tc := NewToolContext(rc, "call")
	assert.Error(t, tc.SaveArtifact("x", nil))
	_, err := tc.LoadArtifact("x")
	assert.Error(t, err)
}

func TestToolContext_Validation(t *testing.T) {
	assert.Error(t, (&ToolContext{}).Validate())
}
