package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("s1")

	s.ApplyStateDelta(map[string]any{"a": 1, "b": "x"})
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("State not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.SetState("c", 2)
	if _, exists := s.GetState("c"); exists {
		t.Error("Original should not have clone's new key")
	}
}

func TestSession_StateOrReturnsDefault(t *testing.T) {
	s := NewSession("s1")

	assert.Equal(t, "ninguno", s.StateOr("pais", "ninguno"))
	assert.Nil(t, s.StateOr("pais", nil))

	s.SetState("pais", "España")
	assert.Equal(t, "España", s.StateOr("pais", "ninguno"))
}

func TestSession_LastWriteWins(t *testing.T) {
	s := NewSession("s1")
	s.SetState("pais", "España")
	s.SetState("pais", "Italia")

	assert.Equal(t, "Italia", s.StateOr("pais", ""))
	assert.Equal(t, map[string]any{"pais": "Italia"}, s.StateSnapshot())
}

func TestSession_AddEventAndHistory(t *testing.T) {
	userEv := NewUserMessageEvent("inv-123", "hi")
	assistantEv := NewMessageEvent("assistant", "hello")
	partial := true
	partialEv := NewMessageEvent("assistant", "hel")
	partialEv.Partial = &partial
	errEv := NewErrorEvent("inv-123", "assistant", "X", "y")

	s := NewSession("s2")
	s.AddEvent(assistantEv)
	s.AddEvent(userEv)
	s.AddEvent(partialEv)
	s.AddEvent(errEv)

	all := s.GetEvents()
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	orig := all[0].Author
	all[0].Author = "changed"
	if s.GetEvents()[0].Author != orig {
		t.Error("events slice should be copied on read")
	}

	history := s.GetConversationHistory()
	assert.Len(t, history, 2)
	assert.Equal(t, RoleAssistant, history[0].Content.Role)
	assert.Equal(t, RoleUser, history[1].Content.Role)
}

func TestRootAgent_NilSafe(t *testing.T) {
	assert.Nil(t, RootAgent(nil))
}
