package testutil

import (
	"context"

	"github.com/hupe1980/travelmesh/artifact"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/session"
)

// SessionBuilder helps construct stored sessions with fluent chaining for tests.
// Example:
//
//	h := NewSessionBuilder("sess-1").State("pais", "España").Events(ev1, ev2).Harness()
type SessionBuilder struct {
	id     string
	state  map[string]any
	events []core.Event
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State sets or overwrites a state key/value pair (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Event appends a single event to the session history (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a detached *core.Session with pre-populated state and events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.ApplyStateDelta(b.state)
	for _, ev := range b.events {
		s.AddEvent(ev)
	}
	return s
}

// Harness stores the session in fresh in-memory stores and returns a run
// harness around it.
func (b *SessionBuilder) Harness() *Harness {
	sessions := session.NewInMemoryStore()
	if _, err := sessions.Create(b.id); err != nil {
		panic(err)
	}
	_ = sessions.ApplyDelta(b.id, b.state)
	for _, ev := range b.events {
		_ = sessions.AppendEvent(b.id, ev)
	}

	sess, err := sessions.Get(b.id)
	if err != nil {
		panic(err)
	}

	events := make(chan core.Event, 64)
	artifacts := artifact.NewInMemoryStore()

	return &Harness{
		Sessions:  sessions,
		Artifacts: artifacts,
		Events:    events,
		RunCtx: core.NewRunContext(
			context.Background(), b.id, "run-test", core.AgentInfo{Name: "test_agent", Type: "model"},
			core.Content{}, 0, events, sess, sessions, artifacts, logging.NoOpLogger{},
		),
	}
}

// Harness bundles the stores and the run context used by tool, callback and
// flow tests.
type Harness struct {
	Sessions  *session.InMemoryStore
	Artifacts *artifact.InMemoryStore
	Events    chan core.Event
	RunCtx    *core.RunContext
}

// NewHarness builds a harness for an empty session.
func NewHarness(sessionID string) *Harness {
	return NewSessionBuilder(sessionID).Harness()
}

// ToolContext returns a fresh tool context bound to the harness run.
func (h *Harness) ToolContext(callID string) *core.ToolContext {
	return core.NewToolContext(h.RunCtx, callID)
}

// CallbackContext returns a callback context for agentName.
func (h *Harness) CallbackContext(agentName string) *core.CallbackContext {
	return core.NewCallbackContext(h.RunCtx.WithAgent(core.AgentInfo{Name: agentName, Type: "model"}))
}

// State returns the run's view of a key, or def when absent.
func (h *Harness) State(key string, def any) any {
	return h.RunCtx.StateOr(key, def)
}

// Drain returns all events currently buffered on the emit channel.
func (h *Harness) Drain() []core.Event {
	var out []core.Event
	for {
		select {
		case ev := <-h.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
