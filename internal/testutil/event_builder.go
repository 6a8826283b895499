package testutil

import (
	"github.com/hupe1980/travelmesh/core"
)

// EventBuilder assembles events whose shape the core constructors do not
// cover: mixed parts, explicit ids and attached actions.
//
//	ev := NewEventBuilder("selector_paises").
//		Call("c1", "guardar_pais_al_estado", `{"pais":"España"}`).
//		State("pais", "España").
//		Build()
type EventBuilder struct {
	ev    core.Event
	role  string
	parts []core.Part
}

// NewEventBuilder starts an event authored by author. The role defaults to
// assistant, or user when author is core.RoleUser.
func NewEventBuilder(author string) *EventBuilder {
	role := core.RoleAssistant
	if author == core.RoleUser {
		role = core.RoleUser
	}
	return &EventBuilder{ev: core.NewEvent("", author), role: role}
}

func (b *EventBuilder) Invocation(id string) *EventBuilder { b.ev.InvocationID = id; return b }

func (b *EventBuilder) ID(id string) *EventBuilder { b.ev.ID = id; return b }

func (b *EventBuilder) Role(role string) *EventBuilder { b.role = role; return b }

func (b *EventBuilder) Branch(br string) *EventBuilder { b.ev.Branch = &br; return b }

// Partial marks the event as a streaming fragment.
func (b *EventBuilder) Partial() *EventBuilder {
	p := true
	b.ev.Partial = &p
	return b
}

func (b *EventBuilder) Text(t string) *EventBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

func (b *EventBuilder) Data(d map[string]any) *EventBuilder {
	b.parts = append(b.parts, core.DataPart{Data: d})
	return b
}

// Call adds a function call with JSON-encoded args.
func (b *EventBuilder) Call(id, name, args string) *EventBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{
		FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args},
	})
	return b
}

// Result adds a function response. A non-empty errMsg marks it failed.
func (b *EventBuilder) Result(id, name string, result any, errMsg string) *EventBuilder {
	b.parts = append(b.parts, core.FunctionResponsePart{
		FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: result, Error: errMsg},
	})
	return b
}

func (b *EventBuilder) State(key string, val any) *EventBuilder {
	if b.ev.Actions.StateDelta == nil {
		b.ev.Actions.StateDelta = map[string]any{}
	}
	b.ev.Actions.StateDelta[key] = val
	return b
}

func (b *EventBuilder) Artifact(name string, version int) *EventBuilder {
	if b.ev.Actions.ArtifactDelta == nil {
		b.ev.Actions.ArtifactDelta = map[string]int{}
	}
	b.ev.Actions.ArtifactDelta[name] = version
	return b
}

func (b *EventBuilder) Transfer(to string) *EventBuilder { b.ev.Actions.TransferToAgent = &to; return b }

// Error sets the error metadata the runner attaches to failed runs.
func (b *EventBuilder) Error(code, msg string) *EventBuilder {
	b.ev.ErrorCode = &code
	b.ev.ErrorMessage = &msg
	return b
}

// Build returns the event. Content stays nil when no part was added.
func (b *EventBuilder) Build() core.Event {
	ev := b.ev
	if len(b.parts) > 0 {
		ev.Content = &core.Content{Role: b.role, Parts: append([]core.Part(nil), b.parts...)}
	}
	return ev
}
