package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/travelmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// GenerateConfig carries per-agent sampling settings. Nil fields fall back
// to the provider defaults.
type GenerateConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions string           `json:"instructions"` // System instruction for the model
	Contents     []core.Content   `json:"contents"`     // Conversation converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	Config       GenerateConfig   `json:"config"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
//
// ErrorMessage is set when the provider answered without usable content,
// e.g. a blocked prompt. Content is empty in that case.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "gemini", "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows & agents to drive generation.
//
// Generate streams zero or more partial responses followed by one final
// response. Both channels are closed when generation ends; at most one
// error is delivered.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// FunctionResponseText renders a tool result as the text payload providers
// without structured tool results expect.
func FunctionResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		b, _ := json.Marshal(map[string]any{"error": fr.Error})
		return string(b)
	}

	if s, ok := fr.Response.(string); ok {
		return s
	}

	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}

	return string(b)
}

// MockTurn is one scripted model answer. Err takes precedence over Response.
type MockTurn struct {
	Response Response
	Err      error
}

// MockModel is an in-memory Model for tests and offline runs. Scripted turns
// are consumed in order; once exhausted it answers with canned or echo text.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	script    []MockTurn
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted turns.
func (m *MockModel) Enqueue(turns ...MockTurn) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, turns...)
	return m
}

// EnqueueText scripts a final text answer.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(MockTurn{Response: Response{
		Content:      core.NewTextContent(core.RoleAssistant, text),
		FinishReason: "stop",
	}})
}

// EnqueueFunctionCall scripts a single function call with JSON encoded args.
func (m *MockModel) EnqueueFunctionCall(name string, args map[string]any) *MockModel {
	b, _ := json.Marshal(args)
	return m.Enqueue(MockTurn{Response: Response{
		Content: core.Content{
			Role: core.RoleAssistant,
			Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				Name:      name,
				Arguments: string(b),
			}}},
		},
		FinishReason: "tool_calls",
	}})
}

// EnqueueError scripts a failed call.
func (m *MockModel) EnqueueError(err error) *MockModel {
	return m.Enqueue(MockTurn{Err: err})
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request{}, m.requests...)
}

// Pending returns the number of scripted turns not yet consumed.
func (m *MockModel) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}

func (m *MockModel) next(req Request) (MockTurn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		return MockTurn{}, false
	}

	turn := m.script[0]
	m.script = m.script[1:]

	return turn, true
}

func (m *MockModel) echo(req Request) Response {
	if len(req.Contents) == 0 {
		return Response{}
	}

	inputText := req.Contents[len(req.Contents)-1].Text()

	m.mu.Lock()
	full := m.responses[inputText]
	m.mu.Unlock()

	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}

	return Response{
		Content:      core.NewTextContent(core.RoleAssistant, full),
		FinishReason: "stop",
	}
}

// Generate implements Model. With req.Stream set, text is additionally
// emitted word by word as partial responses before the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn, ok := m.next(req)
		if !ok {
			if len(req.Contents) == 0 {
				errCh <- fmt.Errorf("no contents provided")
				return
			}
			turn = MockTurn{Response: m.echo(req)}
		}

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		final := turn.Response
		if final.ID == "" {
			final.ID = core.NewID()
		}

		if req.Stream {
			for _, chunk := range strings.SplitAfter(final.Content.Text(), " ") {
				if chunk == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					ID:      final.ID,
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, chunk),
				}:
				}
			}
		}

		final.Partial = false
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- final:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
