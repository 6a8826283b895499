// Package openai adapts the OpenAI Chat Completions API to model.Model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
)

// Options configure the adapter. GenerateConfig values of a request take
// precedence over Temperature and MaxCompletionTokens.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model talks to Chat Completions through the official client.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a model with a client configured from the environment
// (OPENAI_API_KEY).
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a model on an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Streaming requests emit text deltas as
// partial responses; tool calls only appear in the final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req, toMessages(req))

		var err error
		if req.Stream {
			err = m.stream(ctx, params, out)
		} else {
			err = m.complete(ctx, params, out)
		}
		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// toMessages converts contents in order. Tool results become one tool
// message per function response, right where the flow placed them.
func toMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleTool:
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
					msgs = append(msgs, openai.ToolMessage(model.FunctionResponseText(fr.FunctionResponse), fr.FunctionResponse.ID))
				}
			}
		case core.RoleAssistant:
			if calls := toolCalls(c); len(calls) > 0 {
				msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: calls},
				})
				continue
			}
			msgs = append(msgs, openai.AssistantMessage(c.Text()))
		default:
			if text := c.Text(); text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}

	return msgs
}

func toolCalls(c core.Content) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, fc := range c.FunctionCalls() {
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.Name,
				Arguments: fc.Arguments,
			},
		})
	}
	return calls
}

func (m *Model) buildParams(req model.Request, msgs []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	temperature := m.opts.Temperature
	if t := req.Config.Temperature; t != nil {
		temperature = *t
	}

	maxTokens := m.opts.MaxCompletionTokens
	if n := req.Config.MaxOutputTokens; n != nil {
		maxTokens = int64(*n)
	}

	params := openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}

	return params
}

func send(ctx context.Context, out chan<- model.Response, r model.Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- r:
		return nil
	}
}

// pendingCall collects the deltas of one streamed tool call.
type pendingCall struct{ id, name, args string }

// streamState accumulates a streamed completion until its finish reason.
type streamState struct {
	id    string
	text  strings.Builder
	calls map[int64]*pendingCall
}

func (s *streamState) addToolDelta(tc openai.ChatCompletionChunkChoiceDeltaToolCall) {
	pc, ok := s.calls[tc.Index]
	if !ok {
		pc = &pendingCall{}
		s.calls[tc.Index] = pc
	}
	if tc.ID != "" {
		pc.id = tc.ID
	}
	if tc.Function.Name != "" {
		pc.name = tc.Function.Name
	}
	pc.args += tc.Function.Arguments
}

func (s *streamState) final(finishReason string) model.Response {
	parts := make([]core.Part, 0, len(s.calls)+1)
	if s.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: s.text.String()})
	}

	idx := make([]int64, 0, len(s.calls))
	for i := range s.calls {
		idx = append(idx, i)
	}
	slices.Sort(idx)

	for _, i := range idx {
		pc := s.calls[i]
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: pc.id, Name: pc.name, Arguments: pc.args}})
	}

	return model.Response{
		ID:           s.id,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason,
	}
}

func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	st := &streamState{calls: map[int64]*pendingCall{}}
	for stream.Next() {
		chunk := stream.Current()
		if st.id == "" {
			st.id = chunk.ID
		}

		for _, ch := range chunk.Choices {
			if delta := ch.Delta.Content; delta != "" {
				st.text.WriteString(delta)
				if err := send(ctx, out, model.Response{
					ID:      st.id,
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, delta),
				}); err != nil {
					return err
				}
			}

			for _, tc := range ch.Delta.ToolCalls {
				st.addToolDelta(tc)
			}

			if ch.FinishReason != "" {
				if err := send(ctx, out, st.final(ch.FinishReason)); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}

	return nil
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("openai completion: no choices returned")
	}

	choice := resp.Choices[0]

	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	return send(ctx, out, model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	})
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai", SupportsTools: true}
}
