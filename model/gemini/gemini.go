// Package gemini provides an implementation of model.Model backed by the
// Google Gen AI SDK. It talks to Vertex AI or the Gemini API depending on
// the client configuration.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
)

// DefaultModel is the model id used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the subset of *genai.Models used by the adapter.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Options configures the Gemini model adapter.
type Options struct {
	Model string

	// ClientConfig is passed to genai.NewClient by NewModel.
	ClientConfig genai.ClientConfig
}

// Model wraps the Gen AI Models service behind the generic model.Model interface.
type Model struct {
	models contentGenerator
	opts   Options
}

// NewModel creates a Gen AI client and wraps it. With an empty
// ClientConfig the SDK reads GOOGLE_API_KEY, GOOGLE_CLOUD_PROJECT,
// GOOGLE_CLOUD_LOCATION and GOOGLE_GENAI_USE_VERTEXAI from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	cc := opts.ClientConfig

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Model{models: client.Models, opts: opts}, nil
}

// NewModelFromClient wraps an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{models: client.Models, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, err := toGenaiContents(req.Contents)
		if err != nil {
			errCh <- err
			return
		}

		cfg := buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, contents, cfg, out, errCh)
			return
		}

		resp, err := m.models.GenerateContent(ctx, m.opts.Model, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		final, err := fromGenaiResponse(resp)
		if err != nil {
			errCh <- err
			return
		}

		send(ctx, out, final)
	}()

	return out, errCh
}

// handleStreaming forwards text deltas as partial responses and emits one
// aggregated final response once the stream ends.
func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var (
		text  strings.Builder
		calls []core.Part
		final model.Response
	)

	for chunk, err := range m.models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		resp, err := fromGenaiResponse(chunk)
		if err != nil {
			errCh <- err
			return
		}

		if resp.ID != "" {
			final.ID = resp.ID
		}
		if resp.FinishReason != "" {
			final.FinishReason = resp.FinishReason
		}
		if resp.Usage != nil {
			final.Usage = resp.Usage
		}
		if resp.ErrorMessage != "" {
			final.ErrorMessage = resp.ErrorMessage
		}

		for _, p := range resp.Content.Parts {
			switch part := p.(type) {
			case core.TextPart:
				text.WriteString(part.Text)
				if !send(ctx, out, model.Response{
					ID:      final.ID,
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, part.Text),
				}) {
					return
				}
			case core.FunctionCallPart:
				calls = append(calls, part)
			}
		}
	}

	parts := make([]core.Part, 0, len(calls)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	parts = append(parts, calls...)

	final.Content = core.Content{Role: core.RoleAssistant, Parts: parts}
	send(ctx, out, final)
}

func send(ctx context.Context, out chan<- model.Response, r model.Response) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- r:
		return true
	}
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}

func buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Instructions != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instructions}},
		}
	}

	if req.Config.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Config.Temperature))
	}

	if req.Config.MaxOutputTokens != nil {
		cfg.MaxOutputTokens = int32(*req.Config.MaxOutputTokens)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return cfg
}

// toGenaiContents maps conversation contents onto Gen AI roles. Tool results
// travel as user content; consecutive contents of the same role are merged
// so parallel function responses answer their calls in one turn.
func toGenaiContents(contents []core.Content) ([]*genai.Content, error) {
	var out []*genai.Content

	for _, c := range contents {
		role := string(genai.RoleUser)
		if c.Role == core.RoleAssistant {
			role = string(genai.RoleModel)
		}

		parts := make([]*genai.Part, 0, len(c.Parts))

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.DataPart:
				b, err := json.Marshal(part.Data)
				if err != nil {
					return nil, fmt.Errorf("encode data part: %w", err)
				}
				parts = append(parts, &genai.Part{Text: string(b)})
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &args); err != nil {
						return nil, fmt.Errorf("decode arguments of %s: %w", part.FunctionCall.Name, err)
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: responseMap(part.FunctionResponse),
				}})
			}
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			continue
		}

		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	return out, nil
}

func responseMap(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}

	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}

	// Round-trip structs so the SDK sees plain JSON values.
	b, err := json.Marshal(fr.Response)
	if err == nil {
		var m map[string]any
		if json.Unmarshal(b, &m) == nil && m != nil {
			return m
		}
	}

	return map[string]any{"result": fr.Response}
}

var errNoCandidates = errors.New("gemini returned no candidates")

// fromGenaiResponse converts one response (or stream chunk). A response
// without candidates is surfaced through ErrorMessage when the prompt was
// blocked and as an error otherwise.
func fromGenaiResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if resp == nil {
		return model.Response{}, errNoCandidates
	}

	out := model.Response{ID: resp.ResponseID}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
			out.ErrorMessage = fmt.Sprintf("prompt blocked: %s", pf.BlockReason)
			if pf.BlockReasonMessage != "" {
				out.ErrorMessage += ": " + pf.BlockReasonMessage
			}
			return out, nil
		}
		if out.Usage != nil {
			// Trailing usage-only stream chunk.
			return out, nil
		}
		return out, errNoCandidates
	}

	cand := resp.Candidates[0]
	out.FinishReason = strings.ToLower(string(cand.FinishReason))

	var parts []core.Part

	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			switch {
			case p.FunctionCall != nil:
				args, err := json.Marshal(p.FunctionCall.Args)
				if err != nil {
					return out, fmt.Errorf("encode arguments of %s: %w", p.FunctionCall.Name, err)
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        p.FunctionCall.ID,
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				}})
			case p.Text != "" && !p.Thought:
				parts = append(parts, core.TextPart{Text: p.Text})
			}
		}
	}

	if len(parts) == 0 && cand.FinishMessage != "" && cand.FinishReason != genai.FinishReasonStop {
		out.ErrorMessage = cand.FinishMessage
	}

	out.Content = core.Content{Role: core.RoleAssistant, Parts: parts}

	return out, nil
}
