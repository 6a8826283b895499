package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/travelmesh/core"
)

const (
	partText             = "text"
	partData             = "data"
	partFunctionCall     = "function_call"
	partFunctionResponse = "function_response"
)

type partRecord struct {
	Kind             string                 `json:"kind"`
	Text             string                 `json:"text,omitempty"`
	Data             map[string]any         `json:"data,omitempty"`
	FunctionCall     *core.FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *core.FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any         `json:"metadata,omitempty"`
}

type contentRecord struct {
	Role  string       `json:"role,omitempty"`
	Parts []partRecord `json:"parts"`
}

// eventRecord shadows core.Event.Content with a tagged representation of
// the Part sum type.
type eventRecord struct {
	core.Event
	Content *contentRecord `json:"content,omitempty"`
}

func encodeEvent(ev core.Event) ([]byte, error) {
	rec := eventRecord{Event: ev}
	rec.Event.Content = nil

	if ev.Content != nil {
		cr := &contentRecord{Role: ev.Content.Role, Parts: make([]partRecord, 0, len(ev.Content.Parts))}
		for _, p := range ev.Content.Parts {
			switch v := p.(type) {
			case core.TextPart:
				cr.Parts = append(cr.Parts, partRecord{Kind: partText, Text: v.Text, Metadata: v.Metadata})
			case core.DataPart:
				cr.Parts = append(cr.Parts, partRecord{Kind: partData, Data: v.Data, Metadata: v.Metadata})
			case core.FunctionCallPart:
				fc := v.FunctionCall
				cr.Parts = append(cr.Parts, partRecord{Kind: partFunctionCall, FunctionCall: &fc, Metadata: v.Metadata})
			case core.FunctionResponsePart:
				fr := v.FunctionResponse
				cr.Parts = append(cr.Parts, partRecord{Kind: partFunctionResponse, FunctionResponse: &fr, Metadata: v.Metadata})
			default:
				return nil, fmt.Errorf("encode event %s: unsupported part %T", ev.ID, p)
			}
		}
		rec.Content = cr
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	return b, nil
}

func decodeEvent(b []byte) (core.Event, error) {
	var rec eventRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return core.Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev := rec.Event
	if rec.Content == nil {
		return ev, nil
	}

	c := &core.Content{Role: rec.Content.Role, Parts: make([]core.Part, 0, len(rec.Content.Parts))}
	for _, p := range rec.Content.Parts {
		switch p.Kind {
		case partText:
			c.Parts = append(c.Parts, core.TextPart{Text: p.Text, Metadata: p.Metadata})
		case partData:
			c.Parts = append(c.Parts, core.DataPart{Data: p.Data, Metadata: p.Metadata})
		case partFunctionCall:
			if p.FunctionCall != nil {
				c.Parts = append(c.Parts, core.FunctionCallPart{FunctionCall: *p.FunctionCall, Metadata: p.Metadata})
			}
		case partFunctionResponse:
			if p.FunctionResponse != nil {
				c.Parts = append(c.Parts, core.FunctionResponsePart{FunctionResponse: *p.FunctionResponse, Metadata: p.Metadata})
			}
		default:
			return core.Event{}, fmt.Errorf("decode event %s: unknown part kind %q", ev.ID, p.Kind)
		}
	}
	ev.Content = c

	return ev, nil
}
