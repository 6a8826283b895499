package travel

import (
	"fmt"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
)

// ResponseContent is what a model response carried, decided once at the
// model boundary. It is one of TextContent, ToolInvocation, ErrorMessage or
// Empty.
type ResponseContent interface {
	isResponseContent()
}

// TextContent is a response whose first part is non-empty text.
type TextContent struct{ Text string }

// ToolInvocation is a response whose first part is a function call.
type ToolInvocation struct{ Name string }

// ErrorMessage is a failed model call or a response carrying only an error.
type ErrorMessage struct{ Message string }

// Empty is a response with nothing to log. HadParts reports whether it had
// parts none of which were recognizable.
type Empty struct{ HadParts bool }

func (TextContent) isResponseContent()    {}
func (ToolInvocation) isResponseContent() {}
func (ErrorMessage) isResponseContent()   {}
func (Empty) isResponseContent()          {}

// ClassifyResponse maps the outcome of a model call onto ResponseContent.
// A transport error wins; otherwise the first part decides; otherwise the
// response error message; otherwise Empty.
func ClassifyResponse(resp *model.Response, err error) ResponseContent {
	if err != nil {
		return ErrorMessage{Message: err.Error()}
	}
	if resp == nil {
		return Empty{}
	}

	if parts := resp.Content.Parts; len(parts) > 0 {
		switch p := parts[0].(type) {
		case core.TextPart:
			if p.Text != "" {
				return TextContent{Text: p.Text}
			}
		case core.FunctionCallPart:
			return ToolInvocation{Name: p.FunctionCall.Name}
		}
		return Empty{HadParts: true}
	}

	if resp.ErrorMessage != "" {
		return ErrorMessage{Message: resp.ErrorMessage}
	}

	return Empty{}
}

// ModelLogger forwards the user queries and model answers of the agents it
// is attached to into a sink. It holds no per-session state; the session
// comes from the callback context.
type ModelLogger struct {
	sink logging.Sink
}

// NewModelLogger creates a logger writing to sink.
func NewModelLogger(sink logging.Sink) *ModelLogger {
	return &ModelLogger{sink: sink}
}

// BeforeModel logs each text part of the latest user turn. It never
// overrides the model call.
func (l *ModelLogger) BeforeModel(cbCtx *core.CallbackContext, req *model.Request) (_ *model.Response, _ error) {
	defer l.recoverPanic(cbCtx, "before")

	if l == nil || l.sink == nil || req == nil || len(req.Contents) == 0 {
		return nil, nil
	}

	last := req.Contents[len(req.Contents)-1]
	if last.Role != core.RoleUser {
		return nil, nil
	}

	agent := cbCtx.AgentName()
	for _, part := range last.Parts {
		if p, ok := part.(core.TextPart); ok && p.Text != "" {
			l.sink.Log(cbCtx.Context(), logging.SeverityInfo, fmt.Sprintf("[Callback] Consulta al agente %s: %s", agent, p.Text))
		}
	}

	return nil, nil
}

// AfterModel logs one entry describing the model outcome. It never replaces
// the response.
func (l *ModelLogger) AfterModel(cbCtx *core.CallbackContext, resp *model.Response, err error) (_ *model.Response, _ error) {
	defer l.recoverPanic(cbCtx, "after")

	if l == nil || l.sink == nil || (resp == nil && err == nil) {
		return nil, nil
	}

	agent := cbCtx.AgentName()
	severity := logging.SeverityInfo
	var msg string

	switch c := ClassifyResponse(resp, err).(type) {
	case TextContent:
		msg = fmt.Sprintf("[Callback] Respuesta del agente %s: %s", agent, c.Text)
	case ToolInvocation:
		msg = fmt.Sprintf("[Callback] Llamada a la funcion del agente %s: %s", agent, c.Name)
	case ErrorMessage:
		severity = logging.SeverityError
		msg = fmt.Sprintf("[Callback] Error del agente %s: %s", agent, c.Message)
	case Empty:
		if c.HadParts {
			msg = fmt.Sprintf("[Callback] Respuesta del agente %s sin contenido reconocible.", agent)
		} else {
			msg = fmt.Sprintf("[Callback] Respuesta del agente %s sin contenido.", agent)
		}
	}

	l.sink.Log(cbCtx.Context(), severity, msg)

	return nil, nil
}

// recoverPanic keeps a misbehaving sink from breaking the conversation.
func (l *ModelLogger) recoverPanic(cbCtx *core.CallbackContext, hook string) {
	if r := recover(); r != nil {
		cbCtx.Logger().Error("travel.callback.panic", "hook", hook, "agent", cbCtx.AgentName(), "panic", fmt.Sprint(r))
	}
}
