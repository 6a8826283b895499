package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/travelmesh/artifact"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/runner"
	"github.com/hupe1980/travelmesh/tool"
	"github.com/hupe1980/travelmesh/travel"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageRequest is the body of POST /v1/sessions/:id/messages.
type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// EventView is the wire shape of a session event.
type EventView struct {
	ID            string    `json:"id"`
	InvocationID  string    `json:"invocation_id"`
	Author        string    `json:"author"`
	Timestamp     time.Time `json:"timestamp"`
	Text          string    `json:"text,omitempty"`
	FunctionCalls []string  `json:"function_calls,omitempty"`
	Responses     []string  `json:"function_responses,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// SessionResponse is the body of GET /v1/sessions/:id.
type SessionResponse struct {
	ID     string         `json:"id"`
	State  map[string]any `json:"state"`
	Events []EventView    `json:"events"`
}

// MessageResponse is the body of POST /v1/sessions/:id/messages.
type MessageResponse struct {
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent"`
	Reply     string         `json:"reply"`
	Events    []EventView    `json:"events"`
	State     map[string]any `json:"state"`
	Error     string         `json:"error,omitempty"`
}

func newEventView(ev core.Event) EventView {
	v := EventView{
		ID:           ev.ID,
		InvocationID: ev.InvocationID,
		Author:       ev.Author,
		Timestamp:    ev.Timestamp,
		Text:         ev.Text(),
	}
	for _, fc := range ev.GetFunctionCalls() {
		v.FunctionCalls = append(v.FunctionCalls, fc.Name)
	}
	for _, fr := range ev.GetFunctionResponses() {
		v.Responses = append(v.Responses, fr.Name)
	}
	if ev.ErrorCode != nil {
		v.ErrorCode = *ev.ErrorCode
	}
	if ev.ErrorMessage != nil {
		v.ErrorMessage = *ev.ErrorMessage
	}
	return v
}

func eventViews(events []core.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, newEventView(ev))
	}
	return out
}

func (s *Server) health(c *gin.Context) {
	info := s.app.Model.Info()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": info.Provider, "model": info.Name})
}

// createSession handles POST /v1/sessions.
func (s *Server) createSession(c *gin.Context) {
	id, err := s.app.NewSession()
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// getSession handles GET /v1/sessions/:id.
func (s *Server) getSession(c *gin.Context) {
	sess, err := s.app.Sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		ID:     sess.ID,
		State:  sess.StateSnapshot(),
		Events: eventViews(sess.GetEvents()),
	})
}

// getState handles GET /v1/sessions/:id/state.
func (s *Server) getState(c *gin.Context) {
	sess, err := s.app.Sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sess.StateSnapshot())
}

// postMessage handles POST /v1/sessions/:id/messages. The session is
// created on first use.
func (s *Server) postMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := s.app.Send(c.Request.Context(), c.Param("id"), req.Text)
	if res == nil {
		s.fail(c, err)
		return
	}

	body := MessageResponse{
		SessionID: res.SessionID,
		Agent:     res.Agent,
		Reply:     res.Reply,
		Events:    eventViews(res.Events),
		State:     res.State,
	}

	if err != nil {
		body.Error = err.Error()
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, body)
}

// export handles GET /v1/sessions/:id/export.
func (s *Server) export(c *gin.Context) {
	format := c.DefaultQuery("format", travel.FormatMarkdown)

	name, data, err := s.app.Export(c.Param("id"), format)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType(name), data)
}

// getArtifact handles GET /v1/sessions/:id/artifacts/:name.
func (s *Server) getArtifact(c *gin.Context) {
	name := c.Param("name")

	data, err := s.app.Artifacts.Get(c.Param("id"), name)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Data(http.StatusOK, contentType(name), data)
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".yaml"):
		return "application/yaml; charset=utf-8"
	case strings.HasSuffix(name, ".md"):
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// fail maps err onto a status code and writes the error body.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var ve *tool.ValidationError
	switch {
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, artifact.ErrArtifactNotFound):
		status = http.StatusNotFound
	case errors.Is(err, runner.ErrSessionBusy):
		status = http.StatusConflict
	case errors.As(err, &ve), errors.Is(err, travel.ErrEmptyMessage):
		status = http.StatusBadRequest
	case err == nil:
		err = errors.New("unknown error")
	}

	c.JSON(status, ErrorResponse{Error: err.Error()})
}
