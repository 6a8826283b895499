package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/config"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/travel"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, llm model.Model) (*Server, *travel.App) {
	t.Helper()

	cfg := config.Default()
	cfg.Provider = config.ProviderMock

	app, err := travel.NewApp(context.Background(), &cfg, func(o *travel.AppOptions) {
		o.Logger = logging.NoOpLogger{}
		o.Model = llm
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return New(app), app
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, model.NewMockModel("gemini-2.5-flash", "mock"))

	w := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "gemini-2.5-flash", body["model"])
}

func TestConversationOverHTTP(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").
		EnqueueFunctionCall("transfer_to_agent", map[string]any{"agent_name": "selector_paises"}).
		EnqueueFunctionCall(travel.ToolGuardarPais, map[string]any{"pais": "Perú"}).
		EnqueueText("Perú es una gran elección.")
	srv, _ := newTestServer(t, llm)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]string](t, w)["session_id"]
	require.NotEmpty(t, id)

	w = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/messages", `{"text":"Quiero ir a Perú"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	msg := decode[MessageResponse](t, w)
	assert.Equal(t, "selector_paises", msg.Agent)
	assert.Equal(t, "Perú es una gran elección.", msg.Reply)
	assert.Equal(t, "Perú", msg.State[travel.KeyPais])
	require.Len(t, msg.Events, 5)
	assert.Equal(t, []string{"transfer_to_agent"}, msg.Events[0].FunctionCalls)
	assert.Equal(t, []string{travel.ToolGuardarPais}, msg.Events[3].Responses)

	w = do(t, h, http.MethodGet, "/v1/sessions/"+id+"/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Perú", decode[map[string]any](t, w)[travel.KeyPais])

	w = do(t, h, http.MethodGet, "/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode[SessionResponse](t, w)
	assert.Equal(t, id, sess.ID)
	require.Len(t, sess.Events, 6)
	assert.Equal(t, "user", sess.Events[0].Author)
	assert.Equal(t, "Quiero ir a Perú", sess.Events[0].Text)

	w = do(t, h, http.MethodGet, "/v1/sessions/"+id+"/export?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="viaje.yaml"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "pais: Perú")

	w = do(t, h, http.MethodGet, "/v1/sessions/"+id+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Resumen del viaje")
}

func TestErrorMapping(t *testing.T) {
	srv, app := newTestServer(t, model.NewMockModel("mock", "mock"))
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown session", http.MethodGet, "/v1/sessions/nope", "", http.StatusNotFound},
		{"unknown session state", http.MethodGet, "/v1/sessions/nope/state", "", http.StatusNotFound},
		{"unknown session export", http.MethodGet, "/v1/sessions/nope/export", "", http.StatusNotFound},
		{"missing text", http.MethodPost, "/v1/sessions/s1/messages", `{}`, http.StatusBadRequest},
		{"blank text", http.MethodPost, "/v1/sessions/s1/messages", `{"text":"  "}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/v1/sessions/s1/messages", `{`, http.StatusBadRequest},
		{"unknown artifact", http.MethodGet, "/v1/sessions/s1/artifacts/viaje.md", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, w).Error)
		})
	}

	id, err := app.NewSession()
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/v1/sessions/"+id+"/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// gatedModel holds every call until release is closed, then answers from
// the wrapped MockModel.
type gatedModel struct {
	*model.MockModel
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (m *gatedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.once.Do(func() { close(m.started) })
	select {
	case <-m.release:
	case <-ctx.Done():
	}
	return m.MockModel.Generate(ctx, req)
}

func TestConcurrentMessageConflicts(t *testing.T) {
	llm := &gatedModel{
		MockModel: model.NewMockModel("mock", "mock").EnqueueText("¡Hola!"),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	srv, _ := newTestServer(t, llm)
	h := srv.Handler()

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"Hola"}`)
	}()

	select {
	case <-llm.started:
	case <-time.After(2 * time.Second):
		t.Fatal("model was not called")
	}

	w := do(t, h, http.MethodPost, "/v1/sessions/s1/messages", `{"text":"otra vez"}`)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[ErrorResponse](t, w).Error)

	close(llm.release)

	select {
	case w = <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first turn did not finish")
	}
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "¡Hola!", decode[MessageResponse](t, w).Reply)
}

func TestAgentFailureReturnsEvents(t *testing.T) {
	llm := model.NewMockModel("mock", "mock").EnqueueError(assert.AnError)
	srv, _ := newTestServer(t, llm)

	w := do(t, srv.Handler(), http.MethodPost, "/v1/sessions/s1/messages", `{"text":"Hola"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	msg := decode[MessageResponse](t, w)
	assert.NotEmpty(t, msg.Error)
	require.NotEmpty(t, msg.Events)
	assert.Equal(t, "AGENT_ERROR", msg.Events[len(msg.Events)-1].ErrorCode)
}

func TestArtifactDownload(t *testing.T) {
	srv, app := newTestServer(t, model.NewMockModel("mock", "mock"))
	require.NoError(t, app.Artifacts.Save("s1", "viaje.md", []byte("# Resumen del viaje\n")))

	w := do(t, srv.Handler(), http.MethodGet, "/v1/sessions/s1/artifacts/viaje.md", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "# Resumen del viaje\n", w.Body.String())
}

func TestCORS(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = config.ProviderMock

	app, err := travel.NewApp(context.Background(), &cfg, func(o *travel.AppOptions) {
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	srv := New(app, func(o *Options) { o.AllowedOrigins = []string{"https://viajes.example"} })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://viajes.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://viajes.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://otro.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
