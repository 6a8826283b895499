package travel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"

	"github.com/hupe1980/travelmesh/agent"
	"github.com/hupe1980/travelmesh/artifact"
	"github.com/hupe1980/travelmesh/config"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/model/anthropic"
	"github.com/hupe1980/travelmesh/model/gemini"
	"github.com/hupe1980/travelmesh/model/openai"
	"github.com/hupe1980/travelmesh/runner"
	"github.com/hupe1980/travelmesh/session"
	"github.com/hupe1980/travelmesh/session/sqlite"
)

// AppOptions overrides components NewApp would otherwise build from the
// configuration.
type AppOptions struct {
	Logger       logging.Logger
	Model        model.Model
	Sink         logging.Sink
	SessionStore core.SessionStore
	Spec         *TreeSpec
}

// App is a fully wired travel assistant.
type App struct {
	Config    config.Config
	Logger    logging.Logger
	Model     model.Model
	Sessions  core.SessionStore
	Artifacts core.ArtifactStore
	Sink      logging.Sink
	Assistant *agent.ModelAgent
	Runner    *runner.Runner

	closers []func() error
}

// NewApp builds the application described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, optFns ...func(o *AppOptions)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var opts AppOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	app := &App{Config: *cfg, Logger: opts.Logger}
	if app.Logger == nil {
		app.Logger = logging.NewSlogLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, false)
	}

	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	app.Model = opts.Model
	if app.Model == nil {
		llm, err := newModel(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		app.Model = llm
	}

	app.Sessions = opts.SessionStore
	if app.Sessions == nil {
		store, err := newSessionStore(cfg, app.Logger)
		if err != nil {
			return fail(err)
		}
		if c, ok := store.(interface{ Close() error }); ok {
			app.closers = append(app.closers, c.Close)
		}
		app.Sessions = store
	}

	// exports live next to the sessions when those are durable
	app.Artifacts = artifact.NewInMemoryStore()
	if db, ok := app.Sessions.(*sqlite.Store); ok {
		app.Artifacts = db.Artifacts()
	}

	app.Sink = opts.Sink
	if app.Sink == nil {
		if cfg.CloudLogging {
			sink, err := logging.NewCloudSink(ctx, cfg.GoogleCloudProject, func(o *logging.CloudSinkOptions) {
				o.Logger = app.Logger
			})
			if err != nil {
				return fail(err)
			}
			app.closers = append(app.closers, sink.Close)
			app.Sink = sink
		} else {
			app.Sink = logging.NewLoggerSink(app.Logger)
		}
	}

	assistant, err := NewAssistant(app.Model, func(o *AssistantOptions) {
		o.Spec = opts.Spec
		o.Sink = app.Sink
		o.EnableStreaming = cfg.Streaming
	})
	if err != nil {
		return fail(err)
	}
	app.Assistant = assistant

	app.Runner = runner.New(assistant, func(o *runner.Options) {
		o.SessionStore = app.Sessions
		o.ArtifactStore = app.Artifacts
		o.MaxModelCalls = cfg.MaxModelCalls
		o.Logger = app.Logger
	})

	info := app.Model.Info()
	app.Logger.Info("app.ready", "provider", info.Provider, "model", info.Name, "session_store", cfg.SessionStore, "cloud_logging", cfg.CloudLogging)

	return app, nil
}

func newModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		cc := genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.GeminiAPIKey}
		if cfg.UseVertexAI {
			cc = genai.ClientConfig{
				Backend:  genai.BackendVertexAI,
				Project:  cfg.GoogleCloudProject,
				Location: cfg.GoogleCloudLocation,
			}
		}
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.Model
			o.ClientConfig = cc
		})
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if ownModel(cfg.Model) {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		}), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if ownModel(cfg.Model) {
				o.Model = cfg.Model
			}
		}), nil
	case config.ProviderMock:
		return model.NewMockModel(cfg.Model, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// ownModel reports whether name is meant for a non-Gemini provider rather
// than the Gemini default left in place.
func ownModel(name string) bool {
	return name != "" && !strings.HasPrefix(name, "gemini")
}

func newSessionStore(cfg *config.Config, logger logging.Logger) (core.SessionStore, error) {
	switch cfg.SessionStore {
	case config.StoreSQLite:
		return sqlite.Open(cfg.SQLitePath, func(o *sqlite.Options) { o.Logger = logger })
	case config.StoreMemory:
		return session.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message text is empty")

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent"`
	Reply     string         `json:"reply"`
	Events    []core.Event   `json:"events"`
	State     map[string]any `json:"state"`
}

// NewSession creates an empty planning session.
func (a *App) NewSession() (string, error) {
	id := core.NewID()
	if _, err := a.Sessions.Create(id); err != nil {
		return "", err
	}
	return id, nil
}

// Send runs one user turn and waits for its completion. On a failed run the
// result still carries the events produced before the failure.
func (a *App) Send(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	events, runErr := a.Runner.RunSync(ctx, sessionID, core.NewTextContent(core.RoleUser, text))

	res := &TurnResult{SessionID: sessionID, Events: events}
	for i := len(events) - 1; i >= 0; i-- {
		if t := events[i].Text(); t != "" {
			res.Reply = t
			res.Agent = events[i].Author
			break
		}
	}

	if sess, err := a.Sessions.Get(sessionID); err == nil {
		res.State = sess.StateSnapshot()
	}

	if runErr != nil && len(events) == 0 {
		return nil, runErr
	}

	return res, runErr
}

// Export renders the trip recorded in a stored session.
func (a *App) Export(sessionID, format string) (string, []byte, error) {
	sess, err := a.Sessions.Get(sessionID)
	if err != nil {
		return "", nil, err
	}
	return ExportTrip(sess, format)
}

// Close flushes the log sink and closes the stores.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
