package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/travelmesh/artifact"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/session"
)

// ErrorCodeAgent marks the event emitted when an agent run fails.
const ErrorCodeAgent = "AGENT_ERROR"

// ErrSessionBusy is returned by Run when the session already has a run in
// flight. Runs of one session are serialized so state writes never
// interleave.
var ErrSessionBusy = errors.New("session has a run in progress")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run.
	MaxModelCalls int
	// SessionStore persists sessions, events and state.
	SessionStore core.SessionStore
	// ArtifactStore holds files produced by tools.
	ArtifactStore core.ArtifactStore
	// Logger receives runner.* and the logs of agents, flows and tools.
	Logger logging.Logger
}

// Runner coordinates agent execution: resolves the agent to run, creates
// run contexts, streams events, applies state deltas, and persists
// history. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	logger        logging.Logger

	mu             sync.Mutex
	activeRuns     map[string]context.CancelFunc
	activeSessions map[string]string
}

// New constructs a Runner for the tree rooted at agent.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
		activeSessions:  make(map[string]string),
	}
}

// SessionStore returns the store the runner persists to.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// ArtifactStore returns the store tools save artifacts to.
func (r *Runner) ArtifactStore() core.ArtifactStore { return r.artifactStore }

// Run starts an asynchronous run. The session is created when it does not
// exist yet. Events are delivered in order on the returned channel, which
// is closed when the run ends; the error channel carries at most one
// terminal error.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	if sessionID == "" {
		return "", nil, nil, fmt.Errorf("session id is required")
	}
	if len(userContent.Parts) == 0 {
		return "", nil, nil, fmt.Errorf("user content is empty")
	}
	if userContent.Role == "" {
		userContent.Role = core.RoleUser
	}

	runID := core.NewID()

	if err := r.acquire(sessionID, runID); err != nil {
		return "", nil, nil, err
	}

	sess, err := r.loadOrCreate(sessionID)
	if err != nil {
		r.release(sessionID, runID)
		return "", nil, nil, err
	}

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		r.release(sessionID, runID)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}
	sess.AddEvent(userEvent)

	active := r.activeAgent(sess)

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.AgentInfo{Name: active.Name(), Type: "agent"},
		userContent,
		r.maxModelCalls,
		agentEmit,
		sess,
		r.sessionStore,
		r.artifactStore,
		r.logger,
	)

	r.logger.Info("runner.run.start", "session_id", sessionID, "run_id", runID, "agent", active.Name())

	var once sync.Once
	report := func(err error) {
		once.Do(func() { errorsCh <- err })
	}

	go func() {
		defer close(agentEmit)

		if err := active.Run(runCtx); err != nil {
			r.logger.Error("runner.run.error", "session_id", sessionID, "run_id", runID, "error", err.Error())

			if ctx.Err() == nil {
				ev := core.NewErrorEvent(runID, runCtx.Agent.Name, ErrorCodeAgent, err.Error())
				_ = runCtx.EmitEvent(ev)
			}

			report(fmt.Errorf("agent execution failed: %w", err))
		}
	}()

	go func() {
		defer func() {
			cancel()
			r.release(sessionID, runID)
			close(eventsCh)
			close(errorsCh)
			r.logger.Info("runner.run.complete", "session_id", sessionID, "run_id", runID)
		}()

		r.processEvents(ctx, sessionID, agentEmit, eventsCh, func(err error) {
			report(err)
			cancel()
		})
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync runs one turn and collects its events. Partial events are
// skipped. The returned error is the run's terminal error, if any.
func (r *Runner) RunSync(ctx context.Context, sessionID string, userContent core.Content) ([]core.Event, error) {
	_, events, errs, err := r.Run(ctx, sessionID, userContent)
	if err != nil {
		return nil, err
	}

	var out []core.Event
	for ev := range events {
		if !ev.IsPartial() {
			out = append(out, ev)
		}
	}

	return out, <-errs
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

func (r *Runner) acquire(sessionID, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.activeSessions[sessionID]; busy {
		return fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}
	r.activeSessions[sessionID] = runID

	return nil
}

func (r *Runner) release(sessionID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeSessions[sessionID] == runID {
		delete(r.activeSessions, sessionID)
	}
	delete(r.activeRuns, runID)
}

func (r *Runner) loadOrCreate(sessionID string) (*core.Session, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess, err = r.sessionStore.Create(sessionID)
	if errors.Is(err, core.ErrSessionExists) {
		sess, err = r.sessionStore.Get(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Info("runner.session.created", "session_id", sessionID)

	return sess, nil
}

// activeAgent returns the agent that authored the latest agent event of the
// session so a conversation continues where the last transfer left it,
// falling back to the root.
func (r *Runner) activeAgent(sess *core.Session) core.Agent {
	events := sess.GetEvents()
	for i := len(events) - 1; i >= 0; i-- {
		author := events[i].Author
		if author == "" || author == core.RoleUser {
			continue
		}
		if a := r.agent.FindAgent(author); a != nil {
			return a
		}
	}

	return r.agent
}

// processEvents persists and forwards agent events until the agent closes
// its channel. After a failure or cancellation events are drained without
// being forwarded so the agent goroutine never blocks.
func (r *Runner) processEvents(
	ctx context.Context,
	sessionID string,
	agentEmit <-chan core.Event,
	eventsCh chan<- core.Event,
	fail func(error),
) {
	failed := false

	for ev := range agentEmit {
		if failed || ctx.Err() != nil {
			continue
		}

		if !ev.IsPartial() {
			if err := r.applyEventActions(sessionID, ev); err != nil {
				failed = true
				fail(fmt.Errorf("failed to process event actions: %w", err))
				continue
			}

			if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
				failed = true
				fail(fmt.Errorf("failed to append event to session: %w", err))
				continue
			}
		}

		select {
		case <-ctx.Done():
		case eventsCh <- ev:
			r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID, "author", ev.Author)
		}
	}
}

func (r *Runner) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	for id, size := range ev.Actions.ArtifactDelta {
		r.logger.Debug("runner.event.artifact", "artifact", id, "size", size, "session_id", sessionID)
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		r.logger.Debug("runner.event.transfer_to_agent", "target", *ev.Actions.TransferToAgent, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate", "session_id", sessionID)
	}

	return nil
}

var _ core.Runner = (*Runner)(nil)
