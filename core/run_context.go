package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/travelmesh/logging"
)

// stateBuffer holds the writes of one run. pending is attached to the next
// emitted event; view keeps every write of the run so reads stay consistent
// while the runner persists events asynchronously.
type stateBuffer struct {
	mu      sync.Mutex
	pending map[string]any
	view    map[string]any
}

func newStateBuffer() *stateBuffer {
	return &stateBuffer{pending: map[string]any{}, view: map[string]any{}}
}

// RunContext carries execution state & helpers for an agent run. It
// aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, Agent info)
//   - Input user Content
//   - The emission channel consumed by the runner
//   - Backing stores (session, artifact)
//   - A working Session snapshot plus the buffered state writes of the run
//
// State writes made via SetState are visible to later reads of the same run
// immediately and are attached to the next emitted event as its StateDelta.
// RunContext is safe for concurrent use by tool goroutines.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	Emit             chan<- Event
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	Limiter          *ModelLimiter
	Session          *Session

	buf *stateBuffer
	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty write buffer.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		Emit:          emit,
		Session:       sess,
		SessionStore:  sessionStore,
		ArtifactStore: artifactStore,
		Limiter:       NewModelLimiter(maxModelCalls),
		buf:           newStateBuffer(),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a value written during this run if present, else the
// session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.buf.mu.Lock()
	v, ok := rc.buf.view[k]
	rc.buf.mu.Unlock()
	if ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// StateOr returns the current value for k or def when absent.
func (rc *RunContext) StateOr(k string, def any) any {
	if v, ok := rc.GetState(k); ok {
		return v
	}
	return def
}

// SetState stages a state write.
func (rc *RunContext) SetState(k string, v any) {
	rc.buf.mu.Lock()
	defer rc.buf.mu.Unlock()
	rc.buf.pending[k] = v
	rc.buf.view[k] = v
}

// pendingDelta returns a copy of the writes not yet attached to an event.
func (rc *RunContext) pendingDelta() map[string]any {
	rc.buf.mu.Lock()
	defer rc.buf.mu.Unlock()
	return maps.Clone(rc.buf.pending)
}

// StateView returns the session state overlaid with the writes of this run.
func (rc *RunContext) StateView() map[string]any {
	out := map[string]any{}
	if rc.Session != nil {
		out = rc.Session.StateSnapshot()
	}
	rc.buf.mu.Lock()
	defer rc.buf.mu.Unlock()
	maps.Copy(out, rc.buf.view)
	return out
}

// WithAgent derives a context for another agent of the same run. The write
// buffer is shared so state written before a transfer stays visible.
func (rc *RunContext) WithAgent(info AgentInfo) *RunContext {
	c := *rc
	c.Agent = info
	return &c
}

// WithContext derives a context for the same run bound to ctx, e.g. one
// carrying a tool timeout. The write buffer is shared.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := *rc
	c.Context = ctx
	return &c
}

// EmitEvent moves pending writes onto ev and sends it.
// Non-partial events are also appended to the working Session snapshot so
// later model turns of the run see them before the runner persists them.
func (rc *RunContext) EmitEvent(ev Event) error {
	rc.buf.mu.Lock()
	if len(rc.buf.pending) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.buf.pending)
	}
	rc.buf.pending = map[string]any{}
	rc.buf.mu.Unlock()

	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	if !ev.IsPartial() && rc.Session != nil {
		rc.Session.AddEvent(ev)
	}

	return nil
}
