package core

import (
	"context"

	"github.com/hupe1980/travelmesh/logging"
)

// CallbackContext is the read-only view handed to model callbacks. It cannot
// write state; observers must not alter the conversation.
type CallbackContext struct {
	runCtx *RunContext
}

// NewCallbackContext wraps runCtx for callbacks.
func NewCallbackContext(runCtx *RunContext) *CallbackContext {
	return &CallbackContext{runCtx: runCtx}
}

// Context returns the run context.Context (background when unset).
func (cc *CallbackContext) Context() context.Context {
	if cc == nil || cc.runCtx == nil || cc.runCtx.Context == nil {
		return context.Background()
	}
	return cc.runCtx.Context
}

// AgentName returns the agent about to call (or that just called) the model.
func (cc *CallbackContext) AgentName() string {
	if cc == nil || cc.runCtx == nil {
		return ""
	}
	return cc.runCtx.Agent.Name
}

// SessionID returns the session identifier.
func (cc *CallbackContext) SessionID() string {
	if cc == nil || cc.runCtx == nil {
		return ""
	}
	return cc.runCtx.SessionID
}

// RunID returns the run identifier.
func (cc *CallbackContext) RunID() string {
	if cc == nil || cc.runCtx == nil {
		return ""
	}
	return cc.runCtx.RunID
}

// StateOr returns the value stored under k or def when absent.
func (cc *CallbackContext) StateOr(k string, def any) any {
	if cc == nil || cc.runCtx == nil {
		return def
	}
	return cc.runCtx.StateOr(k, def)
}

// Logger returns the run logger.
func (cc *CallbackContext) Logger() logging.Logger {
	if cc == nil || cc.runCtx == nil {
		return logging.NoOpLogger{}
	}
	return cc.runCtx.Logger()
}
