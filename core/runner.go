package core

import "context"

// Runner defines the orchestration contract for executing an agent tree
// within a conversational session.
//
// Semantics & Guarantees:
//   - Event Ordering: events of one run are delivered in production order.
//   - Channel Lifecycle: the events channel is closed after the run completes
//     (success, error, or cancellation). The error channel carries at most
//     one terminal error then closes.
//   - Cancellation: context cancellation or Cancel(runID) stops the run.
//   - Partial Events: streaming fragments are forwarded but never persisted.
type Runner interface {
	// Run starts an asynchronous run bound to sessionID with userContent as
	// the new user turn. The immediate error covers startup failures.
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Cancel requests termination of an in-flight run. Cancelling an unknown
	// or finished run returns an error.
	Cancel(runID string) error
}
