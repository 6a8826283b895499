// Package runner executes an agent tree for one conversational turn.
//
// A Runner loads (or creates) the session, records the user turn, picks the
// agent that should answer and runs it in the background. Every non-partial
// event the agent emits is persisted with its state delta before it is
// forwarded to the caller, so a session store always reflects what the
// caller has seen.
//
// Runs of the same session are serialized; Run returns ErrSessionBusy while
// a turn is in flight.
package runner
