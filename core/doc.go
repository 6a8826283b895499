// Package core provides the foundational domain types, interfaces and execution
// contexts used by travelmesh. It defines the core abstractions for:
//
//   - Agents (units of orchestrated work that call a model and tools)
//   - Sessions (per-conversation key/value state plus event history)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext / CallbackContext (scoped execution surfaces)
//   - Pluggable stores for session state and artifacts
//
// Every conversation owns exactly one Session. State is never shared between
// sessions and there are no package level containers; callers construct the
// stores they need and pass them down explicitly.
package core
