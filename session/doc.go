// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// agents and flows never depend on a concrete backend.
//
// InMemoryStore keeps sessions for the lifetime of the process. The sqlite
// sub-package persists them to a local database file.
package session
