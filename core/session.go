package core

import (
	"errors"
	"maps"
	"sync"
	"time"
)

var (
	// ErrSessionNotFound is returned by stores when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by Create when the id is already taken.
	ErrSessionExists = errors.New("session already exists")
)

// Session is the state container of one conversation: mutable key/value
// state plus an ordered event history. It is safe for concurrent access.
//
// Contract:
//   - Absent keys are never an error; StateOr returns the caller default
//   - Keys are overwritten, never deleted
//   - GetEvents returns a copy; callers cannot mutate history
//   - GetConversationHistory filters events to user/assistant/tool roles and
//     excludes partial streaming fragments
type Session struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// StateOr returns the stored value for key or def when the key is absent.
func (s *Session) StateOr(key string, def any) any {
	if v, ok := s.GetState(key); ok {
		return v
	}
	return def
}

// SetState overwrites key unconditionally.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now().UTC()
}

// StateSnapshot returns a shallow copy of the state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.State)
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now().UTC()
}

// GetEvents returns a copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns filtered events suitable for providing
// conversational context to models (excludes partials and non-conversational roles).
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil {
			continue
		}
		switch ev.Content.Role {
		case RoleUser, RoleAssistant, RoleTool:
		default:
			continue
		}
		if ev.IsPartial() {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a copy of the session safe for independent mutation of its
// maps and event slice. State values themselves are shared.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:       s.ID,
		State:    maps.Clone(s.State),
		Events:   make([]Event, len(s.Events)),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: maps.Clone(s.Metadata),
	}
	if clone.State == nil {
		clone.State = map[string]any{}
	}
	if clone.Metadata == nil {
		clone.Metadata = map[string]string{}
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore persists sessions and their evolving state / event history.
// Get returns an independent snapshot; mutations go through AppendEvent and
// ApplyDelta.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	List() ([]string, error)
	Delete(id string) error
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
}
