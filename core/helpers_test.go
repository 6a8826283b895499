package core

import (
	"context"
	"sort"

	"github.com/hupe1980/travelmesh/logging"
)

type mockSessionStore struct {
	sessions map[string]*Session
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*Session{}}
}

func (m *mockSessionStore) Create(id string) (*Session, error) {
	if _, ok := m.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	s := NewSession(id)
	m.sessions[id] = s
	return s.Clone(), nil
}

func (m *mockSessionStore) Get(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *mockSessionStore) List() ([]string, error) {
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockSessionStore) Delete(id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionStore) AppendEvent(id string, ev Event) error {
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.AddEvent(ev)
	return nil
}

func (m *mockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.ApplyStateDelta(delta)
	return nil
}

type mockArtifactStore struct{ data map[string]map[string][]byte }

func (a *mockArtifactStore) Save(sid, aid string, b []byte) error {
	if a.data == nil {
		a.data = map[string]map[string][]byte{}
	}
	if _, ok := a.data[sid]; !ok {
		a.data[sid] = map[string][]byte{}
	}
	a.data[sid][aid] = append([]byte{}, b...)
	return nil
}

func (a *mockArtifactStore) Get(sid, aid string) ([]byte, error) {
	return a.data[sid][aid], nil
}

func (a *mockArtifactStore) List(sid string) ([]string, error) {
	res := []string{}
	for k := range a.data[sid] {
		res = append(res, k)
	}
	sort.Strings(res)
	return res, nil
}

func (a *mockArtifactStore) Delete(sid, aid string) error {
	delete(a.data[sid], aid)
	return nil
}

func newRunContextForTest() (*RunContext, chan Event) {
	store := newMockSessionStore()
	sess, _ := store.Create("sess-x")
	emit := make(chan Event, 10)
	rc := NewRunContext(
		context.Background(), "sess-x", "run-x", AgentInfo{Name: "Agent1", Type: "test"},
		NewTextContent(RoleUser, "hola"), 0,
		emit, sess, store, &mockArtifactStore{}, logging.NoOpLogger{},
	)
	return rc, emit
}
