package artifact

import (
	"fmt"
	"sort"
	"sync"
)

type entry struct {
	data    []byte
	version int
}

// InMemoryStore is an in-process ArtifactStore. Data is copied on save and
// retrieval so callers cannot mutate stored buffers. Each save of an existing
// id bumps its version.
//
// Layout: sessionID -> artifactID -> entry
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string]*entry
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string]*entry)}
}

// Save stores (or overwrites) the artifact bytes for the given session and id.
func (a *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	if artifactID == "" {
		return fmt.Errorf("artifact id is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.artifacts[sessionID]
	if !ok {
		m = make(map[string]*entry)
		a.artifacts[sessionID] = m
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	if e, ok := m[artifactID]; ok {
		e.data = cp
		e.version++
		return nil
	}

	m[artifactID] = &entry{data: cp, version: 1}

	return nil
}

// Get returns a copy of the stored artifact bytes or ErrArtifactNotFound.
func (a *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.artifacts[sessionID][artifactID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
	}

	cp := make([]byte, len(e.data))
	copy(cp, e.data)

	return cp, nil
}

// Version reports how many times artifactID was saved (0 when absent).
func (a *InMemoryStore) Version(sessionID, artifactID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if e, ok := a.artifacts[sessionID][artifactID]; ok {
		return e.version
	}

	return 0
}

// List returns the artifact ids stored for the session in lexical order.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m := a.artifacts[sessionID]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// Delete removes the artifact if present or returns ErrArtifactNotFound.
func (a *InMemoryStore) Delete(sessionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.artifacts[sessionID]
	if _, ok := m[artifactID]; !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
	}

	delete(m, artifactID)

	return nil
}
