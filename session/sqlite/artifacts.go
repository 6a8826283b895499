package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/travelmesh/artifact"
	"github.com/hupe1980/travelmesh/core"
)

// ArtifactStore keeps artifacts in the same database as the sessions they
// belong to, so exports survive a restart. Deleting a session drops its
// artifacts.
type ArtifactStore struct {
	db *sql.DB
}

var _ core.ArtifactStore = (*ArtifactStore)(nil)

// Artifacts returns the artifact store sharing s's database.
func (s *Store) Artifacts() *ArtifactStore { return &ArtifactStore{db: s.db} }

// Save stores data under name, bumping the version of an existing artifact.
func (a *ArtifactStore) Save(sessionID, name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("artifact id is required")
	}
	if data == nil {
		data = []byte{}
	}

	_, err := a.db.Exec(`
		INSERT INTO artifacts (session_id, name, data, version, updated_at) VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (session_id, name) DO UPDATE SET
			data = excluded.data,
			version = artifacts.version + 1,
			updated_at = excluded.updated_at
	`, sessionID, name, data, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save artifact %s: %w", name, err)
	}

	return nil
}

// Get returns the stored bytes or artifact.ErrArtifactNotFound.
func (a *ArtifactStore) Get(sessionID, name string) ([]byte, error) {
	var data []byte

	err := a.db.QueryRow("SELECT data FROM artifacts WHERE session_id = ? AND name = ?", sessionID, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", artifact.ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", name, err)
	}

	return data, nil
}

// Version reports how many times name was saved (0 when absent).
func (a *ArtifactStore) Version(sessionID, name string) int {
	var v int
	if err := a.db.QueryRow("SELECT version FROM artifacts WHERE session_id = ? AND name = ?", sessionID, name).Scan(&v); err != nil {
		return 0
	}
	return v
}

// List returns the artifact names of the session in lexical order.
func (a *ArtifactStore) List(sessionID string) ([]string, error) {
	rows, err := a.db.Query("SELECT name FROM artifacts WHERE session_id = ? ORDER BY name", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// Delete removes the artifact or returns artifact.ErrArtifactNotFound.
func (a *ArtifactStore) Delete(sessionID, name string) error {
	res, err := a.db.Exec("DELETE FROM artifacts WHERE session_id = ? AND name = ?", sessionID, name)
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", artifact.ErrArtifactNotFound, name)
	}
	return nil
}
