// Package sqlite provides a durable core.SessionStore backed by a local
// SQLite database (github.com/mattn/go-sqlite3).
//
// State is stored as a JSON object per session, so values read back are the
// generic JSON shapes (string, float64, []any, map[string]any) rather than
// the Go types that were written.
package sqlite

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Options configures a Store.
type Options struct {
	Logger logging.Logger
}

// Store is a SQLite backed SessionStore.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

var _ core.SessionStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single writer keeps read-modify-write deltas serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: opts.Logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		version := file[len("migrations/") : len(file)-len(".sql")]

		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		stmt, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", version, err)
		}

		if _, err := s.db.Exec(string(stmt)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", version, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", version, err)
		}

		s.logger.Info("session.sqlite.migrated", "version", version)
	}

	return nil
}

// Create inserts an empty session.
func (s *Store) Create(id string) (*core.Session, error) {
	sess := core.NewSession(id)
	now := formatTime(sess.Created)

	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO sessions (id, state, metadata, created_at, updated_at) VALUES (?, '{}', '{}', ?, ?)",
		id, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionExists, id)
	}

	return sess, nil
}

// Get loads a session with its state and full event history.
func (s *Store) Get(id string) (*core.Session, error) {
	var stateJSON, metaJSON, created, updated string

	err := s.db.QueryRow(
		"SELECT state, metadata, created_at, updated_at FROM sessions WHERE id = ?", id,
	).Scan(&stateJSON, &metaJSON, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess := core.NewSession(id)
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	sess.Created = parseTime(created)
	sess.Updated = parseTime(updated)

	rows, err := s.db.Query("SELECT payload FROM events WHERE session_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev, err := decodeEvent([]byte(payload))
		if err != nil {
			return nil, err
		}

		sess.Events = append(sess.Events, ev)
	}

	return sess, rows.Err()
}

// List returns all session ids in lexical order.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Delete removes a session and its events.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// AppendEvent stores ev at the end of the session history.
func (s *Store) AppendEvent(sessionID string, ev core.Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	return s.withTx(func(tx *sql.Tx) error {
		if err := touch(tx, sessionID); err != nil {
			return err
		}

		_, err := tx.Exec(
			"INSERT INTO events (session_id, event_id, author, payload, created_at) VALUES (?, ?, ?, ?, ?)",
			sessionID, ev.ID, ev.Author, string(payload), formatTime(ev.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		return nil
	})
}

// ApplyDelta merges delta into the stored state object.
func (s *Store) ApplyDelta(sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	return s.withTx(func(tx *sql.Tx) error {
		var stateJSON string
		err := tx.QueryRow("SELECT state FROM sessions WHERE id = ?", sessionID).Scan(&stateJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		state := map[string]any{}
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}

		maps.Copy(state, delta)

		b, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}

		if _, err := tx.Exec(
			"UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?",
			string(b), formatTime(time.Now()), sessionID,
		); err != nil {
			return fmt.Errorf("update state: %w", err)
		}

		return nil
	})
}

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func touch(tx *sql.Tx, sessionID string) error {
	res, err := tx.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
