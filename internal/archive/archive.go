// Package archive persists terminal sessions and jobs to SQLite.
//
// The in-memory managers stay authoritative while a record is live; the
// archive only receives terminal state. That keeps the write path off
// the hot request flow: sessions are archived on eviction, jobs on
// completion. Resume of an evicted session and status of a job from an
// earlier run both read from here.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/farce1/handover-sub002/internal/jobs"
	"github.com/farce1/handover-sub002/internal/session"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	last_sequence INTEGER NOT NULL,
	snapshot      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id       TEXT PRIMARY KEY,
	state    TEXT NOT NULL,
	target   TEXT NOT NULL,
	snapshot TEXT NOT NULL
);
`

// Store is a SQLite-backed archive. It implements session.Archive and
// jobs.Archive.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the archive database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; one connection
	// avoids database-locked errors from concurrent job finishes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveSession upserts a terminal session snapshot.
func (s *Store) SaveSession(snap session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", snap.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, status, last_sequence, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_sequence = excluded.last_sequence,
			snapshot = excluded.snapshot`,
		snap.ID, string(snap.Status), snap.LastSequence, string(raw))
	if err != nil {
		return fmt.Errorf("archiving session %s: %w", snap.ID, err)
	}
	return nil
}

// LoadSession returns the archived snapshot, or nil when unknown.
func (s *Store) LoadSession(id string) (*session.Snapshot, error) {
	var raw string
	err := s.db.QueryRow(`SELECT snapshot FROM sessions WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &snap, nil
}

// SaveJob upserts a terminal job.
func (s *Store) SaveJob(j jobs.Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", j.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO jobs (id, state, target, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			snapshot = excluded.snapshot`,
		j.ID, string(j.State), j.Target.Key(), string(raw))
	if err != nil {
		return fmt.Errorf("archiving job %s: %w", j.ID, err)
	}
	return nil
}

// LoadJob returns the archived job, or nil when unknown.
func (s *Store) LoadJob(id string) (*jobs.Job, error) {
	var raw string
	err := s.db.QueryRow(`SELECT snapshot FROM jobs WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	var j jobs.Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", id, err)
	}
	return &j, nil
}
