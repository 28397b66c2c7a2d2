// Package diagnostics is a sqlite audit log of every object the loader
// commits, plus every call session that passed through it: not load-bearing
// for correctness (the pipeline's all-or-nothing commit guarantee holds with
// or without it), an observability side channel wired in through
// loader.Observer and loader.SessionObserver.
package diagnostics

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rollang/loader/internal/loader"
)

const schema = `
CREATE TABLE IF NOT EXISTS type_commits (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	type_id      INTEGER NOT NULL,
	assembly     TEXT NOT NULL,
	template_id  INTEGER NOT NULL,
	storage      TEXT NOT NULL,
	size         INTEGER NOT NULL,
	alignment    INTEGER NOT NULL,
	committed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS function_commits (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	function_id  INTEGER NOT NULL,
	assembly     TEXT NOT NULL,
	template_id  INTEGER NOT NULL,
	committed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS call_sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	assembly     TEXT NOT NULL,
	template_id  INTEGER NOT NULL,
	started_at   TIMESTAMP NOT NULL
);
`

// Store is a loader.Observer backed by a sqlite database: every
// OnTypeLoaded/OnFunctionLoaded call appends one row. A write failure is
// returned like any other hook error, which (per MoveFinishedObjects's
// hooks-before-mutation order) aborts the commit — the audit log is a
// required witness of what committed, not a fire-and-forget side effect.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a sqlite database at path and ensures its
// schema exists. path is passed straight to modernc.org/sqlite, so the
// usual DSN query-parameter tricks (e.g. "file::memory:?cache=shared")
// work for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("diagnostics: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// OnTypeLoaded implements loader.Observer.
func (s *Store) OnTypeLoaded(t *loader.RuntimeType) error {
	_, err := s.db.Exec(
		`INSERT INTO type_commits (type_id, assembly, template_id, storage, size, alignment) VALUES (?, ?, ?, ?, ?, ?)`,
		t.TypeId, t.Args.AssemblyName, t.Args.TemplateID, t.Storage.String(), t.Size, t.Alignment,
	)
	if err != nil {
		return fmt.Errorf("diagnostics: recording type commit: %w", err)
	}
	return nil
}

// OnFunctionLoaded implements loader.Observer.
func (s *Store) OnFunctionLoaded(f *loader.RuntimeFunction) error {
	_, err := s.db.Exec(
		`INSERT INTO function_commits (function_id, assembly, template_id) VALUES (?, ?, ?)`,
		f.FunctionId, f.Args.AssemblyName, f.Args.TemplateID,
	)
	if err != nil {
		return fmt.Errorf("diagnostics: recording function commit: %w", err)
	}
	return nil
}

// OnCallSession implements loader.SessionObserver: it records one row per
// GetType/GetFunction call, including calls that never reach a commit (the
// session is stamped before singleflight dedup, not after). Unlike
// OnTypeLoaded/OnFunctionLoaded, a failure here never aborts the caller's
// request — it is surfaced only through its return value.
func (s *Store) OnCallSession(sess loader.CallSession) error {
	_, err := s.db.Exec(
		`INSERT INTO call_sessions (session_id, kind, assembly, template_id, started_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.Kind, sess.Args.AssemblyName, sess.Args.TemplateID, sess.Started,
	)
	if err != nil {
		return fmt.Errorf("diagnostics: recording call session: %w", err)
	}
	return nil
}

// SessionCount returns the number of call-session rows recorded.
func (s *Store) SessionCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM call_sessions`).Scan(&n)
	return n, err
}

// TypeCommitCount returns the number of type-commit rows recorded, for
// tests asserting the audit log tracks (or doesn't track) a given run.
func (s *Store) TypeCommitCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM type_commits`).Scan(&n)
	return n, err
}

// FunctionCommitCount mirrors TypeCommitCount for function commits.
func (s *Store) FunctionCommitCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM function_commits`).Scan(&n)
	return n, err
}
