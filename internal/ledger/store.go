// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records which arXiv papers have been seen and where they
// were delivered. Rows live in a local SQLite database; every operation
// runs inside a Session obtained from Store.WithSession.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const table = "processed_papers"

// timeLayout is fixed-width so that text comparison orders timestamps.
const timeLayout = "2006-01-02 15:04:05.000000"

// optionalColumns are added to existing databases on open.
var optionalColumns = []struct {
	name string
	ddl  string
}{
	{"relevance_note", "TEXT"},
}

// Store owns the ledger database handle.
type Store struct {
	db   *sql.DB
	path string
	log  zerolog.Logger

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Open opens or creates the ledger database at path, creating the schema
// and adding any missing columns.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps each session's transaction exclusive.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: path,
		log:  log.With().Str("component", "ledger").Logger(),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_papers (
			paper_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			published_at TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			posted_to_chat BOOLEAN NOT NULL DEFAULT 0,
			posted_to_doc_store BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_papers_processed_at ON processed_papers(processed_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// migrate adds optional columns that older databases lack. Existing rows
// are preserved and the new columns start out NULL.
func (s *Store) migrate() error {
	rows, err := s.db.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}

	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scanning table info: %w", err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating table info: %w", err)
	}
	rows.Close()

	for _, col := range optionalColumns {
		if have[col.name] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, col.name, col.ddl)); err != nil {
			return fmt.Errorf("adding column %s: %w", col.name, err)
		}
		s.log.Info().Str("column", col.name).Msg("added ledger column")
	}
	return nil
}

// WithSession runs fn inside a transaction. The transaction commits when
// fn returns nil and rolls back when fn returns an error or panics.
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	sess := &Session{store: s, ctx: ctx, tx: tx}

	defer func() {
		if p := recover(); p != nil {
			sess.tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(sess); err != nil {
		if rbErr := sess.tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error().Err(rbErr).Msg("rolling back ledger session")
		}
		return err
	}
	if err := sess.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Reset deletes the database file at path, including WAL side files, and
// recreates an empty schema.
func Reset(path string, log zerolog.Logger) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	s, err := Open(path, log)
	if err != nil {
		return err
	}
	return s.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
