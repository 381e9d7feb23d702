package metadata

import (
	"context"
	_ "embed"
	"database/sql"

	_ "modernc.org/sqlite"

	"mcprouter/internal/rerr"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the metadata database. A single *sql.DB is shared by every
// caller; SQLite tolerates one writer with concurrent readers, which is all
// this component needs (spec.md §5).
type Store struct {
	db *sql.DB
}

// Open creates/opens the SQLite database at path and applies the schema.
// An empty path opens an in-memory database, useful for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, rerr.Registry("metadata.Open", err, "failed to open %s", dsn)
	}
	// SQLite only supports one writer at a time; cap the pool so
	// database/sql doesn't open concurrent connections that would just
	// serialize on SQLITE_BUSY anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, rerr.Registry("metadata.Open", err, "failed to apply schema to %s", dsn)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, rerr.Registry("metadata.Open", err, "failed to enable foreign keys")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for callers that need a raw query (kept
// deliberately narrow; prefer the typed operations below).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) execCtx(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
