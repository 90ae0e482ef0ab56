package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/webprobe/internal/store"
)

// Store appends metric records to a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:"
func New(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS website_metrics(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			request_timestamp TIMESTAMP NOT NULL,
			response_time REAL NOT NULL,
			status TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			pattern_found BOOLEAN NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_website_metrics_url ON website_metrics(url);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Write(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO website_metrics(url, request_timestamp, response_time, status, status_code, pattern_found)
		VALUES(?, ?, ?, ?, ?, ?);`,
		rec.URL, rec.ProbedAt.UTC(), rec.LatencySecs, rec.Status, rec.HTTPStatus, rec.Matched)
	// Insert failures on an established schema are I/O or locking issues;
	// treat them as retry-eligible.
	return store.Transient(err)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
