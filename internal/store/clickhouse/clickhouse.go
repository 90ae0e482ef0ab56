package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/webprobe/internal/store"
)

// Store appends metric records to ClickHouse using the official native
// protocol client.
type Store struct {
	conn driver.Conn
}

// New connects to ClickHouse at addr ("host:port").
func New(addr, database, username, password string) (*Store, error) {
	if database == "" {
		database = "default"
	}
	if username == "" {
		username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS website_metrics (
			url String,
			request_timestamp DateTime64(3, 'UTC'),
			response_time Float64,
			status String,
			status_code Int32,
			pattern_found Bool
		) ENGINE = MergeTree()
		ORDER BY (url, request_timestamp)`)
}

func (s *Store) Write(ctx context.Context, rec store.Record) error {
	err := s.conn.Exec(ctx, `
		INSERT INTO website_metrics (url, request_timestamp, response_time, status, status_code, pattern_found)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.URL, rec.ProbedAt.UTC(), rec.LatencySecs, rec.Status, int32(rec.HTTPStatus), rec.Matched)
	return store.Transient(err)
}

func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
