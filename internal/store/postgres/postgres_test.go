package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/webprobe/internal/store"
)

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := pgmodule.Run(ctx,
		"postgres:15-alpine",
		pgmodule.WithDatabase("testdb"),
		pgmodule.WithUsername("testuser"),
		pgmodule.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	st, err := New(connStr, store.Pool{MaxOpenConns: 4, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	}()

	rec := store.Record{
		URL:         "https://example.com",
		ProbedAt:    time.Now().UTC(),
		LatencySecs: 0.321,
		Status:      "success",
		HTTPStatus:  200,
		Matched:     true,
	}
	if err := st.Write(ctx, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rec.Status = "http_error"
	rec.HTTPStatus = 503
	rec.Matched = false
	if err := st.Write(ctx, rec); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	var n int
	row := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM website_metrics WHERE url = $1`, rec.URL)
	if err := row.Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}
