package store

import (
	"context"
	"errors"
	"time"
)

// Record is the flattened, persisted form of one probe outcome. The table
// it lands in is an append-only time-series log; records are never updated
// or deleted.
type Record struct {
	URL         string
	ProbedAt    time.Time
	LatencySecs float64
	Status      string
	HTTPStatus  int
	Matched     bool
}

// Store persists metric records. Implementations are owned exclusively by
// the sink writer; no other component touches the connection.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Pool bounds connections for SQL-backed stores.
type Pool struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxAge   time.Duration
}

// TransientError marks a write failure as retry-eligible. Failures not
// wrapped in it are permanent and must not be retried.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return "transient store error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retry-eligible. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retry-eligible.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
