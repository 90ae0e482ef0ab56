package store

import (
	"context"
	"sync"
)

// Memory is an in-process store used by tests and dry runs. It can be told
// to fail upcoming writes to exercise the sink's retry path.
type Memory struct {
	mu       sync.Mutex
	records  []Record
	failNext int
	failWith error
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) EnsureSchema(context.Context) error { return nil }

func (m *Memory) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return m.failWith
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Close() error { return nil }

// FailNext makes the next n writes return err.
func (m *Memory) FailNext(n int, err error) {
	m.mu.Lock()
	m.failNext = n
	m.failWith = err
	m.mu.Unlock()
}

// Records returns a copy of everything written so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of persisted records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
