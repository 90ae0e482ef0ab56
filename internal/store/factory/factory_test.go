package factory

import (
	"testing"

	"github.com/loykin/webprobe/internal/store"
)

func TestNewFromDSNMemory(t *testing.T) {
	s, err := NewFromDSN("memory://", store.Pool{})
	if err != nil {
		t.Fatalf("memory DSN: %v", err)
	}
	if _, ok := s.(*store.Memory); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

func TestNewFromDSNSQLite(t *testing.T) {
	s, err := NewFromDSN("sqlite://:memory:", store.Pool{})
	if err != nil {
		t.Fatalf("sqlite DSN: %v", err)
	}
	_ = s.Close()

	// Plain paths default to sqlite.
	s2, err := NewFromDSN(":memory:", store.Pool{})
	if err != nil {
		t.Fatalf("plain path DSN: %v", err)
	}
	_ = s2.Close()
}

func TestNewFromDSNRejectsUnknown(t *testing.T) {
	if _, err := NewFromDSN("", store.Pool{}); err == nil {
		t.Fatalf("empty DSN must fail")
	}
	if _, err := NewFromDSN("redis://localhost:6379", store.Pool{}); err == nil {
		t.Fatalf("unknown scheme must fail")
	}
}
