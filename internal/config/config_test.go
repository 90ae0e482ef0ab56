package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webprobe.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[engine]
probe_timeout = "5s"
channel_capacity = 128
push_timeout = "50ms"
max_concurrent = 10
shutdown_grace = "15s"

[sink]
max_attempts = 4
backoff_base = "100ms"
backoff_max = "2s"

[store]
dsn = "sqlite://:memory:"
max_open_conns = 5

[server]
listen = "127.0.0.1:9090"

[log]
level = "debug"

[[targets]]
url = "https://example.com"
interval = "5s"
pattern = "Example"

[[targets]]
url = "https://other.example"
interval = "30s"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Engine.ProbeTimeout != 5*time.Second || c.Engine.ChannelCapacity != 128 {
		t.Fatalf("engine config lost: %+v", c.Engine)
	}
	if c.Engine.ShutdownGrace != 15*time.Second {
		t.Fatalf("grace lost: %v", c.Engine.ShutdownGrace)
	}
	if c.Sink.MaxAttempts != 4 || c.Sink.BackoffBase != 100*time.Millisecond {
		t.Fatalf("sink config lost: %+v", c.Sink)
	}
	if c.Store.DSN != "sqlite://:memory:" || c.Store.MaxOpenConns != 5 {
		t.Fatalf("store config lost: %+v", c.Store)
	}
	if c.Server.Listen != "127.0.0.1:9090" {
		t.Fatalf("server config lost: %+v", c.Server)
	}

	reg, err := c.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 targets, got %d", reg.Len())
	}
	s, _ := reg.Get("https://example.com")
	if s.Pattern == nil || !s.Pattern.MatchString("an Example here") {
		t.Fatalf("pattern not compiled: %+v", s)
	}
	s2, _ := reg.Get("https://other.example")
	if s2.Pattern != nil {
		t.Fatalf("absent pattern must stay nil")
	}
}

func TestLoadRejectsEmptyTargets(t *testing.T) {
	path := writeConfig(t, `
[store]
dsn = "memory://"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for config without targets")
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	path := writeConfig(t, `
[[targets]]
url = "https://example.com"
interval = "5s"
pattern = "a(b"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid regexp")
	}
}

func TestLoadRejectsBadTarget(t *testing.T) {
	cases := []string{
		`[[targets]]
url = "not-a-url"
interval = "5s"`,
		`[[targets]]
url = "https://example.com"
interval = "0s"`,
		`[[targets]]
url = "https://example.com"
interval = "5s"
[[targets]]
url = "https://example.com"
interval = "10s"`,
	}
	for i, body := range cases {
		path := writeConfig(t, body)
		if _, err := Load(path); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoadDefaultsStoreDSN(t *testing.T) {
	path := writeConfig(t, `
[[targets]]
url = "https://example.com"
interval = "5s"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.DSN == "" {
		t.Fatalf("store DSN default missing")
	}
}
