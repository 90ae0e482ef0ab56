package webprobe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/webprobe/internal/config"
	"github.com/loykin/webprobe/internal/logger"
	"github.com/loykin/webprobe/internal/metrics"
	"github.com/loykin/webprobe/internal/probe"
	"github.com/loykin/webprobe/internal/scheduler"
	"github.com/loykin/webprobe/internal/server"
	"github.com/loykin/webprobe/internal/sink"
	"github.com/loykin/webprobe/internal/store"
	"github.com/loykin/webprobe/internal/store/factory"
	"github.com/loykin/webprobe/internal/target"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Target = target.Spec

type Outcome = probe.Outcome

type Snapshot = scheduler.Snapshot

type Config = cfg.Config

// DefaultShutdownGrace bounds the drain on shutdown when the config does
// not say otherwise.
const DefaultShutdownGrace = 10 * time.Second

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) {
	return cfg.Load(path)
}

// Engine ties the scheduler, the metric store, and the optional status
// server together behind a stable public API for embedding.
type Engine struct {
	sup   *scheduler.Supervisor
	st    store.Store
	srv   *http.Server
	log   *slog.Logger
	c     *Config
	grace time.Duration
}

// New builds an engine from a validated config. The store is opened (and
// its schema ensured) here so configuration failures surface before any
// ticker exists.
func New(c *Config) (*Engine, error) {
	log := logger.New(c.Log)

	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}

	st, err := factory.NewFromDSN(c.Store.DSN, store.Pool{
		MaxOpenConns: c.Store.MaxOpenConns,
		MaxIdleConns: c.Store.MaxIdleConns,
		ConnMaxAge:   c.Store.ConnMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sup := scheduler.New(reg, st, scheduler.Config{
		ProbeTimeout:    c.Engine.ProbeTimeout,
		ChannelCapacity: c.Engine.ChannelCapacity,
		PushTimeout:     c.Engine.PushTimeout,
		MaxConcurrent:   c.Engine.MaxConcurrent,
		Sink: sink.Config{
			MaxAttempts: c.Sink.MaxAttempts,
			BackoffBase: c.Sink.BackoffBase,
			BackoffMax:  c.Sink.BackoffMax,
		},
	}, log)

	grace := c.Engine.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	return &Engine{sup: sup, st: st, log: log, c: c, grace: grace}, nil
}

// Start spawns all tickers and the sink writer, registers metrics, and
// starts the status server when one is configured. Non-blocking.
func (e *Engine) Start() error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := e.sup.Start(); err != nil {
		return err
	}
	if e.c.Server.Listen != "" {
		e.srv = server.NewServer(e.c.Server.Listen, e.sup)
		e.log.Info("status server listening", "addr", e.c.Server.Listen)
	}
	return nil
}

// Shutdown stops scheduling, drains buffered outcomes up to the grace
// period, then closes the store and the status server. Blocking.
func (e *Engine) Shutdown() {
	e.sup.Shutdown(e.grace)
	if e.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.srv.Shutdown(ctx)
	}
	if err := e.st.Close(); err != nil {
		e.log.Warn("store close failed", "error", err)
	}
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.log }

// Snapshot returns per-target counters keyed by url.
func (e *Engine) Snapshot() map[string]Snapshot { return e.sup.Snapshot() }

// Totals returns the aggregate counters across all targets.
func (e *Engine) Totals() Snapshot { return e.sup.Totals() }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
