package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/webprobe/internal/metrics"
	"github.com/loykin/webprobe/internal/probe"
	"github.com/loykin/webprobe/internal/store"
)

// Config tunes the writer's retry policy for transient store failures.
type Config struct {
	// MaxAttempts bounds write attempts per outcome (first try included).
	MaxAttempts int
	// BackoffBase is the delay before the first retry; it doubles per
	// attempt up to BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig matches the documented retry policy defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 5, BackoffBase: 200 * time.Millisecond, BackoffMax: 5 * time.Second}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	return c
}

// Writer is the single consumer draining the result channel into the
// store. Outcomes for the same target arrive and are written in tick
// order; the writer never blocks the channel indefinitely on a failing
// store.
type Writer struct {
	st     store.Store
	cfg    Config
	log    *slog.Logger
	onDrop func(url string)
}

// New creates a Writer. onDrop, when non-nil, is invoked once per outcome
// dropped after retry exhaustion (the supervisor wires per-target
// counters through it).
func New(st store.Store, cfg Config, log *slog.Logger, onDrop func(url string)) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{st: st, cfg: cfg.withDefaults(), log: log, onDrop: onDrop}
}

// Run consumes outcomes until the channel is closed or ctx is cancelled.
// During shutdown the supervisor keeps ctx alive for the drain grace
// period, so buffered outcomes still get a write attempt.
func (w *Writer) Run(ctx context.Context, in <-chan probe.Outcome) {
	for {
		select {
		case out, ok := <-in:
			if !ok {
				return
			}
			w.persist(ctx, out)
		case <-ctx.Done():
			return
		}
	}
}

// persist writes one outcome, retrying transient failures with bounded
// exponential backoff. Exhaustion or a permanent failure drops the
// outcome with accounting; it is never retried across calls.
func (w *Writer) persist(ctx context.Context, out probe.Outcome) {
	rec := recordFrom(out)
	delay := w.cfg.BackoffBase
	for attempt := 1; ; attempt++ {
		err := w.st.Write(ctx, rec)
		if err == nil {
			return
		}
		if !store.IsTransient(err) {
			w.drop(out, err, attempt, "permanent store failure")
			return
		}
		if attempt >= w.cfg.MaxAttempts || ctx.Err() != nil {
			w.drop(out, err, attempt, "persistence retries exhausted")
			return
		}
		w.log.Warn("store write failed, retrying",
			"url", out.URL, "attempt", attempt, "backoff", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		delay *= 2
		if delay > w.cfg.BackoffMax {
			delay = w.cfg.BackoffMax
		}
	}
}

func (w *Writer) drop(out probe.Outcome, err error, attempts int, reason string) {
	w.log.Error("outcome dropped",
		"url", out.URL, "reason", reason, "attempts", attempts, "error", err)
	metrics.IncPersistDrop(out.URL)
	if w.onDrop != nil {
		w.onDrop(out.URL)
	}
}

// recordFrom flattens an outcome into its persisted form.
func recordFrom(out probe.Outcome) store.Record {
	return store.Record{
		URL:         out.URL,
		ProbedAt:    out.Timestamp,
		LatencySecs: out.Latency.Seconds(),
		Status:      string(out.Status),
		HTTPStatus:  out.HTTPStatus,
		Matched:     out.Matched,
	}
}
