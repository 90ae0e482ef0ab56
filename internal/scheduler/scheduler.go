package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/loykin/webprobe/internal/probe"
	"github.com/loykin/webprobe/internal/sink"
	"github.com/loykin/webprobe/internal/store"
	"github.com/loykin/webprobe/internal/target"
)

// Config tunes the engine around a validated target registry.
type Config struct {
	// ProbeTimeout bounds every network check.
	ProbeTimeout time.Duration
	// ChannelCapacity is the result channel depth. Larger values tolerate
	// longer sink stalls before backpressure drops engage, at the cost of
	// more buffered-but-unpersisted outcomes lost on crash.
	ChannelCapacity int
	// PushTimeout is how long a ticker waits on a full channel before
	// dropping the outcome.
	PushTimeout time.Duration
	// MaxConcurrent caps globally in-flight probes. 0 means unlimited.
	MaxConcurrent int64
	// Sink is the writer's retry policy.
	Sink sink.Config
}

func (c Config) withDefaults() Config {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = 256
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = 100 * time.Millisecond
	}
	return c
}

// Supervisor owns one ticker per target, the result channel, and the sink
// writer: N+1 goroutines for N targets. The target set is fixed for the
// run; the ticker map is written once at startup and read-only afterwards.
type Supervisor struct {
	cfg      Config
	registry *target.Registry
	prober   *probe.Prober
	writer   *sink.Writer
	log      *slog.Logger

	tickers  map[string]*ticker
	counters map[string]*Counters
	results  chan probe.Outcome

	tickerCtx    context.Context
	tickerCancel context.CancelFunc
	writerCtx    context.Context
	writerCancel context.CancelFunc
	tickersDone  chan struct{}
	writerDone   chan struct{}
	started      bool
}

// New wires a supervisor over a validated registry and a store owned by
// the sink writer.
func New(reg *target.Registry, st store.Store, cfg Config, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	s := &Supervisor{
		cfg:      cfg,
		registry: reg,
		prober:   probe.New(cfg.ProbeTimeout),
		log:      log,
		tickers:  make(map[string]*ticker, reg.Len()),
		counters: make(map[string]*Counters, reg.Len()),
		results:  make(chan probe.Outcome, cfg.ChannelCapacity),
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}

	for _, spec := range reg.Specs() {
		c := &Counters{}
		s.counters[spec.URL] = c
		s.tickers[spec.URL] = &ticker{
			spec:        spec,
			prober:      s.prober,
			out:         s.results,
			pushTimeout: cfg.PushTimeout,
			counters:    c,
			sem:         sem,
			log:         log,
		}
	}

	s.writer = sink.New(st, cfg.Sink, log, func(url string) {
		if c, ok := s.counters[url]; ok {
			c.persistDrops.Add(1)
		}
	})
	return s
}

// Start spawns every ticker and the sink writer. It is non-blocking and
// must be called at most once.
func (s *Supervisor) Start() error {
	if s.started {
		return errors.New("scheduler already started")
	}
	if s.registry.Len() == 0 {
		return errors.New("no targets to schedule")
	}
	s.started = true

	s.tickerCtx, s.tickerCancel = context.WithCancel(context.Background())
	s.writerCtx, s.writerCancel = context.WithCancel(context.Background())
	s.tickersDone = make(chan struct{})
	s.writerDone = make(chan struct{})

	running := make(chan struct{}, len(s.tickers))
	for _, t := range s.tickers {
		go func(t *ticker) {
			defer func() { running <- struct{}{} }()
			t.run(s.tickerCtx)
		}(t)
	}
	go func() {
		for i := 0; i < len(s.tickers); i++ {
			<-running
		}
		close(s.tickersDone)
	}()
	go func() {
		defer close(s.writerDone)
		s.writer.Run(s.writerCtx, s.results)
	}()

	s.log.Info("scheduler started", "targets", s.registry.Len(),
		"channel_capacity", s.cfg.ChannelCapacity)
	return nil
}

// Shutdown stops all tickers, then lets the sink writer drain buffered
// outcomes for up to grace before forcing it down. It blocks until the
// drain finishes or grace expires. No new ticks are scheduled after it
// returns.
func (s *Supervisor) Shutdown(grace time.Duration) {
	if !s.started {
		return
	}

	s.tickerCancel()
	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	// Tickers stop promptly; an in-flight probe is bounded by the probe
	// timeout. The channel is closed only after every producer is gone.
	select {
	case <-s.tickersDone:
	case <-deadline.C:
		s.log.Warn("grace expired before tickers stopped")
		s.writerCancel()
		return
	}
	close(s.results)

	select {
	case <-s.writerDone:
	case <-deadline.C:
		s.log.Warn("grace expired before sink drained")
		s.writerCancel()
		<-s.writerDone
	}
	s.log.Info("scheduler stopped", "summary", s.Totals())
}

// Snapshot returns per-target counters keyed by url.
func (s *Supervisor) Snapshot() map[string]Snapshot {
	out := make(map[string]Snapshot, len(s.counters))
	for url, c := range s.counters {
		out[url] = c.snapshot()
	}
	return out
}

// Totals returns the aggregate counters across all targets.
func (s *Supervisor) Totals() Snapshot {
	var total Snapshot
	for _, c := range s.counters {
		total = total.Add(c.snapshot())
	}
	return total
}
