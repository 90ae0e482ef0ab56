package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/loykin/webprobe/internal/metrics"
	"github.com/loykin/webprobe/internal/probe"
	"github.com/loykin/webprobe/internal/target"
)

// ticker drives repeated probes of one target. The schedule is anchored to
// tick-index multiples of the interval from a fixed start instant, so a
// slow probe never shifts later ticks. If a probe is still running when
// its next tick is due, that tick is skipped and counted; a slow endpoint
// degrades its own sampling rate instead of queuing.
type ticker struct {
	spec        target.Spec
	prober      *probe.Prober
	out         chan<- probe.Outcome
	pushTimeout time.Duration
	counters    *Counters
	sem         *semaphore.Weighted // nil means unlimited
	log         *slog.Logger

	inFlight atomic.Bool
	probes   sync.WaitGroup
}

// run loops until ctx is cancelled. It returns only after any in-flight
// probe goroutine has finished, so the supervisor can close the result
// channel safely afterwards.
func (t *ticker) run(ctx context.Context) {
	defer t.probes.Wait()

	start := time.Now()
	t.fire(ctx)

	timer := time.NewTimer(t.spec.Interval)
	defer timer.Stop()
	for n := int64(1); ; n++ {
		next := start.Add(time.Duration(n) * t.spec.Interval)
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.fire(ctx)
		}
	}
}

// fire runs one tick: either launches a probe or records an overlap-skip.
func (t *ticker) fire(ctx context.Context) {
	if !t.inFlight.CompareAndSwap(false, true) {
		t.counters.skips.Add(1)
		metrics.IncSkip(t.spec.URL)
		t.log.Debug("tick skipped, probe still running", "url", t.spec.URL)
		return
	}
	t.counters.ticks.Add(1)
	metrics.IncTick(t.spec.URL)

	t.probes.Add(1)
	go func() {
		defer t.inFlight.Store(false)
		defer t.probes.Done()
		t.execute(ctx)
	}()
}

// execute is the per-target catch boundary: an unexpected fault inside the
// probe path is converted into a network-class outcome and never escapes
// to siblings or the supervisor.
func (t *ticker) execute(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("probe panicked", "url", t.spec.URL, "panic", fmt.Sprint(r))
			out := probe.Outcome{
				URL:       t.spec.URL,
				Timestamp: time.Now(),
				Status:    probe.StatusNetworkError,
				NetKind:   probe.NetworkInternal,
			}
			t.push(ctx, out)
		}
	}()

	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer t.sem.Release(1)
	}

	out := t.prober.Probe(ctx, t.spec)
	if ctx.Err() != nil {
		// Shutdown abandoned this probe; no final outcome is emitted.
		return
	}

	metrics.IncOutcome(out.URL, string(out.Status))
	metrics.ObserveLatency(out.URL, out.Latency.Seconds())
	t.log.Info("probe finished",
		"url", out.URL,
		"status", out.Status,
		"http_status", out.HTTPStatus,
		"latency", out.Latency,
		"matched", out.Matched,
	)
	t.push(ctx, out)
}

// push hands the outcome to the result channel. A full channel stalls the
// push for at most pushTimeout before the outcome is dropped and counted;
// probe timeliness is never sacrificed to sink slowness.
func (t *ticker) push(ctx context.Context, out probe.Outcome) {
	select {
	case t.out <- out:
		return
	default:
	}

	timer := time.NewTimer(t.pushTimeout)
	defer timer.Stop()
	select {
	case t.out <- out:
	case <-timer.C:
		t.drop(out)
	case <-ctx.Done():
		t.drop(out)
	}
}

func (t *ticker) drop(out probe.Outcome) {
	t.counters.channelDrops.Add(1)
	metrics.IncChannelDrop(out.URL)
	t.log.Warn("outcome dropped, result channel full", "url", out.URL, "status", out.Status)
}
