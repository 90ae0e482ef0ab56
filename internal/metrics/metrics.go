package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	ticksFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webprobe",
			Subsystem: "probe",
			Name:      "ticks_total",
			Help:      "Number of scheduled ticks that fired per target.",
		}, []string{"url"},
	)
	ticksSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webprobe",
			Subsystem: "probe",
			Name:      "ticks_skipped_total",
			Help:      "Number of ticks skipped because the previous probe was still running.",
		}, []string{"url"},
	)
	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webprobe",
			Subsystem: "probe",
			Name:      "outcomes_total",
			Help:      "Probe outcomes by classification.",
		}, []string{"url", "status"},
	)
	channelDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webprobe",
			Subsystem: "sink",
			Name:      "channel_drops_total",
			Help:      "Outcomes dropped because the result channel was full.",
		}, []string{"url"},
	)
	persistDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webprobe",
			Subsystem: "sink",
			Name:      "persist_drops_total",
			Help:      "Outcomes dropped after exhausting persistence retries.",
		}, []string{"url"},
	)
	probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webprobe",
			Subsystem: "probe",
			Name:      "latency_seconds",
			Help:      "Wall-clock probe latency from dispatch to classification.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"url"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{ticksFired, ticksSkipped, outcomes, channelDrops, persistDrops, probeLatency}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncTick(url string) {
	if regOK.Load() {
		ticksFired.WithLabelValues(url).Inc()
	}
}
func IncSkip(url string) {
	if regOK.Load() {
		ticksSkipped.WithLabelValues(url).Inc()
	}
}
func IncOutcome(url, status string) {
	if regOK.Load() {
		outcomes.WithLabelValues(url, status).Inc()
	}
}
func IncChannelDrop(url string) {
	if regOK.Load() {
		channelDrops.WithLabelValues(url).Inc()
	}
}
func IncPersistDrop(url string) {
	if regOK.Load() {
		persistDrops.WithLabelValues(url).Inc()
	}
}
func ObserveLatency(url string, seconds float64) {
	if regOK.Load() {
		probeLatency.WithLabelValues(url).Observe(seconds)
	}
}
