package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/loykin/webprobe/internal/target"
)

// Status classifies one probe execution. Probe failures are never Go
// errors; every path ends in one of these values.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusPatternMismatch Status = "pattern_mismatch"
	StatusHTTPError       Status = "http_error"
	StatusNetworkError    Status = "network_error"
	StatusTimeout         Status = "timeout"
)

// NetworkKind narrows StatusNetworkError to the failing layer.
type NetworkKind string

const (
	NetworkDNS        NetworkKind = "dns"
	NetworkTLS        NetworkKind = "tls"
	NetworkConnection NetworkKind = "connection"
	NetworkInternal   NetworkKind = "internal"
	NetworkOther      NetworkKind = "other"
)

// Outcome is the immutable result of one probe execution. It is produced
// exactly once per tick and handed off to the sink writer.
type Outcome struct {
	URL        string
	Timestamp  time.Time
	Latency    time.Duration
	Status     Status
	HTTPStatus int         // set whenever a response was received
	NetKind    NetworkKind // set for StatusNetworkError
	Matched    bool        // meaningful for success / pattern_mismatch
}

// Up reports whether the outcome counts as an available endpoint.
func (o Outcome) Up() bool { return o.Status == StatusSuccess }

// DefaultMaxBodyBytes bounds how much of a response body is read for
// pattern matching.
const DefaultMaxBodyBytes = 1 << 20

// Prober performs single HTTP checks. It is stateless apart from the
// shared client and safe for concurrent use by every ticker.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	maxBody   int64
	userAgent string
}

// Option mutates a Prober during construction.
type Option func(*Prober)

// WithClient replaces the HTTP client (tests).
func WithClient(c *http.Client) Option { return func(p *Prober) { p.client = c } }

// WithMaxBodyBytes overrides the body read limit.
func WithMaxBodyBytes(n int64) Option { return func(p *Prober) { p.maxBody = n } }

// New returns a Prober whose requests are bounded by timeout.
func New(timeout time.Duration, opts ...Option) *Prober {
	p := &Prober{
		client:    &http.Client{},
		timeout:   timeout,
		maxBody:   DefaultMaxBodyBytes,
		userAgent: "webprobe",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Probe issues one GET against the target and classifies the result.
// Latency covers dispatch to classification on every path, failures
// included. The context carries cancellation from the owning ticker;
// the prober adds its own deadline on top.
func (p *Prober) Probe(ctx context.Context, spec target.Spec) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out := Outcome{URL: spec.URL, Timestamp: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		out.Latency = time.Since(start)
		out.Status = StatusNetworkError
		out.NetKind = NetworkOther
		return out
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		out.Latency = time.Since(start)
		out.Status, out.NetKind = classifyErr(ctx, err)
		return out
	}
	defer func() { _ = resp.Body.Close() }()
	out.HTTPStatus = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		out.Latency = time.Since(start)
		out.Status = StatusHTTPError
		return out
	}

	if spec.Pattern == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		out.Latency = time.Since(start)
		out.Status = StatusSuccess
		out.Matched = true
		return out
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody))
	if err != nil {
		out.Latency = time.Since(start)
		out.Status, out.NetKind = classifyErr(ctx, err)
		return out
	}
	out.Latency = time.Since(start)
	if spec.Pattern.Match(body) {
		out.Status = StatusSuccess
		out.Matched = true
	} else {
		out.Status = StatusPatternMismatch
	}
	return out
}

// classifyErr maps transport failures onto the outcome taxonomy.
func classifyErr(ctx context.Context, err error) (Status, NetworkKind) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusTimeout, ""
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return StatusTimeout, ""
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusNetworkError, NetworkDNS
	}
	var certErr *tls.CertificateVerificationError
	var unkErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unkErr) || errors.As(err, &hostErr) || errors.As(err, &recErr) {
		return StatusNetworkError, NetworkTLS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return StatusNetworkError, NetworkConnection
	}
	return StatusNetworkError, NetworkOther
}
