package quiver

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds an entire exchange, connect phases included, when
// the caller's context carries no deadline of its own.
const DefaultTimeout = 30 * time.Second

// Dispatcher executes HTTP exchanges one at a time per call, measuring each
// one. It is safe for concurrent use: every call to Send owns its own timing
// record and its own connection.
type Dispatcher struct {
	transport http.RoundTripper
	client    *http.Client
	dialer    *timedDialer

	timeout     time.Duration
	dialTimeout time.Duration
	tlsConfig   *tls.Config
	insecure    bool
	clock       func() time.Time
	logger      zerolog.Logger

	prom *PrometheusConfig
	otel *OpenTelemetryConfig

	last atomic.Pointer[RequestMetrics]
}

// Response is the paired result of one exchange: the raw response data plus
// the timing record for the call that produced it.
//
// Status codes are data, not errors: a 404 or 500 arrives here, never as an
// error from Send.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Header     http.Header
	Body       []byte
	Metrics    RequestMetrics
}

// New creates a Dispatcher with the given options.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		timeout:     DefaultTimeout,
		dialTimeout: 10 * time.Second,
		clock:       time.Now,
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	cfg := d.tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if d.insecure {
		cfg.InsecureSkipVerify = true
	}

	d.dialer = &timedDialer{
		resolver:  net.DefaultResolver,
		dialer:    &net.Dialer{Timeout: d.dialTimeout},
		tlsConfig: cfg,
		clock:     d.clock,
	}

	// Fresh handshake per exchange: keep-alives stay off so the connect
	// phases are re-measured on every call.
	if d.transport == nil {
		d.transport = &http.Transport{
			DialContext:         d.dialer.DialContext,
			DialTLSContext:      d.dialer.DialTLSContext,
			DisableKeepAlives:   true,
			MaxIdleConnsPerHost: -1,
		}
	}
	d.client = &http.Client{Transport: d.transport}

	return d
}

// Send executes exactly one exchange for spec: one connection attempt, one
// request, the full response body read into memory. The returned Response
// carries the timing record for this call.
//
// Network failures surface as distinct error kinds (*DNSError,
// *ConnectError, *TLSHandshakeError, *TransportError, *CancelledError); no
// retry is performed. Redirects are followed by default; the phase timings
// then describe the final connection.
func (d *Dispatcher) Send(ctx context.Context, spec RequestSpec) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	phases := &PhaseTimings{}
	ctx = withTimings(ctx, phases)

	var span trace.Span
	if d.otel != nil {
		ctx, span = d.otel.start(ctx, spec)
		defer span.End()
	}

	req, err := d.buildRequest(ctx, spec)
	if err != nil {
		return nil, err
	}

	if d.prom != nil && d.prom.InFlightGauge != nil {
		d.prom.InFlightGauge.Inc()
		defer d.prom.InFlightGauge.Dec()
	}

	start := d.clock()
	httpResp, err := d.client.Do(req)
	if err != nil {
		return nil, d.fail(span, id, spec, classifyExchangeError(err))
	}
	timeToHeaders := d.clock().Sub(start)

	body, readErr := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if readErr != nil {
		return nil, d.fail(span, id, spec, classifyExchangeError(readErr))
	}
	total := d.clock().Sub(start)

	metrics := newRequestMetrics(id, *phases, timeToHeaders, total)
	d.last.Store(&metrics)

	d.logger.Debug().
		Str("id", id).
		Str("method", req.Method).
		Str("url", spec.URL).
		Int("status", httpResp.StatusCode).
		Dur("dns", metrics.DNS).
		Dur("tcp", metrics.Connect).
		Dur("tls", metrics.TLS).
		Dur("ttfb", metrics.TimeToFirstByte).
		Dur("transfer", metrics.ContentTransfer).
		Dur("total", metrics.Total).
		Msg("exchange complete")

	if d.prom != nil {
		d.prom.observe(req.Method, req.URL.Host, httpResp.StatusCode, metrics)
	}
	if d.otel != nil {
		d.otel.finish(span, httpResp.StatusCode, metrics)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Proto:      httpResp.Proto,
		Header:     httpResp.Header,
		Body:       body,
		Metrics:    metrics,
	}, nil
}

// LastMetrics returns the record of the most recently completed exchange.
// The slot is last-writer-wins under concurrent Sends; callers that need
// per-call metrics must take them from the returned Response instead.
func (d *Dispatcher) LastMetrics() (RequestMetrics, bool) {
	m := d.last.Load()
	if m == nil {
		return RequestMetrics{}, false
	}
	return *m, true
}

// buildRequest assembles the wire request from the spec. The method token is
// used exactly as provided; headers are forwarded in order with duplicates
// intact, except Connection, which is always replaced by an explicit close.
func (d *Dispatcher) buildRequest(ctx context.Context, spec RequestSpec) (*http.Request, error) {
	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return nil, &InvalidRequestError{Reason: "building request", Err: err}
	}

	for _, h := range spec.Headers {
		if strings.EqualFold(h.Name, "Connection") {
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	req.Close = true
	req.Header.Set("Connection", "close")

	if len(spec.Body) > 0 {
		switch {
		case spec.ContentType != "":
			req.Header.Set("Content-Type", spec.ContentType)
		case req.Header.Get("Content-Type") == "":
			req.Header.Set("Content-Type", DefaultContentType)
		}
	}

	return req, nil
}

// fail records a failed exchange in the log and on the span, then returns
// the classified error unchanged.
func (d *Dispatcher) fail(span trace.Span, id string, spec RequestSpec, err error) error {
	d.logger.Debug().
		Str("id", id).
		Str("method", spec.Method).
		Str("url", spec.URL).
		Err(err).
		Msg("exchange failed")

	if d.prom != nil {
		d.prom.observeFailure(spec.Method, hostOf(spec.URL))
	}
	if d.otel != nil && span != nil {
		d.otel.recordError(span, err)
	}

	return err
}

// hostOf extracts the host from an already-validated URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
