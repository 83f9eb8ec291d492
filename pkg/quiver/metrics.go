package quiver

import (
	"context"
	"encoding/json"
	"time"
)

// PhaseTimings holds the three connection-establishment durations recorded by
// the timed dialer for one connection attempt. TLS is zero for plain-text
// schemes. The record is owned by a single exchange and is only written
// between the start of the connect sequence and its completion.
type PhaseTimings struct {
	DNS     time.Duration
	Connect time.Duration
	TLS     time.Duration
}

// ConnectionDuration returns the combined cost of establishing the
// connection: DNS lookup plus TCP connect plus TLS handshake.
func (p PhaseTimings) ConnectionDuration() time.Duration {
	return p.DNS + p.Connect + p.TLS
}

// timingsKey is the context key carrying the per-exchange *PhaseTimings slot
// down to the dialer. A fresh slot is attached for every call to Send, so
// concurrent exchanges can never observe each other's timings.
type timingsKey struct{}

func withTimings(ctx context.Context, t *PhaseTimings) context.Context {
	return context.WithValue(ctx, timingsKey{}, t)
}

func timingsFromContext(ctx context.Context) *PhaseTimings {
	t, _ := ctx.Value(timingsKey{}).(*PhaseTimings)
	return t
}

// RequestMetrics is the per-exchange timing record returned alongside every
// response. All fields are non-negative and the phases plus the derived
// durations sum to approximately Total. Immutable once built.
type RequestMetrics struct {
	// ID is the correlation ID generated for the exchange. It also appears
	// in the dispatcher's log output for the same call.
	ID string

	// Connection-establishment phases, copied from the dialer's record.
	// All three are zero when the transport never dialed (for example a
	// caller-injected fake transport).
	DNS     time.Duration
	Connect time.Duration
	TLS     time.Duration

	// TimeToFirstByte is the wait for response headers once the connection
	// was up. It is clamped at zero to absorb clock-ordering noise between
	// the dialer's and the dispatcher's independent stopwatches.
	TimeToFirstByte time.Duration

	// ContentTransfer is the time spent reading the response body after
	// headers arrived.
	ContentTransfer time.Duration

	// Total is the full wall-clock duration of the exchange.
	Total time.Duration
}

// newRequestMetrics derives the exchange record from the dialer's phase
// timings and the dispatcher's two stopwatch readings.
func newRequestMetrics(id string, phases PhaseTimings, timeToHeaders, total time.Duration) RequestMetrics {
	ttfb := timeToHeaders - phases.ConnectionDuration()
	if ttfb < 0 {
		ttfb = 0
	}
	transfer := total - timeToHeaders
	if transfer < 0 {
		transfer = 0
	}
	return RequestMetrics{
		ID:              id,
		DNS:             phases.DNS,
		Connect:         phases.Connect,
		TLS:             phases.TLS,
		TimeToFirstByte: ttfb,
		ContentTransfer: transfer,
		Total:           total,
	}
}

// ConnectionDuration returns the combined connection-establishment cost.
func (m RequestMetrics) ConnectionDuration() time.Duration {
	return m.DNS + m.Connect + m.TLS
}

// MarshalJSON renders the record with millisecond fields for easy
// consumption by dashboards and scripts.
func (m RequestMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string  `json:"id"`
		DNSMs      float64 `json:"dns_ms"`
		ConnectMs  float64 `json:"connect_ms"`
		TLSMs      float64 `json:"tls_ms"`
		TTFBMs     float64 `json:"ttfb_ms"`
		TransferMs float64 `json:"transfer_ms"`
		TotalMs    float64 `json:"total_ms"`
	}{
		ID:         m.ID,
		DNSMs:      float64(m.DNS) / float64(time.Millisecond),
		ConnectMs:  float64(m.Connect) / float64(time.Millisecond),
		TLSMs:      float64(m.TLS) / float64(time.Millisecond),
		TTFBMs:     float64(m.TimeToFirstByte) / float64(time.Millisecond),
		TransferMs: float64(m.ContentTransfer) / float64(time.Millisecond),
		TotalMs:    float64(m.Total) / float64(time.Millisecond),
	})
}

// String returns a compact single-line summary.
func (m RequestMetrics) String() string {
	s := "total=" + m.Total.String()

	if m.DNS > 0 {
		s += " dns=" + m.DNS.String()
	}
	if m.Connect > 0 {
		s += " tcp=" + m.Connect.String()
	}
	if m.TLS > 0 {
		s += " tls=" + m.TLS.String()
	}
	s += " ttfb=" + m.TimeToFirstByte.String()
	s += " transfer=" + m.ContentTransfer.String()

	return s
}
