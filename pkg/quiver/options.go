package quiver

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option is a functional option for configuring a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the overall per-exchange budget applied when the caller's
// context has no deadline. The default is DefaultTimeout.
func WithTimeout(total time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = total
	}
}

// WithDialTimeout bounds the TCP connect phase on its own, independent of
// the overall budget.
func WithDialTimeout(connect time.Duration) Option {
	return func(d *Dispatcher) {
		d.dialTimeout = connect
	}
}

// WithTLSConfig supplies a base TLS configuration. The dispatcher clones it
// per connection and fills in the server name when unset.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(d *Dispatcher) {
		d.tlsConfig = cfg
	}
}

// WithInsecureTLS skips certificate chain verification. Intended for
// self-signed or internal endpoints during API testing; the default is full
// verification.
func WithInsecureTLS(insecure bool) Option {
	return func(d *Dispatcher) {
		d.insecure = insecure
	}
}

// WithTransport replaces the dispatcher's transport entirely. Phase timings
// then come out zero unless the transport dials through the dispatcher;
// mainly useful for injecting fakes in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Dispatcher) {
		d.transport = rt
	}
}

// WithClock sets a custom clock function for testing.
// This allows deterministic testing of timing logic.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithLogger attaches a logger; the dispatcher emits one debug event per
// exchange. The default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}
