package quiver

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig holds the collectors the dispatcher feeds after each
// exchange. Any nil collector is simply skipped.
type PrometheusConfig struct {
	// DurationHistogram tracks phase durations, labelled by phase, method,
	// host, code and status.
	DurationHistogram *prometheus.HistogramVec

	// RequestCounter counts exchanges, labelled by method, host, code and
	// status.
	RequestCounter *prometheus.CounterVec

	// InFlightGauge tracks exchanges currently being executed.
	InFlightGauge prometheus.Gauge

	// DetailedMetrics enables per-phase histogram observations in addition
	// to the total.
	DetailedMetrics bool
}

// WithPrometheus returns an option that enables Prometheus metrics
// collection on the dispatcher.
func WithPrometheus(config PrometheusConfig) Option {
	return func(d *Dispatcher) {
		d.prom = &config
	}
}

// observe records one completed exchange.
func (c *PrometheusConfig) observe(method, host string, statusCode int, m RequestMetrics) {
	code := strconv.Itoa(statusCode)

	if c.RequestCounter != nil {
		c.RequestCounter.With(prometheus.Labels{
			"method": method,
			"host":   host,
			"code":   code,
			"status": "success",
		}).Inc()
	}

	if c.DurationHistogram == nil {
		return
	}

	c.observePhase("total", method, host, code, m.Total.Seconds())

	if !c.DetailedMetrics {
		return
	}
	if m.DNS > 0 {
		c.observePhase("dns", method, host, code, m.DNS.Seconds())
	}
	if m.Connect > 0 {
		c.observePhase("connect", method, host, code, m.Connect.Seconds())
	}
	if m.TLS > 0 {
		c.observePhase("tls", method, host, code, m.TLS.Seconds())
	}
	if m.TimeToFirstByte > 0 {
		c.observePhase("ttfb", method, host, code, m.TimeToFirstByte.Seconds())
	}
	if m.ContentTransfer > 0 {
		c.observePhase("transfer", method, host, code, m.ContentTransfer.Seconds())
	}
}

// observeFailure counts an exchange that produced no response.
func (c *PrometheusConfig) observeFailure(method, host string) {
	if c.RequestCounter != nil {
		c.RequestCounter.With(prometheus.Labels{
			"method": method,
			"host":   host,
			"code":   "0",
			"status": "error",
		}).Inc()
	}
}

func (c *PrometheusConfig) observePhase(phase, method, host, code string, seconds float64) {
	c.DurationHistogram.With(prometheus.Labels{
		"phase":  phase,
		"method": method,
		"host":   host,
		"code":   code,
		"status": "success",
	}).Observe(seconds)
}

// DefaultPrometheusHistogram creates a default histogram for exchange phase
// durations.
func DefaultPrometheusHistogram() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quiver_exchange_phase_duration_seconds",
			Help: "Duration of HTTP exchange phases in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
				10.0,  // 10s
			},
		},
		[]string{"phase", "method", "host", "code", "status"},
	)
}

// DefaultPrometheusCounter creates a default counter for exchanges.
func DefaultPrometheusCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiver_exchanges_total",
			Help: "Total number of HTTP exchanges",
		},
		[]string{"method", "host", "code", "status"},
	)
}

// DefaultPrometheusInFlightGauge creates a default gauge for in-flight
// exchanges.
func DefaultPrometheusInFlightGauge() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quiver_in_flight_exchanges",
		Help: "Number of HTTP exchanges currently in flight",
	})
}

// SimplePrometheusConfig creates a configuration with the default collectors
// and registers them on the default registry.
func SimplePrometheusConfig() PrometheusConfig {
	hist := DefaultPrometheusHistogram()
	counter := DefaultPrometheusCounter()
	gauge := DefaultPrometheusInFlightGauge()

	prometheus.MustRegister(hist, counter, gauge)

	return PrometheusConfig{
		DurationHistogram: hist,
		RequestCounter:    counter,
		InFlightGauge:     gauge,
		DetailedMetrics:   true,
	}
}

// UnregisterPrometheusMetrics unregisters the configured collectors (useful
// for testing).
func UnregisterPrometheusMetrics(config PrometheusConfig) {
	if config.DurationHistogram != nil {
		prometheus.Unregister(config.DurationHistogram)
	}
	if config.RequestCounter != nil {
		prometheus.Unregister(config.RequestCounter)
	}
	if config.InFlightGauge != nil {
		prometheus.Unregister(config.InFlightGauge)
	}
}
