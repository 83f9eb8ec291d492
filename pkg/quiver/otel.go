package quiver

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenTelemetryConfig holds configuration for tracing exchanges.
type OpenTelemetryConfig struct {
	// Tracer to use for creating spans.
	Tracer trace.Tracer

	// SpanNameFormatter allows customizing the span name. Defaults to
	// "HTTP <method> <url>".
	SpanNameFormatter func(RequestSpec) string

	// DetailedAttributes adds per-phase duration attributes to the span.
	DetailedAttributes bool
}

// WithOpenTelemetry returns an option that wraps every exchange in a client
// span carrying the phase timings as attributes.
func WithOpenTelemetry(config OpenTelemetryConfig) Option {
	if config.SpanNameFormatter == nil {
		config.SpanNameFormatter = func(spec RequestSpec) string {
			method := spec.Method
			if method == "" {
				method = http.MethodGet
			}
			return "HTTP " + method + " " + spec.URL
		}
	}

	return func(d *Dispatcher) {
		d.otel = &config
	}
}

// SimpleOpenTelemetryConfig creates a configuration with detailed attributes
// enabled.
func SimpleOpenTelemetryConfig(tracer trace.Tracer) OpenTelemetryConfig {
	return OpenTelemetryConfig{
		Tracer:             tracer,
		DetailedAttributes: true,
	}
}

// start opens the client span for one exchange.
func (c *OpenTelemetryConfig) start(ctx context.Context, spec RequestSpec) (context.Context, trace.Span) {
	return c.Tracer.Start(ctx, c.SpanNameFormatter(spec),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", spec.Method),
			attribute.String("http.url", spec.URL),
			attribute.String("net.peer.name", hostOf(spec.URL)),
		),
	)
}

// finish records the outcome of a completed exchange on its span.
func (c *OpenTelemetryConfig) finish(span trace.Span, statusCode int, m RequestMetrics) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("http.status_text", http.StatusText(statusCode)),
	)
	if statusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if c.DetailedAttributes {
		span.SetAttributes(
			attribute.Float64("http.duration_ms", float64(m.Total.Milliseconds())),
			attribute.Float64("http.dns_duration_ms", float64(m.DNS.Milliseconds())),
			attribute.Float64("http.connect_duration_ms", float64(m.Connect.Milliseconds())),
			attribute.Float64("http.tls_duration_ms", float64(m.TLS.Milliseconds())),
			attribute.Float64("http.ttfb_ms", float64(m.TimeToFirstByte.Milliseconds())),
			attribute.Float64("http.transfer_duration_ms", float64(m.ContentTransfer.Milliseconds())),
		)
	}
}

// recordError marks the span for an exchange that produced no response.
func (c *OpenTelemetryConfig) recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
