// Package quiver executes single HTTP exchanges while measuring each
// connection-establishment phase independently.
//
// A Dispatcher opens a fresh connection per exchange and times DNS lookup,
// TCP connect, and TLS handshake with a monotonic clock, then derives time
// to first byte and content transfer from the overall wall-clock measurement.
// The result travels back alongside the response, so concurrent exchanges
// never share timing state.
//
// Basic usage:
//
//	d := quiver.New()
//
//	resp, err := d.Send(context.Background(), quiver.RequestSpec{
//	    Method: "GET",
//	    URL:    "https://example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("status: %d\n", resp.StatusCode)
//	fmt.Printf("dns:    %v\n", resp.Metrics.DNS)
//	fmt.Printf("tcp:    %v\n", resp.Metrics.Connect)
//	fmt.Printf("tls:    %v\n", resp.Metrics.TLS)
//	fmt.Printf("ttfb:   %v\n", resp.Metrics.TimeToFirstByte)
//	fmt.Printf("total:  %v\n", resp.Metrics.Total)
//
// The dispatcher is safe for concurrent use; each call to Send owns its own
// timing record. Configuration uses functional options:
//
//	d := quiver.New(
//	    quiver.WithTimeout(10*time.Second),
//	    quiver.WithInsecureTLS(true),
//	    quiver.WithLogger(logger),
//	    quiver.WithPrometheus(promConfig),
//	)
//
// Errors surface as distinct kinds (*DNSError, *ConnectError,
// *TLSHandshakeError, *TransportError, *CancelledError and
// *InvalidRequestError) and always wrap the underlying cause, so errors.Is
// and errors.As keep working through them. No retries are performed: one call
// to Send is exactly one connection attempt and one exchange.
package quiver
