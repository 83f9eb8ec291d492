package quiver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"
)

// timedDialer opens connections for the dispatcher's transport, timing each
// establishment phase independently on a monotonic clock: DNS lookup, TCP
// connect, and, for encrypted schemes, the TLS handshake.
//
// A successful dial publishes its completed PhaseTimings into the exchange's
// carrier slot (threaded through the request context by Send). Failed
// attempts publish nothing and release every socket they opened.
type timedDialer struct {
	resolver  *net.Resolver
	dialer    *net.Dialer
	tlsConfig *tls.Config
	clock     func() time.Time
}

// DialContext establishes a plain TCP connection. Used by the transport for
// http:// targets.
func (d *timedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, phases, err := d.dialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, phases)
	return conn, nil
}

// DialTLSContext establishes a TCP connection and layers a TLS client
// session on top of it. Used by the transport for https:// targets; the
// transport performs no TLS of its own when this hook is set.
func (d *timedDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, phases, err := d.dialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}

	host, _, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		host = addr
	}

	cfg := d.tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}

	tlsConn := tls.Client(conn, cfg)
	start := d.clock()
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, &TLSHandshakeError{Host: host, Err: err}
	}
	phases.TLS = d.clock().Sub(start)

	d.publish(ctx, phases)
	return tlsConn, nil
}

// dialTCP resolves the host and connects to the resolved addresses in order,
// returning the first connection that succeeds. The returned phase record
// has DNS and Connect filled in; the caller owns the connection.
func (d *timedDialer) dialTCP(ctx context.Context, addr string) (net.Conn, PhaseTimings, error) {
	var phases PhaseTimings

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, phases, &InvalidRequestError{Reason: "bad dial address " + addr, Err: err}
	}

	ips, err := d.resolve(ctx, host, &phases)
	if err != nil {
		return nil, phases, err
	}

	start := d.clock()
	var conn net.Conn
	var dialErr error
	for _, ip := range ips {
		conn, dialErr = d.dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), port))
		if dialErr == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	phases.Connect = d.clock().Sub(start)

	if dialErr != nil {
		return nil, phases, &ConnectError{Addr: addr, Err: dialErr}
	}

	// Disable send-delay batching; a phase-timing client wants every write
	// on the wire immediately.
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	return conn, phases, nil
}

// resolve looks up the host, recording the elapsed time even when the host
// is already an IP literal (the lookup is then trivially instant).
func (d *timedDialer) resolve(ctx context.Context, host string, phases *PhaseTimings) ([]net.IP, error) {
	start := d.clock()

	if ip := net.ParseIP(host); ip != nil {
		phases.DNS = d.clock().Sub(start)
		return []net.IP{ip}, nil
	}

	ipAddrs, err := d.resolver.LookupIPAddr(ctx, host)
	phases.DNS = d.clock().Sub(start)
	if err != nil {
		return nil, &DNSError{Host: host, Err: err}
	}
	if len(ipAddrs) == 0 {
		return nil, &DNSError{Host: host, Err: errors.New("no addresses returned")}
	}

	ips := make([]net.IP, 0, len(ipAddrs))
	for _, ia := range ipAddrs {
		ips = append(ips, ia.IP)
	}
	return ips, nil
}

// publish hands the completed phase record to the exchange that initiated
// the dial. No-op when the dialer is driven outside a dispatcher exchange.
func (d *timedDialer) publish(ctx context.Context, phases PhaseTimings) {
	if slot := timingsFromContext(ctx); slot != nil {
		*slot = phases
	}
}
