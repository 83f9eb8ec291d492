package quiver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestDialer() *timedDialer {
	return &timedDialer{
		resolver:  net.DefaultResolver,
		dialer:    &net.Dialer{Timeout: 2 * time.Second},
		tlsConfig: &tls.Config{InsecureSkipVerify: true},
		clock:     time.Now,
	}
}

// TestDialPlain verifies a plain dial publishes DNS and connect phases and
// leaves TLS at zero.
func TestDialPlain(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	d := newTestDialer()
	phases := &PhaseTimings{}
	ctx := withTimings(context.Background(), phases)

	conn, err := d.DialContext(ctx, "tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if phases.Connect <= 0 {
		t.Errorf("Expected positive connect duration, got %v", phases.Connect)
	}
	if phases.DNS < 0 {
		t.Errorf("Expected non-negative dns duration, got %v", phases.DNS)
	}
	if phases.TLS != 0 {
		t.Errorf("Expected zero TLS duration for plain dial, got %v", phases.TLS)
	}
}

// TestDialConnectRefused verifies a refused connect returns a ConnectError
// and publishes nothing.
func TestDialConnectRefused(t *testing.T) {
	// Grab a port and close it again so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	d := newTestDialer()
	phases := &PhaseTimings{}
	ctx := withTimings(context.Background(), phases)

	_, err = d.DialContext(ctx, "tcp", addr)
	if err == nil {
		t.Fatal("Expected error for refused connect")
	}

	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ConnectError, got %T: %v", err, err)
	}
	if *phases != (PhaseTimings{}) {
		t.Errorf("Expected no timings published on failure, got %+v", *phases)
	}
}

// TestDialDNSFailure verifies an unresolvable host returns a DNSError before
// any socket is opened.
func TestDialDNSFailure(t *testing.T) {
	d := newTestDialer()
	phases := &PhaseTimings{}
	ctx := withTimings(context.Background(), phases)

	_, err := d.DialContext(ctx, "tcp", "unresolvable-host.invalid:80")
	if err == nil {
		t.Fatal("Expected error for unresolvable host")
	}

	var de *DNSError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DNSError, got %T: %v", err, err)
	}
	if de.Host != "unresolvable-host.invalid" {
		t.Errorf("Expected host in error, got %q", de.Host)
	}
	if *phases != (PhaseTimings{}) {
		t.Errorf("Expected no timings published on failure, got %+v", *phases)
	}
}

// TestDialTLSSuccess verifies the TLS phase is timed on an encrypted dial.
func TestDialTLSSuccess(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	d := newTestDialer()
	phases := &PhaseTimings{}
	ctx := withTimings(context.Background(), phases)

	addr := strings.TrimPrefix(server.URL, "https://")
	conn, err := d.DialTLSContext(ctx, "tcp", addr)
	if err != nil {
		t.Fatalf("TLS dial failed: %v", err)
	}
	defer conn.Close()

	if phases.TLS <= 0 {
		t.Errorf("Expected positive TLS duration, got %v", phases.TLS)
	}
	if phases.Connect <= 0 {
		t.Errorf("Expected positive connect duration, got %v", phases.Connect)
	}
	if _, ok := conn.(*tls.Conn); !ok {
		t.Errorf("Expected a *tls.Conn, got %T", conn)
	}
}

// TestDialTLSHandshakeFailure verifies a peer that cannot complete a
// handshake yields a TLSHandshakeError and releases the socket.
func TestDialTLSHandshakeFailure(t *testing.T) {
	// A plain listener that closes every connection immediately; the
	// client's handshake can never complete.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	d := newTestDialer()
	phases := &PhaseTimings{}
	ctx := withTimings(context.Background(), phases)

	_, err = d.DialTLSContext(ctx, "tcp", listener.Addr().String())
	if err == nil {
		t.Fatal("Expected error for failed handshake")
	}

	var te *TLSHandshakeError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TLSHandshakeError, got %T: %v", err, err)
	}
	if *phases != (PhaseTimings{}) {
		t.Errorf("Expected no timings published on failure, got %+v", *phases)
	}
}

// TestDialWithoutCarrier verifies the dialer works standalone when no
// exchange slot is attached to the context.
func TestDialWithoutCarrier(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	d := newTestDialer()

	conn, err := d.DialContext(context.Background(), "tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Close()
}

// TestDialCancellation verifies a dead context aborts the dial.
func TestDialCancellation(t *testing.T) {
	d := newTestDialer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.DialContext(ctx, "tcp", "192.0.2.1:80")
	if err == nil {
		t.Fatal("Expected error for cancelled dial")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to unwrap to context.Canceled, got %v", err)
	}
}
