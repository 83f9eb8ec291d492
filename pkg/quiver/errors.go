package quiver

import (
	"context"
	"errors"
)

// DNSError reports a failed host name resolution. The connection attempt is
// abandoned before any socket is opened.
type DNSError struct {
	Host string
	Err  error
}

func (e *DNSError) Error() string {
	return "quiver: dns lookup for " + e.Host + ": " + e.Err.Error()
}

func (e *DNSError) Unwrap() error { return e.Err }

// ConnectError reports a failed TCP connect: refused, timed out, or
// unreachable. The socket is released before the error is returned.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return "quiver: connect to " + e.Addr + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TLSHandshakeError reports a certificate or protocol negotiation failure.
// The underlying TCP connection is released before the error is returned.
type TLSHandshakeError struct {
	Host string
	Err  error
}

func (e *TLSHandshakeError) Error() string {
	return "quiver: tls handshake with " + e.Host + ": " + e.Err.Error()
}

func (e *TLSHandshakeError) Unwrap() error { return e.Err }

// TransportError reports a send or receive failure after the connection was
// established, such as a peer reset mid-response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "quiver: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// CancelledError reports that the exchange was aborted by the caller's
// context or by the overall timeout. errors.Is still matches
// context.Canceled or context.DeadlineExceeded through Unwrap.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return "quiver: exchange cancelled: " + e.Err.Error()
}

func (e *CancelledError) Unwrap() error { return e.Err }

// InvalidRequestError reports a malformed URL or unusable method/header
// input, detected before any network I/O.
type InvalidRequestError struct {
	Reason string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	msg := "quiver: invalid request: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// classifyExchangeError maps an error from the transport stack onto the
// package's error kinds. Cancellation is checked first: a dial aborted by a
// dead context is a cancellation, not a connect failure. Connector errors
// pass through unchanged; anything else that happened after the connection
// was up becomes a TransportError.
func classifyExchangeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CancelledError{Err: err}
	}

	var dnsErr *DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return connErr
	}
	var tlsErr *TLSHandshakeError
	if errors.As(err, &tlsErr) {
		return tlsErr
	}
	var invErr *InvalidRequestError
	if errors.As(err, &invErr) {
		return invErr
	}

	return &TransportError{Err: err}
}
