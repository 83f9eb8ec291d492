package quiver

import (
	"net/url"
)

// DefaultContentType is applied to requests that carry a body but declare no
// content type of their own.
const DefaultContentType = "application/json"

// Header is a single name/value pair. RequestSpec keeps headers as an ordered
// slice rather than a map so that insertion order survives and duplicate
// names are forwarded as given.
type Header struct {
	Name  string
	Value string
}

// RequestSpec describes one HTTP exchange. It is consumed by Dispatcher.Send
// and never mutated; the same spec can be sent any number of times.
//
// Method is used exactly as provided, with no case normalization, so
// intentionally lower-case or non-standard method tokens pass through to the
// wire untouched.
type RequestSpec struct {
	// Method is the HTTP method token. Empty means GET.
	Method string

	// URL is the absolute target URL.
	URL string

	// Headers are forwarded in order, duplicates included. A Connection
	// header is the one exception: the dispatcher always replaces it with
	// "close".
	Headers []Header

	// Body is the raw request body. A nil or empty body means the request
	// is sent without one.
	Body []byte

	// ContentType overrides the Content-Type header when a body is present.
	// When empty and no Content-Type header is supplied, DefaultContentType
	// is used.
	ContentType string
}

// validate checks the spec before any network I/O happens.
func (s RequestSpec) validate() error {
	if s.URL == "" {
		return &InvalidRequestError{Reason: "empty URL"}
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return &InvalidRequestError{Reason: "malformed URL", Err: err}
	}
	if !u.IsAbs() {
		return &InvalidRequestError{Reason: "URL must be absolute: " + s.URL}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidRequestError{Reason: "unsupported scheme: " + u.Scheme}
	}
	if u.Host == "" {
		return &InvalidRequestError{Reason: "URL has no host: " + s.URL}
	}
	return nil
}
