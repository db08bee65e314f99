package proxy

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUpstreamStatus is wrapped by UpstreamError.
var ErrUpstreamStatus = errors.New("proxy: upstream returned an error status")

// UpstreamError carries a non-2xx upstream status for pass-through.
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

// Unwrap allows errors.Is(err, ErrUpstreamStatus).
func (e *UpstreamError) Unwrap() error { return ErrUpstreamStatus }

// Message is the client-facing error text.
func (e *UpstreamError) Message() string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return "Upstream API error: " + text
	}
	return fmt.Sprintf("Upstream API error: status %d", e.StatusCode)
}
