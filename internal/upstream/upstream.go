// Package upstream defines the HTTP fetch contract shared by the catalog
// proxy and the media preloader.
package upstream

import (
	"context"
	"net/http"
	"time"
)

// Request describes a single GET against an upstream service.
type Request struct {
	URL     string
	Headers http.Header
}

// Response is the captured upstream reply. Non-2xx replies are returned as
// responses, not errors; errors are reserved for transport failures.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs upstream requests.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// RetryPolicy decides whether and when to retry a failed attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
