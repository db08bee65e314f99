package analytics

import (
	"errors"
	"time"
)

// Event describes one global search.
type Event struct {
	// ID is a unique event id (UUID).
	ID string `json:"id"`
	// Term is the trimmed search term as typed.
	Term string `json:"term"`
	// ProductMatches is the total number of matching products before capping.
	ProductMatches int `json:"productMatches"`
	// ArticleMatches is the number of articles returned.
	ArticleMatches int `json:"articleMatches"`
	// CatalogVersion identifies the snapshot the search ran against.
	CatalogVersion string `json:"catalogVersion,omitempty"`
	// RequestID ties the event to the HTTP request log line.
	RequestID string `json:"requestId,omitempty"`
	// At is the UTC time of the search.
	At time.Time `json:"at"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.Term == "" {
		return errors.New("search term is required")
	}
	if e.At.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.ProductMatches < 0 || e.ArticleMatches < 0 {
		return errors.New("match counts must be >= 0")
	}
	return nil
}

// Empty reports whether the search returned nothing.
func (e Event) Empty() bool {
	return e.ProductMatches == 0 && e.ArticleMatches == 0
}
