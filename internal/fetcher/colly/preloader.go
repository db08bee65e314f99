package collyfetcher

import (
	"context"
	"fmt"

	"github.com/JakeFAU/adhesive-catalog/internal/carousel"
	"github.com/JakeFAU/adhesive-catalog/internal/upstream"
)

var _ carousel.Preloader = (*Preloader)(nil)

// Preloader warms carousel media assets by fetching them once.
type Preloader struct {
	fetcher upstream.Fetcher
}

// NewPreloader wraps fetcher.
func NewPreloader(fetcher upstream.Fetcher) *Preloader {
	return &Preloader{fetcher: fetcher}
}

// Preload fetches url and reports a non-2xx status as an error.
func (p *Preloader) Preload(ctx context.Context, url string) error {
	resp, err := p.fetcher.Fetch(ctx, upstream.Request{URL: url})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("preload %s: status %d", url, resp.StatusCode)
	}
	return nil
}
