package proxy

import (
	"context"
	"fmt"

	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
)

// Source adapts a Prober to catalog.Source.
type Source struct {
	prober *Prober
	query  string
}

// NewSource loads products through prober with the given query string.
func NewSource(prober *Prober, query string) *Source {
	return &Source{prober: prober, query: query}
}

// Name implements catalog.Source.
func (s *Source) Name() string { return "upstream" }

// LoadProducts implements catalog.Source.
func (s *Source) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	res, err := s.prober.Fetch(ctx, s.query)
	if err != nil {
		return nil, err
	}
	body, err := res.Body()
	if err != nil {
		return nil, err
	}
	products, err := catalog.DecodeProducts(body)
	if err != nil {
		return nil, fmt.Errorf("decode upstream products: %w", err)
	}
	return products, nil
}
