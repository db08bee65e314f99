package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
)

// PrometheusSink exports search outcome metrics via Prometheus.
type PrometheusSink struct {
	searches       *prometheus.CounterVec
	productMatches prometheus.Histogram
	articleMatches prometheus.Histogram
}

// NewPrometheusSink registers the collectors against reg. Collectors that are
// already registered are reused, so several hubs can share one registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	searches, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_search_events_total",
		Help: "Searches seen by the analytics hub partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	products, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_search_product_matches",
		Help:    "Matching products per search before the result cap.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	}))
	if err != nil {
		return nil, err
	}
	articles, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_search_article_matches",
		Help:    "Matching articles per search.",
		Buckets: []float64{0, 1, 2, 5, 10},
	}))
	if err != nil {
		return nil, err
	}
	return &PrometheusSink{searches: searches, productMatches: products, articleMatches: articles}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register analytics collector: %w", err)
	}
	return c, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []analytics.Event) error {
	for _, evt := range batch {
		result := "hit"
		if evt.Empty() {
			result = "empty"
		}
		s.searches.WithLabelValues(result).Inc()
		s.productMatches.Observe(float64(evt.ProductMatches))
		s.articleMatches.Observe(float64(evt.ArticleMatches))
	}
	return nil
}

// Close implements analytics.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
