package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
)

// LogSink writes each search event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []analytics.Event) error {
	for _, evt := range batch {
		s.logger.Info("search",
			zap.String("event_id", evt.ID),
			zap.String("term", evt.Term),
			zap.Int("product_matches", evt.ProductMatches),
			zap.Int("article_matches", evt.ArticleMatches),
			zap.Bool("empty", evt.Empty()),
			zap.String("catalog_version", evt.CatalogVersion),
			zap.String("request_id", evt.RequestID),
			zap.Time("at", evt.At),
		)
	}
	return nil
}

// Close implements analytics.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
