package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/proxy"
)

const (
	noStore = "no-cache, no-store, must-revalidate"

	maxFetchMargin = 2 * time.Second
)

// fetchBudget leaves a fifth of the request timeout, at most maxFetchMargin,
// for writing the response.
func fetchBudget(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 0
	}
	return requestTimeout - min(requestTimeout/5, maxFetchMargin)
}

// proxyProducts relays the upstream product array. The query string is passed
// through untouched. Without a configured upstream the current catalog is
// served in the same shape.
func (s *Server) proxyProducts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", noStore)

	if s.products == nil {
		writeJSON(w, http.StatusOK, s.catalog.Current().Products())
		return
	}

	ctx := r.Context()
	if s.fetchBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchBudget)
		defer cancel()
	}
	res, err := s.products.Fetch(ctx, r.URL.RawQuery)
	if err != nil {
		var upErr *proxy.UpstreamError
		if errors.As(err, &upErr) {
			s.logger.Warn("upstream rejected products request",
				zap.Int("status", upErr.StatusCode),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			)
			writeError(w, upErr.StatusCode, upErr.Message())
			return
		}
		s.logger.Error("products proxy failed",
			zap.Error(err),
			zap.String("request_id", RequestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	body, err := res.Body()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if res.Variant != "" {
		w.Header().Set("X-Catalog-Variant", res.Variant)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write products response", zap.Error(err))
	}
}
