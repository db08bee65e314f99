package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/proxy"
	"github.com/JakeFAU/adhesive-catalog/internal/telemetry"
)

// CatalogReader exposes the current catalog snapshot.
type CatalogReader interface {
	Current() *catalog.Snapshot
	Ready() bool
}

// ProductFetcher fetches the upstream product array for the proxy route.
type ProductFetcher interface {
	Fetch(ctx context.Context, rawQuery string) (proxy.Result, error)
}

// IDGenerator creates request and event ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Deps bundles the collaborators the handlers need. Products and Analytics are
// optional; Limiter nil disables rate limiting.
type Deps struct {
	Catalog   CatalogReader
	Products  ProductFetcher
	Analytics analytics.Emitter
	IDs       IDGenerator
	Clock     Clock
	Limiter   func(http.Handler) http.Handler
}

// Server wires HTTP handlers to the catalog, proxy and analytics.
type Server struct {
	router    chi.Router
	catalog   CatalogReader
	products  ProductFetcher
	analytics analytics.Emitter
	ids       IDGenerator
	clock     Clock
	logger    *zap.Logger
	// fetchBudget bounds an upstream products fetch so it ends before the
	// request timeout does.
	fetchBudget time.Duration
}

// NewServer constructs a Server with middleware and routes. requestTimeout
// bounds every handler; zero disables the bound.
func NewServer(deps Deps, requestTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:   deps.Catalog,
		products:  deps.Products,
		analytics: deps.Analytics,
		ids:       deps.IDs,
		clock:     deps.Clock,
		logger:    logger,

		fetchBudget: fetchBudget(requestTimeout),
	}
	if s.analytics == nil {
		s.analytics = analytics.NopEmitter{}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(s.recoverMiddleware)
	if requestTimeout > 0 {
		r.Use(timeoutMiddleware(requestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(deps.Limiter)
		}
		r.Get("/products", s.proxyProducts)
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", s.listProducts)
			r.Get("/products/{id}", s.getProduct)
			r.Get("/facets", s.facets)
		})
		r.Get("/search", s.search)
		r.Get("/articles", s.listArticles)
		r.Get("/articles/{id}", s.getArticle)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil || !s.catalog.Ready() {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
		return
	}
	meta := s.catalog.Current().Meta()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"source":   meta.Source,
		"version":  meta.Version,
		"products": s.catalog.Current().Len(),
	})
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
