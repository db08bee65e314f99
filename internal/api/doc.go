// Package api hosts the HTTP server, middleware, and JSON handlers of the
// catalog site. Notable routes:
//   - GET /healthz and /readyz for probes; ready once a catalog is loaded.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/products, the upstream product proxy.
//   - GET /api/catalog/... for filtering, facets and product lookup.
//   - GET /api/search and /api/articles for the header search and knowledge base.
package api
