package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/telemetry"
)

type productsResponse struct {
	catalog.Result
	Version string `json:"version"`
}

type facetsResponse struct {
	Options catalog.FacetOptions `json:"options"`
	Counts  catalog.FacetCounts  `json:"counts"`
	Total   int                  `json:"total"`
	Version string               `json:"version"`
}

type articleSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	if notModified(w, r, snap) {
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, productsResponse{Result: snap.Filter(q), Version: snap.Meta().Version})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	if notModified(w, r, snap) {
		return
	}
	products, err := snap.Lookup(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) facets(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	if notModified(w, r, snap) {
		return
	}
	all := snap.Filter(catalog.Query{Category: catalog.CategoryAll, Industry: catalog.IndustryAll})
	writeJSON(w, http.StatusOK, facetsResponse{
		Options: snap.Options(),
		Counts:  all.Facets,
		Total:   all.Total,
		Version: snap.Meta().Version,
	})
}

// search runs the header search and records the query when it was long
// enough to run.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	res := snap.Search(term)
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, res)

	if utf8.RuneCountInString(term) < catalog.MinSearchTermLength {
		return
	}
	telemetry.ObserveSearch(res.TotalProducts > 0 || len(res.Articles) > 0)
	s.analytics.Emit(analytics.Event{
		ID:             s.newID(),
		Term:           term,
		ProductMatches: res.TotalProducts,
		ArticleMatches: len(res.Articles),
		CatalogVersion: snap.Meta().Version,
		RequestID:      RequestIDFromContext(r.Context()),
		At:             s.now().UTC(),
	})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	if notModified(w, r, snap) {
		return
	}
	articles := snap.Articles()
	out := make([]articleSummary, 0, len(articles))
	for _, a := range articles {
		out = append(out, articleSummary{ID: a.ID, Title: a.Title, Excerpt: a.Excerpt, Image: a.Image, Category: a.Category})
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": out})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Current()
	if notModified(w, r, snap) {
		return
	}
	article, err := snap.Article(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// parseQuery maps q, category, industry, chemistry and sort onto a Query.
// chemistry may repeat and may hold comma-separated values.
func parseQuery(r *http.Request) (catalog.Query, error) {
	values := r.URL.Query()
	category, err := catalog.ParseCategory(values.Get("category"))
	if err != nil {
		return catalog.Query{}, err
	}
	sortDir, ok := catalog.ParseSortDirection(values.Get("sort"))
	if !ok {
		return catalog.Query{}, errors.New("sort must be asc or desc")
	}
	industry := strings.TrimSpace(values.Get("industry"))
	if industry == "" || strings.EqualFold(industry, catalog.IndustryAll) {
		industry = catalog.IndustryAll
	}
	var chemistries []string
	for _, raw := range values["chemistry"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				chemistries = append(chemistries, c)
			}
		}
	}
	return catalog.Query{
		Term:        values.Get("q"),
		Category:    category,
		Industry:    industry,
		Chemistries: chemistries,
		Sort:        sortDir,
	}, nil
}

// notModified sets the snapshot ETag and answers 304 when the client already
// holds it.
func notModified(w http.ResponseWriter, r *http.Request, snap *catalog.Snapshot) bool {
	version := snap.Meta().Version
	if version == "" {
		return false
	}
	etag := `"` + version + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func etagMatches(raw, etag string) bool {
	if raw == "" {
		return false
	}
	for _, candidate := range strings.Split(raw, ",") {
		trimmed := strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if trimmed == "*" || trimmed == etag {
			return true
		}
	}
	return false
}
