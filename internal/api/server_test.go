package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/policy/ratelimit"
	"github.com/JakeFAU/adhesive-catalog/internal/proxy"
)

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "EP-1", Name: "Epoxy Pro", ShortName: "EP", Category: catalog.CategoryBond, Industry: []string{"Aerospace", "Automotive"}, Chemistry: "Epoxy"},
		{ID: "EP-1", Name: "Epoxy Pro EU", Category: catalog.CategoryBond, Industry: []string{"Automotive"}, Chemistry: "Epoxy"},
		{ID: "CA-2", Name: "Cyano Fast", Category: catalog.CategoryBond, Industry: []string{"Electronics"}, Chemistry: "Cyanoacrylate"},
		{ID: "SI-3", Name: "Silicone Seal", Category: catalog.CategorySeal, Industry: []string{"Construction"}, Chemistry: "Silicone"},
		{ID: "TP-4", Name: "Acrylic Foam Tape", Category: catalog.CategoryTape, Industry: []string{"Automotive"}, Chemistry: "Acrylic"},
	}
}

func testArticles() []catalog.Article {
	return []catalog.Article{
		{ID: "epoxy-guide", Title: "Choosing an epoxy", Excerpt: "Cure and gap fill", Category: "Bonding", HTML: "<p>body</p>"},
	}
}

func newHolder(products []catalog.Product) *catalog.Holder {
	h := catalog.NewHolder()
	h.Store(catalog.NewSnapshot(products, testArticles(), catalog.SnapshotMeta{Source: "test", Version: "v1"}))
	return h
}

type fakeIDGen struct {
	mu   sync.Mutex
	next int
}

func (f *fakeIDGen) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return "id-" + string(rune('0'+f.next)), nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type recordingEmitter struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (e *recordingEmitter) Emit(evt analytics.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) Events() []analytics.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]analytics.Event(nil), e.events...)
}

type fetcherFunc func(ctx context.Context, rawQuery string) (proxy.Result, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawQuery string) (proxy.Result, error) {
	return f(ctx, rawQuery)
}

func newTestServer(deps Deps) *Server {
	if deps.Catalog == nil {
		deps.Catalog = newHolder(testProducts())
	}
	if deps.IDs == nil {
		deps.IDs = &fakeIDGen{}
	}
	if deps.Clock == nil {
		deps.Clock = fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	}
	return NewServer(deps, 5*time.Second, zap.NewNop())
}

func do(t *testing.T, s *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestHealthAndReadiness verifies readiness follows the catalog holder.
func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	empty := newTestServer(Deps{Catalog: catalog.NewHolder()})
	require.Equal(t, http.StatusOK, do(t, empty, "/healthz").Code)
	require.Equal(t, http.StatusServiceUnavailable, do(t, empty, "/readyz").Code)

	ready := newTestServer(Deps{})
	rec := do(t, ready, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"products":5`)
}

// TestRequestIDHeader verifies ids are assigned or echoed.
func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	require.Equal(t, "id-1", do(t, s, "/healthz").Header().Get("X-Request-ID"))
	require.Equal(t, "abc", do(t, s, "/healthz", "X-Request-ID", "abc").Header().Get("X-Request-ID"))
}

// TestProxyPassesThroughBody verifies the array body, query pass-through and cache headers.
func TestProxyPassesThroughBody(t *testing.T) {
	t.Parallel()

	var gotQuery string
	s := newTestServer(Deps{Products: fetcherFunc(func(_ context.Context, q string) (proxy.Result, error) {
		gotQuery = q
		return proxy.Result{Items: []json.RawMessage{json.RawMessage(`{"id":"A"}`)}, Variant: "limit=500"}, nil
	})})

	rec := do(t, s, "/api/products?all=true&include_unpublished=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "all=true&include_unpublished=true", gotQuery)
	require.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	require.Equal(t, "limit=500", rec.Header().Get("X-Catalog-Variant"))
	require.JSONEq(t, `[{"id":"A"}]`, rec.Body.String())
}

// TestProxyMapsErrors verifies upstream status pass-through and the generic 500.
func TestProxyMapsErrors(t *testing.T) {
	t.Parallel()

	upstreamDown := newTestServer(Deps{Products: fetcherFunc(func(context.Context, string) (proxy.Result, error) {
		return proxy.Result{}, &proxy.UpstreamError{StatusCode: http.StatusBadGateway, URL: "https://api.example.com/products"}
	})})
	rec := do(t, upstreamDown, "/api/products")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"error":"Upstream API error: Bad Gateway"}`, rec.Body.String())
	require.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	broken := newTestServer(Deps{Products: fetcherFunc(func(context.Context, string) (proxy.Result, error) {
		return proxy.Result{}, errors.New("connection reset")
	})})
	rec = do(t, broken, "/api/products")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	require.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}

// TestProxyWithoutUpstreamServesCatalog verifies the local fallback shape.
func TestProxyWithoutUpstreamServesCatalog(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(Deps{}), "/api/products")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 5)
}

// TestListProductsFilters verifies query parsing and facet counts in the response.
func TestListProductsFilters(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	rec := do(t, s, "/api/catalog/products?category=bond&industry=Automotive&chemistry=Epoxy,Acrylic&sort=desc")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Products []struct {
			Name string `json:"name"`
		} `json:"products"`
		Total   int                 `json:"total"`
		Facets  catalog.FacetCounts `json:"facets"`
		Version string              `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)
	require.Equal(t, "Epoxy Pro EU", body.Products[0].Name)
	require.Equal(t, "Epoxy Pro", body.Products[1].Name)
	require.Equal(t, 1, body.Facets.ByCategory[catalog.CategoryTape])
	require.Equal(t, "v1", body.Version)
	require.Equal(t, `"v1"`, rec.Header().Get("ETag"))
}

// TestListProductsRejectsBadParams verifies 400 on unknown category or sort.
func TestListProductsRejectsBadParams(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	require.Equal(t, http.StatusBadRequest, do(t, s, "/api/catalog/products?category=glue").Code)
	require.Equal(t, http.StatusBadRequest, do(t, s, "/api/catalog/products?sort=sideways").Code)
}

// TestListProductsNoMatch verifies an empty result is a 200 with an empty array.
func TestListProductsNoMatch(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(Deps{}), "/api/catalog/products?q=zzzz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"products":[]`)
	require.Contains(t, rec.Body.String(), `"total":0`)
}

// TestETagNotModified verifies conditional requests on catalog endpoints.
func TestETagNotModified(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	for _, path := range []string{"/api/catalog/products", "/api/catalog/facets", "/api/articles"} {
		rec := do(t, s, path, "If-None-Match", `W/"v1"`)
		require.Equal(t, http.StatusNotModified, rec.Code, path)
		require.Empty(t, rec.Body.String())
	}
	require.Equal(t, http.StatusOK, do(t, s, "/api/catalog/products", "If-None-Match", `"v0"`).Code)
}

// TestGetProductReturnsDuplicates verifies every record sharing an id is returned.
func TestGetProductReturnsDuplicates(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	rec := do(t, s, "/api/catalog/products/EP-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Products []map[string]any `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Products, 2)

	require.Equal(t, http.StatusNotFound, do(t, s, "/api/catalog/products/NOPE").Code)
}

// TestFacetsEndpoint verifies options and unfiltered counts.
func TestFacetsEndpoint(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(Deps{}), "/api/catalog/facets")
	require.Equal(t, http.StatusOK, rec.Code)
	var body facetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 5, body.Total)
	require.Equal(t, 3, body.Counts.ByCategory[catalog.CategoryBond])
	require.Equal(t, 3, body.Counts.ByIndustry["Automotive"])
	require.Contains(t, body.Options.Chemistries, "Silicone")
}

// TestSearchEmitsAnalytics verifies ranking output and the emitted event.
func TestSearchEmitsAnalytics(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	s := newTestServer(Deps{Analytics: emitter})

	rec := do(t, s, "/api/search?q=+epoxy+", "X-Request-ID", "req-9")
	require.Equal(t, http.StatusOK, rec.Code)
	var body catalog.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.TotalProducts)
	require.Len(t, body.Articles, 1)

	events := emitter.Events()
	require.Len(t, events, 1)
	require.Equal(t, "epoxy", events[0].Term)
	require.Equal(t, 2, events[0].ProductMatches)
	require.Equal(t, "req-9", events[0].RequestID)
	require.Equal(t, "v1", events[0].CatalogVersion)
	require.NoError(t, events[0].Validate())
}

// TestSearchShortTermSkipsAnalytics verifies one-character terms return empty and emit nothing.
func TestSearchShortTermSkipsAnalytics(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	s := newTestServer(Deps{Analytics: emitter})
	rec := do(t, s, "/api/search?q=e")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"products":[],"articles":[],"totalProducts":0}`, rec.Body.String())
	require.Empty(t, emitter.Events())
}

// TestArticles verifies the summary list and the rendered body.
func TestArticles(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	rec := do(t, s, "/api/articles")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "html")

	rec = do(t, s, "/api/articles/epoxy-guide")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"html":"<p>body</p>"`)

	require.Equal(t, http.StatusNotFound, do(t, s, "/api/articles/missing").Code)
}

// TestRateLimitAppliesToAPIOnly verifies /api is limited and probes are not.
func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: 1})
	s := newTestServer(Deps{Limiter: limiter.Middleware})

	require.Equal(t, http.StatusOK, do(t, s, "/api/catalog/facets").Code)
	require.Equal(t, http.StatusTooManyRequests, do(t, s, "/api/catalog/facets").Code)
	require.Equal(t, http.StatusOK, do(t, s, "/healthz").Code)
	require.Equal(t, http.StatusOK, do(t, s, "/healthz").Code)
}

// TestRecoverMiddleware verifies panics become a JSON 500.
func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{})
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

// TestEtagMatches covers list and wildcard forms.
func TestEtagMatches(t *testing.T) {
	t.Parallel()

	require.True(t, etagMatches(`"a", "b"`, `"b"`))
	require.True(t, etagMatches(`*`, `"b"`))
	require.False(t, etagMatches(``, `"b"`))
	require.False(t, etagMatches(`"a"`, `"b"`))
}

// TestProxyFetchEndsBeforeRequestTimeout verifies a slow upstream fetch is cut
// off in time to answer with the proxy's own error instead of the timeout body.
func TestProxyFetchEndsBeforeRequestTimeout(t *testing.T) {
	t.Parallel()

	remaining := make(chan time.Duration, 1)
	slow := fetcherFunc(func(ctx context.Context, _ string) (proxy.Result, error) {
		deadline, ok := ctx.Deadline()
		if ok {
			remaining <- time.Until(deadline)
		}
		<-ctx.Done()
		return proxy.Result{}, ctx.Err()
	})
	s := NewServer(Deps{Catalog: newHolder(testProducts()), Products: slow, IDs: &fakeIDGen{}}, 250*time.Millisecond, zap.NewNop())

	rec := do(t, s, "/api/products")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	require.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	select {
	case d := <-remaining:
		require.Positive(t, d)
		require.LessOrEqual(t, d, 200*time.Millisecond)
	default:
		t.Fatal("fetch ran without a deadline")
	}
}

// TestFetchBudget checks the margin left for writing the response.
func TestFetchBudget(t *testing.T) {
	t.Parallel()

	require.Zero(t, fetchBudget(0))
	require.Equal(t, 800*time.Millisecond, fetchBudget(time.Second))
	require.Equal(t, 28*time.Second, fetchBudget(30*time.Second))
}
