package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/adhesive-catalog/internal/fetcher/colly"
	"github.com/JakeFAU/adhesive-catalog/internal/upstream"
)

func itemsJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"id":"P%d","name":"Product %d","category":"BOND"}`, i, i)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// recordingServer answers with a product count chosen from the query.
type recordingServer struct {
	mu      sync.Mutex
	queries []string
	count   func(r *http.Request) int
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.RawQuery)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(itemsJSON(s.count(r))))
}

func (s *recordingServer) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func newProber(t *testing.T, srvURL string, cfg Config) *Prober {
	t.Helper()
	cfg.BaseURL = srvURL + "/products"
	p, err := NewProber(cfg, collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}, nil),
		upstream.NewExponentialRetryPolicy(1, time.Millisecond, time.Millisecond), zap.NewNop())
	require.NoError(t, err)
	return p
}

// TestFetchReturnsBaseWhenComplete skips probing once the expected count is met.
func TestFetchReturnsBaseWhenComplete(t *testing.T) {
	t.Parallel()

	rs := &recordingServer{count: func(*http.Request) int { return 5 }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	res, err := newProber(t, srv.URL, Config{ExpectedCount: 5, Variants: []string{"limit=500"}}).
		Fetch(context.Background(), "all=true")
	require.NoError(t, err)
	require.Equal(t, 5, res.Count())
	require.Empty(t, res.Variant)
	require.Equal(t, []string{"all=true"}, rs.Queries())
}

// TestFetchProbesVariantsAcceptingOnlyLarger stops at the first variant that
// beats the base result, even when it is still short of the expected count.
func TestFetchProbesVariantsAcceptingOnlyLarger(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"limit": 40, "per_page": 30, "all": 100}
	rs := &recordingServer{count: func(r *http.Request) int {
		q := r.URL.Query()
		switch {
		case q.Get("all") == "true":
			return counts["all"]
		case q.Get("per_page") != "":
			return counts["per_page"]
		case q.Get("limit") != "":
			return counts["limit"]
		default:
			return 20
		}
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	p := newProber(t, srv.URL, Config{
		ExpectedCount: 100,
		Variants:      []string{"limit=500", "per_page=500", "all=true", "published=all"},
	})
	res, err := p.Fetch(context.Background(), "include_unpublished=true")
	require.NoError(t, err)
	require.Equal(t, 40, res.Count())
	require.Equal(t, "limit=500", res.Variant)

	queries := rs.Queries()
	require.Len(t, queries, 2)
	require.Equal(t, "include_unpublished=true", queries[0])
	require.Equal(t, "include_unpublished=true&limit=500", queries[1])
}

// TestFetchKeepsBestWhenVariantsUndercount skips variants that only match the
// base count and accepts the first larger one.
func TestFetchKeepsBestWhenVariantsUndercount(t *testing.T) {
	t.Parallel()

	rs := &recordingServer{count: func(r *http.Request) int {
		if r.URL.Query().Get("limit") == "1000" {
			return 12
		}
		return 10
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	res, err := newProber(t, srv.URL, Config{ExpectedCount: 50, Variants: []string{"limit=500", "limit=1000", "all=true"}}).
		Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 12, res.Count())
	require.Equal(t, "limit=1000", res.Variant)
	require.Len(t, rs.Queries(), 3)
}

// TestFetchFollowsLinkPagination prefers the pagination signal over probing.
func TestFetchFollowsLinkPagination(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		if page < 3 {
			w.Header().Set("Link", fmt.Sprintf(`</products?page=%d>; rel="next", </products?page=1>; rel="first"`, page+1))
		}
		_, _ = w.Write([]byte(itemsJSON(2)))
	}))
	defer srv.Close()

	res, err := newProber(t, srv.URL, Config{ExpectedCount: 100, MaxPages: 10, Variants: []string{"limit=500"}}).
		Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 6, res.Count())
	require.Equal(t, 3, res.Pages)
	require.Equal(t, 3, calls)
}

// TestFetchFollowsEnvelopeNext reads the next link from a JSON envelope and
// honours the page cap.
func TestFetchFollowsEnvelopeNext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
		body := map[string]any{
			"data":     json.RawMessage(itemsJSON(3)),
			"has_more": true,
			"next":     fmt.Sprintf("?cursor=%d", page+1),
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	res, err := newProber(t, srv.URL, Config{MaxPages: 4}).Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 4, res.Pages)
	require.Equal(t, 12, res.Count())
}

// TestFetchPassesUpstreamStatus surfaces non-2xx replies as UpstreamError.
func TestFetchPassesUpstreamStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newProber(t, srv.URL, Config{}).Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrUpstreamStatus)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusForbidden, ue.StatusCode)
	require.Equal(t, "Upstream API error: Forbidden", ue.Message())
}

// TestFetchSendsAPIKey attaches the configured key header.
func TestFetchSendsAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	res, err := newProber(t, srv.URL, Config{APIKey: "secret"}).Fetch(context.Background(), "")
	require.NoError(t, err)
	require.Zero(t, res.Count())
	body, err := res.Body()
	require.NoError(t, err)
	require.Equal(t, "[]", string(body))
}

func TestNextFromLink(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://x/p?page=2", nextFromLink([]string{`<https://x/p?page=1>; rel="prev", <https://x/p?page=2>; rel="next"`}))
	require.Equal(t, "/p?page=3", nextFromLink([]string{`</p?page=3>; rel="next last"`}))
	require.Empty(t, nextFromLink([]string{`<https://x/p?page=1>; rel="first"`}))
	require.Empty(t, nextFromLink(nil))
}

func TestMergeVariantOverridesIncoming(t *testing.T) {
	t.Parallel()

	merged, err := mergeVariant(map[string][]string{"limit": {"50"}, "all": {"true"}}, "page=1&limit=500")
	require.NoError(t, err)
	require.Equal(t, "all=true&limit=500&page=1", merged.Encode())
}

func TestNewProberRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewProber(Config{BaseURL: "not a url"}, collyfetcher.New(collyfetcher.Config{}, nil), nil, nil)
	require.Error(t, err)
}

// TestSourceDecodesProducts loads catalog products through the prober.
func TestSourceDecodesProducts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&recordingServer{count: func(*http.Request) int { return 3 }})
	defer srv.Close()

	src := NewSource(newProber(t, srv.URL, Config{}), "all=true")
	require.Equal(t, "upstream", src.Name())
	products, err := src.LoadProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	require.Equal(t, "P0", products[0].ID)
}
