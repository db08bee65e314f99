package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/telemetry"
	"github.com/JakeFAU/adhesive-catalog/internal/upstream"
)

// Config controls how the product list is fetched.
type Config struct {
	// BaseURL is the full products endpoint, e.g. https://api.example.com/products.
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	// ExpectedCount enables variant probing when the result falls short of it.
	// Zero disables probing.
	ExpectedCount int
	Variants      []string
	MaxPages      int
}

// Result is the merged product array and how it was obtained.
type Result struct {
	Items   []json.RawMessage
	Variant string
	Pages   int
}

// Count returns the number of items.
func (r Result) Count() int { return len(r.Items) }

// Body encodes the items as a JSON array.
func (r Result) Body() ([]byte, error) {
	items := r.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	return data, nil
}

// Prober fetches the product list.
type Prober struct {
	cfg     Config
	base    *url.URL
	fetcher upstream.Fetcher
	retry   upstream.RetryPolicy
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewProber validates cfg and builds a Prober. retry may be nil for a single
// attempt per request.
func NewProber(cfg Config, fetcher upstream.Fetcher, retry upstream.RetryPolicy, logger *zap.Logger) (*Prober, error) {
	if fetcher == nil {
		return nil, errors.New("proxy: fetcher is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("proxy: invalid base url %q", cfg.BaseURL)
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		cfg:     cfg,
		base:    base,
		fetcher: fetcher,
		retry:   retry,
		logger:  logger,
		tracer:  otel.Tracer("github.com/JakeFAU/adhesive-catalog/internal/proxy"),
	}, nil
}

// Fetch returns the product list for rawQuery. Errors from the base request
// are returned; failing variants are logged and skipped.
func (p *Prober) Fetch(ctx context.Context, rawQuery string) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "proxy.Fetch", trace.WithAttributes(
		attribute.String("proxy.query", rawQuery),
		attribute.Int("proxy.expected_count", p.cfg.ExpectedCount),
	))
	defer span.End()

	incoming, err := url.ParseQuery(rawQuery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad query")
		return Result{}, fmt.Errorf("parse query: %w", err)
	}

	best, paginated, err := p.fetchAll(ctx, incoming, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "base request failed")
		return Result{}, err
	}
	if paginated || p.cfg.ExpectedCount <= 0 || best.Count() >= p.cfg.ExpectedCount {
		span.SetAttributes(attribute.Int("proxy.count", best.Count()))
		return best, nil
	}

	p.logger.Info("upstream undercounted, probing variants",
		zap.Int("count", best.Count()), zap.Int("expected", p.cfg.ExpectedCount))
	for _, variant := range p.cfg.Variants {
		merged, err := mergeVariant(incoming, variant)
		if err != nil {
			p.logger.Warn("skipping malformed variant", zap.String("variant", variant), zap.Error(err))
			continue
		}
		res, _, err := p.fetchAll(ctx, merged, variant)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("variant failed", zap.String("variant", variant), zap.Error(err))
			continue
		}
		p.logger.Debug("variant fetched", zap.String("variant", variant), zap.Int("count", res.Count()))
		if res.Count() > best.Count() {
			best = res
			break
		}
	}
	span.SetAttributes(attribute.Int("proxy.count", best.Count()), attribute.String("proxy.variant", best.Variant))
	return best, nil
}

// fetchAll fetches query and follows next-page links up to MaxPages. The
// second result reports whether the upstream advertised pagination.
func (p *Prober) fetchAll(ctx context.Context, query url.Values, variant string) (Result, bool, error) {
	target := *p.base
	target.RawQuery = query.Encode()
	next := target.String()

	res := Result{Variant: variant, Items: []json.RawMessage{}}
	paginated := false
	for next != "" && res.Pages < p.cfg.MaxPages {
		items, link, err := p.fetchPage(ctx, next, variant)
		if err != nil {
			return Result{}, false, err
		}
		res.Items = append(res.Items, items...)
		res.Pages++
		if link != "" {
			paginated = true
		}
		next = link
	}
	if next != "" {
		p.logger.Warn("stopped following pagination", zap.Int("max_pages", p.cfg.MaxPages), zap.String("next", next))
	}
	return res, paginated, nil
}

func (p *Prober) fetchPage(ctx context.Context, pageURL, variant string) ([]json.RawMessage, string, error) {
	ctx, span := p.tracer.Start(ctx, "proxy.fetchPage", trace.WithAttributes(
		attribute.String("http.url", pageURL),
		attribute.String("proxy.variant", variant),
	))
	defer span.End()

	req := upstream.Request{URL: pageURL, Headers: http.Header{"Accept": {"application/json"}}}
	if p.cfg.APIKey != "" {
		req.Headers.Set(p.cfg.APIKeyHeader, p.cfg.APIKey)
	}
	start := time.Now()
	resp, err := upstream.Do(ctx, p.retry, p.fetcher, req)
	if err == nil && !resp.OK() {
		err = &UpstreamError{StatusCode: resp.StatusCode, URL: pageURL}
	}
	var items []json.RawMessage
	var next string
	if err == nil {
		items, next, err = decodePage(resp, pageURL)
	}
	telemetry.ObserveUpstreamFetch(variant, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", err
	}
	span.SetAttributes(attribute.Int("proxy.items", len(items)))
	return items, next, nil
}

type pageEnvelope struct {
	Next    *string `json:"next"`
	HasMore *bool   `json:"has_more"`
}

func decodePage(resp upstream.Response, pageURL string) ([]json.RawMessage, string, error) {
	arr, err := catalog.UnwrapArray(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("decode upstream body: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(arr, &items); err != nil {
		return nil, "", fmt.Errorf("decode upstream items: %w", err)
	}

	next := nextFromLink(resp.Headers.Values("Link"))
	if next == "" {
		var env pageEnvelope
		if err := json.Unmarshal(resp.Body, &env); err == nil && env.Next != nil {
			if env.HasMore == nil || *env.HasMore {
				next = *env.Next
			}
		}
	}
	if next == "" {
		return items, "", nil
	}
	resolved, err := resolve(pageURL, next)
	if err != nil {
		return nil, "", err
	}
	if resolved == pageURL {
		return items, "", nil
	}
	return items, resolved, nil
}

// nextFromLink extracts the rel="next" target of RFC 8288 Link headers.
func nextFromLink(values []string) string {
	for _, header := range values {
		for _, link := range strings.Split(header, ",") {
			parts := strings.Split(link, ";")
			if len(parts) < 2 {
				continue
			}
			target := strings.TrimSpace(parts[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range parts[1:] {
				param = strings.TrimSpace(param)
				if !strings.HasPrefix(strings.ToLower(param), "rel=") {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(param[len("rel="):], `"`)) {
					if strings.EqualFold(rel, "next") {
						return strings.Trim(target, "<>")
					}
				}
			}
		}
	}
	return ""
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// mergeVariant overlays variant parameters on the caller's query.
func mergeVariant(incoming url.Values, variant string) (url.Values, error) {
	extra, err := url.ParseQuery(variant)
	if err != nil {
		return nil, fmt.Errorf("parse variant: %w", err)
	}
	merged := make(url.Values, len(incoming)+len(extra))
	for k, v := range incoming {
		merged[k] = append([]string(nil), v...)
	}
	for k, v := range extra {
		merged[k] = append([]string(nil), v...)
	}
	return merged, nil
}
