package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Loader builds snapshots from a primary source, falling back to a secondary
// source and finally to an empty catalog.
type Loader struct {
	primary  Source
	fallback Source
	articles ArticleSource
	hasher   Hasher
	clock    Clock
	logger   *zap.Logger
	observe  func(*Snapshot, error)
}

// NewLoader constructs a Loader. fallback and articles may be nil.
func NewLoader(
	primary Source,
	fallback Source,
	articles ArticleSource,
	hasher Hasher,
	clock Clock,
	logger *zap.Logger,
) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		primary:  primary,
		fallback: fallback,
		articles: articles,
		hasher:   hasher,
		clock:    clock,
		logger:   logger,
	}
}

// OnLoad registers f to be called after every Load and Refresh with the
// stored snapshot, or with the refresh error.
func (l *Loader) OnLoad(f func(*Snapshot, error)) {
	l.observe = f
}

func (l *Loader) notify(snap *Snapshot, err error) {
	if l.observe != nil {
		l.observe(snap, err)
	}
}

// Load always returns a usable snapshot. Source failures are logged and
// degrade to the fallback source, then to an empty catalog.
func (l *Loader) Load(ctx context.Context) *Snapshot {
	for _, src := range []Source{l.primary, l.fallback} {
		if src == nil {
			continue
		}
		snap, err := l.loadFrom(ctx, src)
		if err == nil {
			l.notify(snap, nil)
			return snap
		}
		l.logger.Warn("catalog source failed", zap.String("source", src.Name()), zap.Error(err))
	}
	l.logger.Error("all catalog sources failed, serving empty catalog")
	snap := l.build(nil, l.loadArticles(ctx), "empty")
	l.notify(snap, nil)
	return snap
}

// Refresh reloads from the primary source only and stores the result. On
// failure the held snapshot is left untouched.
func (l *Loader) Refresh(ctx context.Context, holder *Holder) error {
	if l.primary == nil {
		return fmt.Errorf("no primary catalog source configured")
	}
	snap, err := l.loadFrom(ctx, l.primary)
	if err != nil {
		l.notify(nil, err)
		return err
	}
	if prev := holder.Current(); prev.Meta().Version == snap.Meta().Version && holder.Ready() {
		l.logger.Debug("catalog unchanged", zap.String("version", snap.Meta().Version))
		l.notify(prev, nil)
		return nil
	}
	holder.Store(snap)
	l.notify(snap, nil)
	return nil
}

// Run refreshes the holder every interval until ctx is done.
func (l *Loader) Run(ctx context.Context, holder *Holder, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx, holder); err != nil {
				l.logger.Warn("catalog refresh failed", zap.Error(err))
			}
		}
	}
}

func (l *Loader) loadFrom(ctx context.Context, src Source) (*Snapshot, error) {
	products, err := src.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products from %s: %w", src.Name(), err)
	}
	return l.build(products, l.loadArticles(ctx), src.Name()), nil
}

func (l *Loader) loadArticles(ctx context.Context) []Article {
	if l.articles == nil {
		return nil
	}
	articles, err := l.articles.LoadArticles(ctx)
	if err != nil {
		l.logger.Warn("article load failed", zap.Error(err))
		return nil
	}
	return articles
}

func (l *Loader) build(products []Product, articles []Article, source string) *Snapshot {
	meta := SnapshotMeta{Source: source, Version: l.version(products)}
	if l.clock != nil {
		meta.LoadedAt = l.clock.Now()
	}
	snap := NewSnapshot(products, articles, meta)
	if dups := snap.DuplicateIDs(); len(dups) > 0 {
		l.logger.Warn("catalog contains duplicate product ids", zap.Any("duplicates", dups))
	}
	l.logger.Info("catalog snapshot built",
		zap.String("source", source),
		zap.Int("products", snap.Len()),
		zap.Int("articles", len(articles)),
		zap.String("version", meta.Version),
	)
	return snap
}

func (l *Loader) version(products []Product) string {
	if l.hasher == nil {
		return ""
	}
	data, err := json.Marshal(products)
	if err != nil {
		l.logger.Warn("catalog version marshal failed", zap.Error(err))
		return ""
	}
	v, err := l.hasher.Hash(data)
	if err != nil {
		l.logger.Warn("catalog version hash failed", zap.Error(err))
		return ""
	}
	return v
}
