package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup has no match.
var ErrNotFound = errors.New("catalog: not found")

// Source produces the product list for a snapshot.
type Source interface {
	Name() string
	LoadProducts(ctx context.Context) ([]Product, error)
}

// ArticleSource produces the bundled articles.
type ArticleSource interface {
	LoadArticles(ctx context.Context) ([]Article, error)
}

// BlobReader reads a whole object from a blob store.
type BlobReader interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Hasher derives a content version from serialized data.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
