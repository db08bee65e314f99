// Package storage defines the blob store contract used for datasheets.
// Implementations live in the local, memory and gcs subpackages; a missing
// object is reported as an error wrapping fs.ErrNotExist.
package storage

import (
	"context"
	"io"
)

// BlobStore reads and writes whole objects.
type BlobStore interface {
	// GetObject returns the object's content.
	GetObject(ctx context.Context, path string) ([]byte, error)
	// PutObject stores data and returns a URI describing where it landed.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
