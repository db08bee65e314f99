package catalog

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed data/datasheet.json
var bundledDatasheet []byte

// BundledSource serves the datasheet compiled into the binary.
type BundledSource struct{}

// Name implements Source.
func (BundledSource) Name() string { return "bundled" }

// LoadProducts implements Source.
func (BundledSource) LoadProducts(context.Context) ([]Product, error) {
	products, err := DecodeDatasheet(bundledDatasheet, FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("bundled datasheet: %w", err)
	}
	return products, nil
}

// BlobSource reads a datasheet object from a blob store.
type BlobSource struct {
	name   string
	reader BlobReader
	path   string
	format Format
}

// NewBlobSource builds a Source reading path from reader. The format is
// inferred from the path extension.
func NewBlobSource(name string, reader BlobReader, path string) (*BlobSource, error) {
	if reader == nil {
		return nil, fmt.Errorf("blob reader is required")
	}
	if path == "" {
		return nil, fmt.Errorf("datasheet path is required")
	}
	return &BlobSource{name: name, reader: reader, path: path, format: FormatFromPath(path)}, nil
}

// Name implements Source.
func (s *BlobSource) Name() string { return s.name }

// LoadProducts implements Source.
func (s *BlobSource) LoadProducts(ctx context.Context) ([]Product, error) {
	data, err := s.reader.GetObject(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("read datasheet %s: %w", s.path, err)
	}
	products, err := DecodeDatasheet(data, s.format)
	if err != nil {
		return nil, fmt.Errorf("decode datasheet %s: %w", s.path, err)
	}
	return products, nil
}
