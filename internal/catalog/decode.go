package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotArray is returned when a payload holds no product array.
var ErrNotArray = errors.New("catalog: payload is not a product array")

// Format identifies a datasheet encoding.
type Format string

// Supported datasheet encodings. FormatAuto sniffs the payload.
const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the encoding from a file extension.
func FormatFromPath(p string) Format {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// envelopeKeys are the wrapper keys the upstream API and the bundled datasheet
// have been seen to use, in lookup order.
var envelopeKeys = []string{"data", "products", "industrialDatasheet"}

// UnwrapArray returns the product array held by raw: raw itself when it is an
// array, else the first envelope key holding an array.
func UnwrapArray(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrNotArray
	}
	if trimmed[0] == '[' {
		return json.RawMessage(trimmed), nil
	}
	if trimmed[0] != '{' {
		return nil, ErrNotArray
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	for _, key := range envelopeKeys {
		inner := bytes.TrimSpace(envelope[key])
		if len(inner) > 0 && inner[0] == '[' {
			return json.RawMessage(inner), nil
		}
	}
	return nil, ErrNotArray
}

// DecodeProducts decodes a JSON array or envelope into products.
func DecodeProducts(raw []byte) ([]Product, error) {
	arr, err := UnwrapArray(raw)
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(arr, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// DecodeDatasheet decodes a JSON or YAML datasheet.
func DecodeDatasheet(data []byte, format Format) ([]Product, error) {
	if format == FormatAuto {
		format = sniffFormat(data)
	}
	if format == FormatJSON {
		return DecodeProducts(data)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml datasheet: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml datasheet: %w", err)
	}
	return DecodeProducts(asJSON)
}

func sniffFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatYAML
}
