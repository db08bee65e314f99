package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the top-level product line.
type Category string

// Known categories. CategoryAll is only meaningful inside a Query.
const (
	CategoryAll  Category = "ALL"
	CategoryBond Category = "BOND"
	CategorySeal Category = "SEAL"
	CategoryTape Category = "TAPE"
)

// Categories lists the concrete categories in display order.
var Categories = []Category{CategoryBond, CategorySeal, CategoryTape}

// ParseCategory normalises s case-insensitively. An empty string parses as
// CategoryAll.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case "", CategoryAll:
		return CategoryAll, nil
	case CategoryBond, CategorySeal, CategoryTape:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Product is one datasheet entry. The core fields drive filtering and search;
// everything else the source carries (viscosity, cure time, tape thickness...)
// lands in Attributes and is display-only.
type Product struct {
	ID             string
	Name           string
	ShortName      string
	Description    string
	Category       Category
	Industry       []string
	Chemistry      string
	SearchKeywords []string
	ImageURL       string
	Attributes     map[string]any
}

// PrimaryIndustry returns the first industry tag, or "" when there is none.
func (p Product) PrimaryIndustry() string {
	if len(p.Industry) == 0 {
		return ""
	}
	return p.Industry[0]
}

var coreProductKeys = map[string]struct{}{
	"id": {}, "name": {}, "shortName": {}, "description": {}, "category": {},
	"industry": {}, "chemistry": {}, "searchKeywords": {}, "imageUrl": {},
}

type productJSON struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	ShortName      string       `json:"shortName,omitempty"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	Industry       stringOrList `json:"industry"`
	Chemistry      string       `json:"chemistry,omitempty"`
	SearchKeywords stringOrList `json:"searchKeywords,omitempty"`
	ImageURL       string       `json:"imageUrl"`
}

// UnmarshalJSON decodes the flat source shape, routing unknown keys into
// Attributes.
func (p *Product) UnmarshalJSON(data []byte) error {
	var core productJSON
	if err := json.Unmarshal(data, &core); err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("decode product attributes: %w", err)
	}
	attrs := make(map[string]any)
	for k, v := range all {
		if _, isCore := coreProductKeys[k]; isCore {
			continue
		}
		attrs[k] = v
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	*p = Product{
		ID:             strings.TrimSpace(core.ID),
		Name:           core.Name,
		ShortName:      core.ShortName,
		Description:    core.Description,
		Category:       Category(strings.ToUpper(strings.TrimSpace(core.Category))),
		Industry:       []string(core.Industry),
		Chemistry:      core.Chemistry,
		SearchKeywords: []string(core.SearchKeywords),
		ImageURL:       core.ImageURL,
		Attributes:     attrs,
	}
	return nil
}

// MarshalJSON re-flattens Attributes next to the core fields. Core fields win
// on key collisions.
func (p Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Attributes)+len(coreProductKeys))
	for k, v := range p.Attributes {
		out[k] = v
	}
	out["id"] = p.ID
	out["name"] = p.Name
	out["description"] = p.Description
	out["category"] = p.Category
	out["imageUrl"] = p.ImageURL
	out["industry"] = nonNil(p.Industry)
	if p.ShortName != "" {
		out["shortName"] = p.ShortName
	}
	if p.Chemistry != "" {
		out["chemistry"] = p.Chemistry
	}
	if len(p.SearchKeywords) > 0 {
		out["searchKeywords"] = p.SearchKeywords
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	return data, nil
}

// Article is a bundled knowledge-base entry surfaced by global search.
type Article struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Image    string `json:"image"`
	Category string `json:"category"`
	HTML     string `json:"html,omitempty"`
}

// stringOrList accepts either "a" or ["a","b"].
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	if strings.TrimSpace(single) == "" {
		*s = nil
		return nil
	}
	*s = []string{single}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
