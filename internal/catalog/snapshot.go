package catalog

import (
	"slices"
	"sort"
	"time"
)

// SnapshotMeta describes where a snapshot came from.
type SnapshotMeta struct {
	Source   string
	Version  string
	LoadedAt time.Time
}

// FacetOptions lists every facet value present in a snapshot.
type FacetOptions struct {
	Categories  []Category `json:"categories"`
	Industries  []string   `json:"industries"`
	Chemistries []string   `json:"chemistries"`
}

// Snapshot is an immutable catalog. IDs are treated as display labels: the
// source data is known to repeat them, so every record is kept and lookups
// return all records sharing an id.
type Snapshot struct {
	products []Product
	articles []Article
	meta     SnapshotMeta
	byID     map[string][]int
	options  FacetOptions
}

// NewSnapshot copies products and articles into a new Snapshot.
func NewSnapshot(products []Product, articles []Article, meta SnapshotMeta) *Snapshot {
	s := &Snapshot{
		products: make([]Product, len(products)),
		articles: slices.Clone(articles),
		meta:     meta,
		byID:     make(map[string][]int, len(products)),
	}
	for i, p := range products {
		s.products[i] = cloneProduct(p)
		s.byID[p.ID] = append(s.byID[p.ID], i)
	}
	s.options = buildOptions(s.products)
	return s
}

// Len returns the number of products.
func (s *Snapshot) Len() int { return len(s.products) }

// Meta returns provenance information.
func (s *Snapshot) Meta() SnapshotMeta { return s.meta }

// Products returns the products in source order.
func (s *Snapshot) Products() []Product { return slices.Clone(s.products) }

// Articles returns the articles in source order.
func (s *Snapshot) Articles() []Article { return slices.Clone(s.articles) }

// Options returns the facet values present in the snapshot.
func (s *Snapshot) Options() FacetOptions { return s.options }

// Filter runs the facet filter over the snapshot.
func (s *Snapshot) Filter(q Query) Result { return Filter(s.products, q) }

// Search runs global search over the snapshot.
func (s *Snapshot) Search(term string) SearchResult { return Search(s.products, s.articles, term) }

// Lookup returns every product carrying id.
func (s *Snapshot) Lookup(id string) ([]Product, error) {
	idx, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Product, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.products[i])
	}
	return out, nil
}

// Article returns the article with id.
func (s *Snapshot) Article(id string) (Article, error) {
	for _, a := range s.articles {
		if a.ID == id {
			return a, nil
		}
	}
	return Article{}, ErrNotFound
}

// DuplicateIDs maps every id that occurs more than once to its count.
func (s *Snapshot) DuplicateIDs() map[string]int {
	dups := make(map[string]int)
	for id, idx := range s.byID {
		if len(idx) > 1 {
			dups[id] = len(idx)
		}
	}
	return dups
}

func cloneProduct(p Product) Product {
	p.Industry = slices.Clone(p.Industry)
	p.SearchKeywords = slices.Clone(p.SearchKeywords)
	if p.Attributes != nil {
		attrs := make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		p.Attributes = attrs
	}
	return p
}

func buildOptions(products []Product) FacetOptions {
	cats := make(map[Category]struct{})
	inds := make(map[string]struct{})
	chems := make(map[string]struct{})
	for _, p := range products {
		if p.Category != "" {
			cats[p.Category] = struct{}{}
		}
		for _, tag := range p.Industry {
			inds[tag] = struct{}{}
		}
		if p.Chemistry != "" {
			chems[p.Chemistry] = struct{}{}
		}
	}
	opts := FacetOptions{
		Categories:  []Category{},
		Industries:  sortedKeys(inds),
		Chemistries: sortedKeys(chems),
	}
	for _, c := range Categories {
		if _, ok := cats[c]; ok {
			opts.Categories = append(opts.Categories, c)
		}
	}
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
