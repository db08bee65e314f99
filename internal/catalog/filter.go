package catalog

import (
	"sort"
	"strings"
)

// IndustryAll disables the industry facet.
const IndustryAll = "ALL"

// SortDirection orders results by name.
type SortDirection string

// Supported sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc in any case; empty means ascending.
func ParseSortDirection(s string) (SortDirection, bool) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortAsc:
		return SortAsc, true
	case SortDesc:
		return SortDesc, true
	default:
		return "", false
	}
}

// Query is the filter UI state.
type Query struct {
	Term        string
	Category    Category
	Industry    string
	Chemistries []string
	Sort        SortDirection
}

// FacetCounts holds the dynamic count for every facet value: how many results
// would remain if that value were picked, with every other active filter
// still applied.
type FacetCounts struct {
	ByCategory  map[Category]int `json:"byCategory"`
	ByIndustry  map[string]int   `json:"byIndustry"`
	ByChemistry map[string]int   `json:"byChemistry"`
}

// Result is the output of Filter.
type Result struct {
	Products []Product   `json:"products"`
	Total    int         `json:"total"`
	Facets   FacetCounts `json:"facets"`
}

// Filter applies q to products. It never mutates products and is
// deterministic for equal inputs.
func Filter(products []Product, q Query) Result {
	term := normalizeTerm(q.Term)
	chems := make(map[string]struct{}, len(q.Chemistries))
	for _, c := range q.Chemistries {
		if c = strings.TrimSpace(c); c != "" {
			chems[c] = struct{}{}
		}
	}

	res := Result{
		Products: []Product{},
		Facets: FacetCounts{
			ByCategory:  make(map[Category]int),
			ByIndustry:  make(map[string]int),
			ByChemistry: make(map[string]int),
		},
	}
	for _, p := range products {
		text := term == "" || MatchesTerm(p, term)
		cat := matchesCategory(p, q.Category)
		ind := matchesIndustry(p, q.Industry)
		chem := matchesChemistry(p, chems)

		if text && ind && chem && p.Category != "" {
			res.Facets.ByCategory[p.Category]++
		}
		if text && cat && chem {
			for _, tag := range distinct(p.Industry) {
				res.Facets.ByIndustry[tag]++
			}
		}
		if text && cat && ind && p.Chemistry != "" {
			res.Facets.ByChemistry[p.Chemistry]++
		}
		if text && cat && ind && chem {
			res.Products = append(res.Products, p)
		}
	}
	SortByName(res.Products, q.Sort)
	res.Total = len(res.Products)
	return res
}

// SortByName sorts in place by case-insensitive name, keeping the input order
// of equal names.
func SortByName(products []Product, dir SortDirection) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := strings.ToLower(products[i].Name), strings.ToLower(products[j].Name)
		if dir == SortDesc {
			return a > b
		}
		return a < b
	})
}

// MatchesTerm reports whether any searchable field of p contains term. term
// must already be lower-cased; use normalizeTerm.
func MatchesTerm(p Product, term string) bool {
	if term == "" {
		return true
	}
	fields := []string{p.Name, p.ShortName, p.ID, p.Description, string(p.Category), p.Chemistry}
	for _, f := range fields {
		if containsFold(f, term) {
			return true
		}
	}
	for _, tag := range p.Industry {
		if containsFold(tag, term) {
			return true
		}
	}
	for _, kw := range p.SearchKeywords {
		if containsFold(kw, term) {
			return true
		}
	}
	return false
}

func matchesCategory(p Product, c Category) bool {
	if c == "" || c == CategoryAll {
		return true
	}
	return strings.EqualFold(string(p.Category), string(c))
}

func matchesIndustry(p Product, industry string) bool {
	if industry == "" || strings.EqualFold(industry, IndustryAll) {
		return true
	}
	for _, tag := range p.Industry {
		if tag == industry {
			return true
		}
	}
	return false
}

func matchesChemistry(p Product, set map[string]struct{}) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[p.Chemistry]
	return ok
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func containsFold(field, lowerTerm string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), lowerTerm)
}

func distinct(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
