package catalog

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Search result caps and the shortest term that triggers a search.
const (
	MinSearchTermLength = 2
	MaxProductResults   = 15
	MaxArticleResults   = 5
)

// SearchResult is the header search payload. TotalProducts counts every
// matching product, not just the capped preview.
type SearchResult struct {
	Products      []Product `json:"products"`
	Articles      []Article `json:"articles"`
	TotalProducts int       `json:"totalProducts"`
}

// Search matches products and articles against term and ranks the products.
// Terms shorter than MinSearchTermLength produce an empty result.
func Search(products []Product, articles []Article, term string) SearchResult {
	res := SearchResult{Products: []Product{}, Articles: []Article{}}
	term = normalizeTerm(term)
	if utf8.RuneCountInString(term) < MinSearchTermLength {
		return res
	}

	matched := make([]Product, 0)
	for _, p := range products {
		if MatchesTerm(p, term) {
			matched = append(matched, p)
		}
	}
	rankProducts(matched, term)
	res.TotalProducts = len(matched)
	if len(matched) > MaxProductResults {
		matched = matched[:MaxProductResults]
	}
	res.Products = matched

	for _, a := range articles {
		if len(res.Articles) == MaxArticleResults {
			break
		}
		if articleMatches(a, term) {
			res.Articles = append(res.Articles, a)
		}
	}
	return res
}

// Ranking tiers, best first.
const (
	tierExact = iota
	tierPrefix
	tierContains
)

func rankProducts(products []Product, term string) {
	type ranked struct {
		product Product
		tier    int
		length  int
	}
	rs := make([]ranked, len(products))
	for i, p := range products {
		rs[i] = ranked{product: p, tier: matchTier(p, term), length: utf8.RuneCountInString(p.Name)}
	}
	sort.SliceStable(rs, func(a, b int) bool {
		if rs[a].tier != rs[b].tier {
			return rs[a].tier < rs[b].tier
		}
		return rs[a].length < rs[b].length
	})
	for i := range rs {
		products[i] = rs[i].product
	}
}

func matchTier(p Product, term string) int {
	name, short := strings.ToLower(p.Name), strings.ToLower(p.ShortName)
	switch {
	case name == term || (short != "" && short == term):
		return tierExact
	case strings.HasPrefix(name, term) || (short != "" && strings.HasPrefix(short, term)):
		return tierPrefix
	default:
		return tierContains
	}
}

func articleMatches(a Article, term string) bool {
	return containsFold(a.Title, term) || containsFold(a.Excerpt, term) || containsFold(a.Category, term)
}
