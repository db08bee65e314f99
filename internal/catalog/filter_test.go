package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleProducts() []Product {
	return []Product{
		{ID: "b1", Name: "Epoxy Bond", Category: CategoryBond, Industry: []string{"Aerospace", "Automotive"}, Chemistry: "Epoxy"},
		{ID: "b2", Name: "acrylic bond", Category: CategoryBond, Industry: []string{"Marine"}, Chemistry: "Acrylic"},
		{ID: "s1", Name: "Silicone Seal", Category: CategorySeal, Industry: []string{"Construction"}, Chemistry: "Silicone"},
		{ID: "s2", Name: "Hybrid Seal", Category: CategorySeal, Industry: []string{"Automotive"}, Chemistry: "MS Polymer", SearchKeywords: []string{"paintable"}},
		{ID: "t1", Name: "Foam Tape", Category: CategoryTape, Industry: []string{"Automotive"}, Chemistry: "Acrylic"},
	}
}

func ids(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

// TestFilterCategoryWithFacetCounts walks the category + industry scenario:
// the category facet ignores its own selection while the others honour it.
func TestFilterCategoryWithFacetCounts(t *testing.T) {
	t.Parallel()

	res := Filter(sampleProducts(), Query{Category: CategorySeal, Industry: "Automotive"})
	require.Equal(t, []string{"s2"}, ids(res.Products))
	require.Equal(t, 1, res.Total)

	require.Equal(t, map[Category]int{CategoryBond: 1, CategorySeal: 1, CategoryTape: 1}, res.Facets.ByCategory)
	require.Equal(t, map[string]int{"Construction": 1, "Automotive": 1}, res.Facets.ByIndustry)
	require.Equal(t, map[string]int{"MS Polymer": 1}, res.Facets.ByChemistry)
}

// TestFilterResultsSatisfyEveryActiveFilter checks every returned product
// matches the full query and nothing matching is dropped.
func TestFilterResultsSatisfyEveryActiveFilter(t *testing.T) {
	t.Parallel()

	products := sampleProducts()
	q := Query{Term: "BOND", Chemistries: []string{"Acrylic", "Epoxy"}, Sort: SortAsc}
	res := Filter(products, q)
	require.Equal(t, []string{"b2", "b1"}, ids(res.Products))

	for _, p := range res.Products {
		require.True(t, MatchesTerm(p, normalizeTerm(q.Term)))
		require.Contains(t, q.Chemistries, p.Chemistry)
	}
}

// TestFilterFacetCountEqualsResultSizeWhenSelected verifies that picking any
// facet value yields exactly the number of results its count advertised.
func TestFilterFacetCountEqualsResultSizeWhenSelected(t *testing.T) {
	t.Parallel()

	products := sampleProducts()
	base := Query{Term: "a", Industry: "Automotive"}
	res := Filter(products, base)

	for cat, n := range res.Facets.ByCategory {
		q := base
		q.Category = cat
		require.Equal(t, n, Filter(products, q).Total, "category %s", cat)
	}
	for ind, n := range res.Facets.ByIndustry {
		q := base
		q.Industry = ind
		require.Equal(t, n, Filter(products, q).Total, "industry %s", ind)
	}
	for chem, n := range res.Facets.ByChemistry {
		q := base
		q.Chemistries = []string{chem}
		require.Equal(t, n, Filter(products, q).Total, "chemistry %s", chem)
	}
}

// TestFilterIsDeterministicAndPure runs the same query twice and checks the
// input is left untouched.
func TestFilterIsDeterministicAndPure(t *testing.T) {
	t.Parallel()

	products := sampleProducts()
	before := ids(products)
	q := Query{Sort: SortDesc}
	first := Filter(products, q)
	second := Filter(products, q)
	require.Equal(t, first, second)
	require.Equal(t, before, ids(products))
	require.Equal(t, []string{"s1", "s2", "t1", "b1", "b2"}, ids(first.Products))
}

// TestFilterNoMatchIsEmptyNotNil covers the explicit empty state.
func TestFilterNoMatchIsEmptyNotNil(t *testing.T) {
	t.Parallel()

	res := Filter(sampleProducts(), Query{Term: "zzz"})
	require.NotNil(t, res.Products)
	require.Empty(t, res.Products)
	require.Zero(t, res.Total)
}

// TestSortByNameIsStable keeps source order for names that differ only by case.
func TestSortByNameIsStable(t *testing.T) {
	t.Parallel()

	products := []Product{{ID: "1", Name: "tape"}, {ID: "2", Name: "Tape"}, {ID: "3", Name: "Bond"}}
	SortByName(products, SortAsc)
	require.Equal(t, []string{"3", "1", "2"}, ids(products))
	SortByName(products, SortDesc)
	require.Equal(t, []string{"1", "2", "3"}, ids(products))
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	c, err := ParseCategory(" seal ")
	require.NoError(t, err)
	require.Equal(t, CategorySeal, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	require.Equal(t, CategoryAll, c)

	_, err = ParseCategory("glue")
	require.Error(t, err)
}
