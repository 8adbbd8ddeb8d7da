package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
)

// squash collapses whitespace so assertions do not depend on indentation.
func squash(s string) string { return strings.Join(strings.Fields(s), " ") }

func TestExactMatchQuery(t *testing.T) {
	styles := fashion.StyleSet{fashion.StyleKorean, fashion.StyleKorean, fashion.StyleMinimalist}
	pred := filter.Price(filter.OpLt, 2000)

	st, ok, err := exactMatchQuery(styles, pred, 10)
	require.NoError(t, err)
	require.True(t, ok)

	q := squash(st.cypher)
	assert.Contains(t, q, "MATCH (p:Product) WHERE p.price < $f0 WITH p, [(p)-[:HAS_STYLE]->(s:Style) | s.name] AS owned")
	assert.Contains(t, q, "WHERE size(owned) = size($styles) AND all(x IN $styles WHERE x IN owned)")
	assert.Contains(t, q, "size(owned) AS shared ORDER BY price ASC, id ASC LIMIT $limit")
	assert.Equal(t, map[string]any{
		"f0":     2000.0,
		"styles": []string{"韓系", "簡約"},
		"limit":  int64(10),
	}, st.params)
}

func TestPartialMatchQuery(t *testing.T) {
	st, ok, err := partialMatchQuery(fashion.StyleSet{fashion.StyleStreet}, nil, 5)
	require.NoError(t, err)
	require.True(t, ok)

	q := squash(st.cypher)
	assert.Contains(t, q, "MATCH (p:Product)-[:HAS_STYLE]->(s:Style) WHERE s.name IN $styles AND (true) WITH p, count(DISTINCT s) AS shared")
	assert.Contains(t, q, "ORDER BY shared DESC, price ASC, id ASC LIMIT $limit")
	assert.Equal(t, map[string]any{"styles": []string{"街頭"}, "limit": int64(5)}, st.params)
}

func TestMatchQueriesSkipEmptyStyles(t *testing.T) {
	_, ok, err := exactMatchQuery(nil, nil, 10)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = partialMatchQuery(fashion.StyleSet{}, nil, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchQueriesRejectInvalidFilter(t *testing.T) {
	bad := &filter.Predicate{Kind: filter.KindCond, Cond: filter.Condition{Field: filter.FieldBrand, Op: filter.OpLt, Text: "Zara"}}
	_, _, err := exactMatchQuery(fashion.StyleSet{fashion.StyleKorean}, bad, 10)
	assert.ErrorIs(t, err, fashion.ErrInput)
}

func TestGoesWithStatementsShareThreshold(t *testing.T) {
	prune, build := goesWithStatements(GoesWithParams{MaxPriceGap: 5000, MinCommonStyles: 2}, "2024-01-01T00:00:00Z")

	assert.Contains(t, squash(prune.cypher), "WITH p1, p2, r, count(DISTINCT s) AS shared")
	assert.Contains(t, squash(prune.cypher), "OR shared < $min_common DELETE r")
	assert.Equal(t, map[string]any{"max_gap": 5000.0, "min_common": int64(2)}, prune.params)

	assert.Contains(t, squash(build.cypher), "WHERE size(common) >= $min_common")
	assert.Equal(t, int64(2), build.params["min_common"])
	assert.Equal(t, "2024-01-01T00:00:00Z", build.params["now"])

	prune, build = goesWithStatements(GoesWithParams{MaxPriceGap: 5000}, "")
	assert.Equal(t, int64(1), prune.params["min_common"])
	assert.Equal(t, int64(1), build.params["min_common"])
}

func TestRebuildQueriesPruneStaleEdges(t *testing.T) {
	assert.Contains(t, squash(pruneInspiredBy),
		"MATCH (prod:Product)-[r:INSPIRED_BY]->(post:Post) WHERE NOT EXISTS { MATCH (prod)-[:HAS_STYLE]->(:Style)<-[:HAS_STYLE]-(post) } DELETE r")
	assert.Contains(t, squash(pruneStyleSimilarity), "WHERE co < $min_co DELETE r")
}
