package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
)

func product(id string, cat fashion.Category, price float64, styles ...fashion.Style) fashion.Product {
	return fashion.Product{ID: id, Name: "name-" + id, Category: cat, Price: price, Styles: fashion.NewStyleSet(styles...)}
}

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	_, err := s.UpsertProducts(context.Background(), []fashion.Product{
		product("t1", fashion.CategoryTop, 1500, fashion.StyleKorean),
		product("t2", fashion.CategoryTop, 900, fashion.StyleKorean, fashion.StyleMinimalist),
		product("t3", fashion.CategoryTop, 2500, fashion.StyleKorean),
		product("t4", fashion.CategoryTop, 1200, fashion.StyleStreet),
		product("b1", fashion.CategoryBottom, 1800, fashion.StyleKorean, fashion.StyleMinimalist),
		product("b2", fashion.CategoryBottom, 7000, fashion.StyleMinimalist),
		product("a1", fashion.CategoryAccessory, 500, fashion.StyleStreet, fashion.StyleKorean),
	})
	require.NoError(t, err)
	return s
}

func ids(hits []fashion.ProductHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestMatchExactScenario(t *testing.T) {
	s := seeded(t)
	pred := filter.And(filter.Price(filter.OpLt, 2000), filter.CategoryIs(fashion.CategoryTop))
	hits, err := s.MatchExact(context.Background(), fashion.StyleSet{fashion.StyleKorean}, pred, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids(hits))
}

func TestMatchPartialRanksByOverlapThenPrice(t *testing.T) {
	s := seeded(t)
	hits, err := s.MatchPartial(context.Background(), fashion.StyleSet{fashion.StyleKorean, fashion.StyleMinimalist}, filter.True(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "b1", "a1", "t1", "t3", "b2"}, ids(hits))
	assert.Equal(t, 2, hits[0].SharedStyles)
	assert.Equal(t, 1, hits[2].SharedStyles)

	capped, err := s.MatchPartial(context.Background(), fashion.StyleSet{fashion.StyleKorean}, filter.True(), 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestComplementaryExcludesSameCategoryAndSelf(t *testing.T) {
	s := seeded(t)
	hits, err := s.Complementary(context.Background(), "t2", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "a1", "b2"}, ids(hits))
	for _, h := range hits {
		assert.NotEqual(t, fashion.CategoryTop, h.Category)
	}

	_, err = s.Complementary(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, fashion.ErrNotFound)
}

func TestBuildRelationshipsScoresAndIdempotence(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	_, err := s.UpsertPosts(ctx, []fashion.Post{{ID: "post1", Styles: fashion.StyleSet{fashion.StyleKorean, fashion.StyleMinimalist}}})
	require.NoError(t, err)

	run := func() Stats {
		_, err := s.BuildGoesWith(ctx, DefaultGoesWith())
		require.NoError(t, err)
		_, err = s.BuildOutfitPairs(ctx, DefaultOutfit())
		require.NoError(t, err)
		_, err = s.BuildInspiredBy(ctx)
		require.NoError(t, err)
		_, err = s.BuildStyleSimilarity(ctx, StyleSimilarityParams{MinCoOccurrence: 2})
		require.NoError(t, err)
		st, err := s.Stats(ctx, 5)
		require.NoError(t, err)
		return st
	}
	first := run()
	firstEdges := s.Edges(RelGoesWith)
	second := run()
	assert.Equal(t, first, second)
	assert.Equal(t, firstEdges, s.Edges(RelGoesWith))

	var t2b1, b1t2 Edge
	for _, e := range firstEdges {
		if e.From == "t2" && e.To == "b1" {
			t2b1 = e
		}
		if e.From == "b1" && e.To == "t2" {
			b1t2 = e
		}
	}
	assert.Equal(t, OutfitTopBottom, t2b1.OutfitType)
	assert.InDelta(t, 3.0, t2b1.Score, 1e-9)
	assert.Empty(t, b1t2.OutfitType)
	assert.InDelta(t, GoesWithScore(2, 900), b1t2.Score, 1e-9)

	// b2 is too far in price from every other-category product
	assert.Equal(t, int64(1), first.Isolated)

	// only 韓系+簡約 co-occurs often enough (t2, b1, post1)
	sim := s.Edges(RelSimilarTo)
	require.Len(t, sim, 2)
	assert.InDelta(t, 0.03, sim[0].Similarity, 1e-9)
}

func hasEdge(edges []Edge, from, to string) bool {
	for _, e := range edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

func TestRebuildDropsEdgesThatStoppedQualifying(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	_, err := s.UpsertPosts(ctx, []fashion.Post{{ID: "post1", Styles: fashion.StyleSet{fashion.StyleKorean, fashion.StyleMinimalist}}})
	require.NoError(t, err)

	_, err = s.BuildGoesWith(ctx, DefaultGoesWith())
	require.NoError(t, err)
	_, err = s.BuildInspiredBy(ctx)
	require.NoError(t, err)
	_, err = s.BuildStyleSimilarity(ctx, StyleSimilarityParams{MinCoOccurrence: 2})
	require.NoError(t, err)
	require.True(t, hasEdge(s.Edges(RelGoesWith), "t1", "a1"))
	require.True(t, hasEdge(s.Edges(RelInspiredBy), "t1", "post1"))
	require.Len(t, s.Edges(RelSimilarTo), 2)

	// a stricter overlap threshold removes single-style pairs
	_, err = s.BuildGoesWith(ctx, GoesWithParams{MaxPriceGap: 5000, MinCommonStyles: 2})
	require.NoError(t, err)
	goes := s.Edges(RelGoesWith)
	assert.False(t, hasEdge(goes, "t1", "a1"))
	assert.False(t, hasEdge(goes, "a1", "t1"))
	assert.True(t, hasEdge(goes, "t2", "b1"))

	// the post loses its styles
	_, err = s.UpsertPosts(ctx, []fashion.Post{{ID: "post1", Styles: fashion.StyleSet{fashion.StyleStreet}}})
	require.NoError(t, err)
	_, err = s.BuildInspiredBy(ctx)
	require.NoError(t, err)
	inspired := s.Edges(RelInspiredBy)
	assert.False(t, hasEdge(inspired, "t1", "post1"))
	assert.False(t, hasEdge(inspired, "t2", "post1"))
	assert.True(t, hasEdge(inspired, "t4", "post1"))
	assert.True(t, hasEdge(inspired, "a1", "post1"))

	_, err = s.BuildStyleSimilarity(ctx, StyleSimilarityParams{MinCoOccurrence: 3})
	require.NoError(t, err)
	assert.Empty(t, s.Edges(RelSimilarTo))
}

func TestScoringFunctions(t *testing.T) {
	assert.InDelta(t, 2.0/1.5, GoesWithScore(2, -500), 1e-9)
	assert.InDelta(t, 1.5, OutfitScore(1), 1e-9)
	assert.InDelta(t, 2.0/3, InspiredSimilarity(2), 1e-9)
	assert.InDelta(t, 0.07, StyleSimilarity(7), 1e-9)

	_, ok := GoesWithEligible(product("x", fashion.CategoryTop, 100, fashion.StyleKorean), product("y", fashion.CategoryTop, 100, fashion.StyleKorean), DefaultGoesWith())
	assert.False(t, ok)
	_, ok = GoesWithEligible(product("x", fashion.CategoryTop, 100, fashion.StyleKorean), product("y", fashion.CategoryBottom, 5100, fashion.StyleKorean), DefaultGoesWith())
	assert.False(t, ok)
}
