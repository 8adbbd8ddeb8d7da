package graph

import (
	"context"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/neo4jdb"
)

// Edges that stopped qualifying since the last build are removed first so a
// rebuild reflects the current catalog.
const pruneGoesWith = `
MATCH (p1:Product)-[r:GOES_WITH]->(p2:Product)
OPTIONAL MATCH (p1)-[:HAS_STYLE]->(s:Style)<-[:HAS_STYLE]-(p2)
WITH p1, p2, r, count(DISTINCT s) AS shared
WHERE coalesce(p1.category, '') = coalesce(p2.category, '')
   OR abs(p1.price - p2.price) >= $max_gap
   OR shared < $min_common
DELETE r
`

const buildGoesWith = `
MATCH (p1:Product)-[:HAS_STYLE]->(s:Style)<-[:HAS_STYLE]-(p2:Product)
WHERE p1.id < p2.id
  AND coalesce(p1.category, '') <> coalesce(p2.category, '')
  AND abs(p1.price - p2.price) < $max_gap
WITH p1, p2, collect(DISTINCT s.name) AS common, abs(p1.price - p2.price) AS gap
WHERE size(common) >= $min_common
WITH p1, p2, common, toFloat(size(common)) / (gap / 1000.0 + 1.0) AS score
MERGE (p1)-[r1:GOES_WITH]->(p2)
SET r1.style_match = size(common), r1.common_styles = common, r1.score = score,
    r1.created_at = coalesce(r1.created_at, $now)
REMOVE r1.outfit_type
MERGE (p2)-[r2:GOES_WITH]->(p1)
SET r2.style_match = size(common), r2.common_styles = common, r2.score = score,
    r2.created_at = coalesce(r2.created_at, $now)
REMOVE r2.outfit_type
RETURN count(*) * 2 AS n
`

func goesWithStatements(p GoesWithParams, now string) (prune, build statement) {
	min := int64(p.MinCommonStyles)
	if min < 1 {
		min = 1
	}
	prune = statement{pruneGoesWith, map[string]any{"max_gap": p.MaxPriceGap, "min_common": min}}
	build = statement{buildGoesWith, map[string]any{"max_gap": p.MaxPriceGap, "min_common": min, "now": now}}
	return prune, build
}

func (s *Neo4jStore) BuildGoesWith(ctx context.Context, p GoesWithParams) (int64, error) {
	prune, build := goesWithStatements(p, s.stamp())
	if err := s.writeAll(ctx, "prune_goes_with", prune); err != nil {
		return 0, err
	}
	return s.writeCount(ctx, "build_goes_with", build.cypher, build.params)
}

// Outfit pairs reuse the goes-with edge from top to bottom and override its score.
const buildOutfitPairs = `
MATCH (top:Product {category: $top})-[:HAS_STYLE]->(s:Style)<-[:HAS_STYLE]-(bottom:Product {category: $bottom})
WHERE abs(top.price - bottom.price) < $max_gap
WITH top, bottom, collect(DISTINCT s.name) AS common
MERGE (top)-[r:GOES_WITH]->(bottom)
SET r.outfit_type = $outfit_type,
    r.common_styles = common,
    r.style_match = size(common),
    r.score = size(common) * 1.5,
    r.created_at = coalesce(r.created_at, $now)
RETURN count(r) AS n
`

func (s *Neo4jStore) BuildOutfitPairs(ctx context.Context, p OutfitParams) (int64, error) {
	return s.writeCount(ctx, "build_outfit_pairs", buildOutfitPairs, map[string]any{
		"top":         string(fashion.CategoryTop),
		"bottom":      string(fashion.CategoryBottom),
		"max_gap":     p.MaxPriceGap,
		"outfit_type": OutfitTopBottom,
		"now":         s.stamp(),
	})
}

const pruneInspiredBy = `
MATCH (prod:Product)-[r:INSPIRED_BY]->(post:Post)
WHERE NOT EXISTS { MATCH (prod)-[:HAS_STYLE]->(:Style)<-[:HAS_STYLE]-(post) }
DELETE r
`

const buildInspiredBy = `
MATCH (prod:Product)-[:HAS_STYLE]->(s:Style)<-[:HAS_STYLE]-(post:Post)
WITH prod, post, collect(DISTINCT s.name) AS common
MERGE (prod)-[r:INSPIRED_BY]->(post)
SET r.common_styles = common,
    r.similarity = size(common) / 3.0,
    r.created_at = coalesce(r.created_at, $now)
RETURN count(r) AS n
`

func (s *Neo4jStore) BuildInspiredBy(ctx context.Context) (int64, error) {
	if err := s.writeAll(ctx, "prune_inspired_by", statement{pruneInspiredBy, nil}); err != nil {
		return 0, err
	}
	return s.writeCount(ctx, "build_inspired_by", buildInspiredBy, map[string]any{"now": s.stamp()})
}

const pruneStyleSimilarity = `
MATCH (s1:Style)-[r:SIMILAR_TO]->(s2:Style)
OPTIONAL MATCH (s1)<-[:HAS_STYLE]-(n)-[:HAS_STYLE]->(s2)
WITH r, count(DISTINCT n) AS co
WHERE co < $min_co
DELETE r
`

const buildStyleSimilarity = `
MATCH (s1:Style)<-[:HAS_STYLE]-(n)-[:HAS_STYLE]->(s2:Style)
WHERE s1.name < s2.name
WITH s1, s2, count(DISTINCT n) AS co
WHERE co >= $min_co
MERGE (s1)-[r1:SIMILAR_TO]->(s2)
SET r1.co_occurrence = co, r1.similarity = co / 100.0
MERGE (s2)-[r2:SIMILAR_TO]->(s1)
SET r2.co_occurrence = co, r2.similarity = co / 100.0
RETURN count(*) * 2 AS n
`

func (s *Neo4jStore) BuildStyleSimilarity(ctx context.Context, p StyleSimilarityParams) (int64, error) {
	params := map[string]any{"min_co": int64(p.MinCoOccurrence)}
	if err := s.writeAll(ctx, "prune_style_similarity", statement{pruneStyleSimilarity, params}); err != nil {
		return 0, err
	}
	return s.writeCount(ctx, "build_style_similarity", buildStyleSimilarity, params)
}

func (s *Neo4jStore) Stats(ctx context.Context, top int) (Stats, error) {
	st := Stats{Relationships: map[string]int64{}}
	for _, rel := range []string{RelGoesWith, RelInspiredBy, RelSimilarTo, RelHasStyle} {
		// rel comes from a fixed list, never from input
		n, err := s.readCount(ctx, "count_"+rel, `MATCH ()-[r:`+rel+`]->() RETURN count(r) AS n`, nil)
		if err != nil {
			return st, err
		}
		st.Relationships[rel] = n
	}
	recs, err := s.readRecords(ctx, "top_products", `
MATCH (p:Product)-[r:GOES_WITH]->()
WITH p, count(r) AS n
RETURN p.id AS id, p.name AS name, n
ORDER BY n DESC, id ASC
LIMIT $top`, map[string]any{"top": int64(top)})
	if err != nil {
		return st, err
	}
	for _, rec := range recs {
		st.TopProducts = append(st.TopProducts, ProductDegree{
			ID:              neo4jdb.String(rec, "id"),
			Name:            neo4jdb.String(rec, "name"),
			Recommendations: neo4jdb.Int(rec, "n"),
		})
	}
	st.Isolated, err = s.readCount(ctx, "isolated_products",
		`MATCH (p:Product) WHERE NOT (p)-[:GOES_WITH]-() RETURN count(p) AS n`, nil)
	return st, err
}
