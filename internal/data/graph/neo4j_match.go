package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
	"github.com/yungbote/outfitmatch-backend/internal/platform/neo4jdb"
)

const productColumns = `p.id AS id, p.name AS name, p.description AS description, p.category AS category,
       p.brand AS brand, p.price AS price, p.original_price AS original_price, p.image_url AS image_url,
       [(p)-[:HAS_STYLE]->(x:Style) | x.name] AS styles`

func (s *Neo4jStore) PostStyles(ctx context.Context, postID string) (fashion.StyleSet, error) {
	recs, err := s.readRecords(ctx, "post_styles",
		`MATCH (:Post {id: $id})-[:HAS_STYLE]->(s:Style) RETURN s.name AS name`,
		map[string]any{"id": postID})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, neo4jdb.String(rec, "name"))
	}
	return vocabularyOrder(fashion.StyleSetFromStrings(names)), nil
}

func (s *Neo4jStore) MatchExact(ctx context.Context, styles fashion.StyleSet, pred *filter.Predicate, limit int) ([]fashion.ProductHit, error) {
	st, ok, err := exactMatchQuery(styles, pred, limit)
	if err != nil || !ok {
		return nil, err
	}
	return s.queryHits(ctx, "match_exact", st.cypher, st.params)
}

func (s *Neo4jStore) MatchPartial(ctx context.Context, styles fashion.StyleSet, pred *filter.Predicate, limit int) ([]fashion.ProductHit, error) {
	st, ok, err := partialMatchQuery(styles, pred, limit)
	if err != nil || !ok {
		return nil, err
	}
	return s.queryHits(ctx, "match_partial", st.cypher, st.params)
}

// exactMatchQuery selects products whose style set equals styles. ok is false
// when there is nothing to match.
func exactMatchQuery(styles fashion.StyleSet, pred *filter.Predicate, limit int) (statement, bool, error) {
	styles = fashion.NewStyleSet(styles...)
	if len(styles) == 0 {
		return statement{}, false, nil
	}
	cf, err := compileFilter(pred, "p")
	if err != nil {
		return statement{}, false, fmt.Errorf("%w: %v", fashion.ErrInput, err)
	}
	cypher := `
MATCH (p:Product)
WHERE ` + cf.Where + `
WITH p, [(p)-[:HAS_STYLE]->(s:Style) | s.name] AS owned
WHERE size(owned) = size($styles)
  AND all(x IN $styles WHERE x IN owned)
RETURN ` + productColumns + `, size(owned) AS shared
ORDER BY price ASC, id ASC
LIMIT $limit`
	params := withParams(cf.Params, map[string]any{"styles": styles.Strings(), "limit": int64(limit)})
	return statement{cypher, params}, true, nil
}

func partialMatchQuery(styles fashion.StyleSet, pred *filter.Predicate, limit int) (statement, bool, error) {
	styles = fashion.NewStyleSet(styles...)
	if len(styles) == 0 {
		return statement{}, false, nil
	}
	cf, err := compileFilter(pred, "p")
	if err != nil {
		return statement{}, false, fmt.Errorf("%w: %v", fashion.ErrInput, err)
	}
	cypher := `
MATCH (p:Product)-[:HAS_STYLE]->(s:Style)
WHERE s.name IN $styles AND (` + cf.Where + `)
WITH p, count(DISTINCT s) AS shared
RETURN ` + productColumns + `, shared
ORDER BY shared DESC, price ASC, id ASC
LIMIT $limit`
	params := withParams(cf.Params, map[string]any{"styles": styles.Strings(), "limit": int64(limit)})
	return statement{cypher, params}, true, nil
}

func (s *Neo4jStore) Complementary(ctx context.Context, productID string, limit int) ([]fashion.ProductHit, error) {
	out, err := s.db.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (p:Product {id: $id}) RETURN count(p) AS n`, map[string]any{"id": productID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if neo4jdb.Int(rec, "n") == 0 {
			return nil, nil
		}
		res, err = tx.Run(ctx, `
MATCH (src:Product {id: $id})-[:HAS_STYLE]->(s:Style)<-[:HAS_STYLE]-(p:Product)
WHERE p.id <> src.id AND coalesce(p.category, '') <> coalesce(src.category, '')
WITH p, count(DISTINCT s) AS shared
RETURN `+productColumns+`, shared
ORDER BY shared DESC, price ASC, id ASC
LIMIT $limit`, map[string]any{"id": productID, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fashion.External("neo4j", "complementary", err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: product %s", fashion.ErrNotFound, productID)
	}
	return hitsFromRecords(out.([]*neo4j.Record)), nil
}

func (s *Neo4jStore) GetProduct(ctx context.Context, id string) (fashion.Product, error) {
	recs, err := s.readRecords(ctx, "get_product",
		`MATCH (p:Product {id: $id}) RETURN `+productColumns, map[string]any{"id": id})
	if err != nil {
		return fashion.Product{}, err
	}
	if len(recs) == 0 {
		return fashion.Product{}, fmt.Errorf("%w: product %s", fashion.ErrNotFound, id)
	}
	return productFromRecord(recs[0]), nil
}

func (s *Neo4jStore) queryHits(ctx context.Context, op, cypher string, params map[string]any) ([]fashion.ProductHit, error) {
	recs, err := s.readRecords(ctx, op, cypher, params)
	if err != nil {
		return nil, err
	}
	return hitsFromRecords(recs), nil
}

func hitsFromRecords(recs []*neo4j.Record) []fashion.ProductHit {
	out := make([]fashion.ProductHit, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fashion.HitFromProduct(productFromRecord(rec), int(neo4jdb.Int(rec, "shared"))))
	}
	return out
}

func productFromRecord(rec *neo4j.Record) fashion.Product {
	return fashion.Product{
		ID:            neo4jdb.String(rec, "id"),
		Name:          neo4jdb.String(rec, "name"),
		Description:   neo4jdb.String(rec, "description"),
		Category:      fashion.NormalizeCategory(neo4jdb.String(rec, "category")),
		Brand:         neo4jdb.String(rec, "brand"),
		Price:         neo4jdb.Float(rec, "price"),
		OriginalPrice: neo4jdb.Float(rec, "original_price"),
		ImageURL:      neo4jdb.String(rec, "image_url"),
		Styles:        vocabularyOrder(fashion.StyleSetFromStrings(neo4jdb.Strings(rec, "styles"))),
	}
}

func withParams(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// vocabularyOrder sorts labels into the canonical vocabulary order so results
// do not depend on traversal order.
func vocabularyOrder(ss fashion.StyleSet) fashion.StyleSet {
	rank := map[fashion.Style]int{}
	for i, st := range fashion.Styles() {
		rank[st] = i
	}
	out := append(fashion.StyleSet(nil), ss...)
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}
