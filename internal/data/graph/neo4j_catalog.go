package graph

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

const upsertProductNodes = `
UNWIND $rows AS r
MERGE (p:Product {id: r.id})
SET p.name = r.name,
    p.description = r.description,
    p.price = r.price,
    p.original_price = r.original_price,
    p.image_url = r.image_url,
    p.brand = r.brand,
    p.category = r.category,
    p.predicted_style = r.styles,
    p.updated_at = r.synced_at,
    p.created_at = coalesce(p.created_at, r.synced_at)
`

const pruneProductLinks = `
UNWIND $rows AS r
MATCH (p:Product {id: r.id})-[rel:IN_CATEGORY|OF_BRAND|HAS_STYLE]->(n)
WHERE (type(rel) = 'IN_CATEGORY' AND n.name <> r.category)
   OR (type(rel) = 'OF_BRAND' AND n.name <> r.brand)
   OR (type(rel) = 'HAS_STYLE' AND NOT n.name IN r.styles)
DELETE rel
`

const linkProducts = `
UNWIND $rows AS r
MATCH (p:Product {id: r.id})
MERGE (c:Category {name: r.category})
MERGE (p)-[:IN_CATEGORY]->(c)
FOREACH (_ IN CASE WHEN r.brand <> '' THEN [1] ELSE [] END |
  MERGE (b:Brand {name: r.brand})
  MERGE (p)-[:OF_BRAND]->(b))
FOREACH (styleName IN r.styles |
  MERGE (s:Style {name: styleName})
  MERGE (p)-[hs:HAS_STYLE]->(s)
  SET hs.confidence = $confidence)
`

// UpsertProducts merges products by id and replaces their category, brand
// and style links. Embeddings are written through the vector index.
func (s *Neo4jStore) UpsertProducts(ctx context.Context, products []fashion.Product) (int, error) {
	now := s.stamp()
	written := 0
	for _, batch := range batches(products, s.batchSize) {
		rows := make([]map[string]any, 0, len(batch))
		for _, p := range batch {
			if strings.TrimSpace(p.ID) == "" {
				continue
			}
			rows = append(rows, map[string]any{
				"id":             p.ID,
				"name":           p.Name,
				"description":    p.Description,
				"price":          p.Price,
				"original_price": p.OriginalPrice,
				"image_url":      p.ImageURL,
				"brand":          strings.TrimSpace(p.Brand),
				"category":       string(fashion.NormalizeCategory(string(p.Category))),
				"styles":         p.Styles.Strings(),
				"synced_at":      now,
			})
		}
		if len(rows) == 0 {
			continue
		}
		params := map[string]any{"rows": rows, "confidence": fashion.HasStyleConfidence}
		if err := s.writeAll(ctx, "upsert_products",
			statement{upsertProductNodes, params},
			statement{pruneProductLinks, params},
			statement{linkProducts, params},
		); err != nil {
			return written, err
		}
		written += len(rows)
		s.log.Debug("product batch upserted", "rows", len(rows), "total", written)
	}
	return written, nil
}

const upsertPostNodes = `
UNWIND $rows AS r
MERGE (p:Post {id: r.id})
SET p.caption = r.caption,
    p.description = r.description,
    p.url = r.url,
    p.image_url = r.image_url,
    p.hashtags = r.hashtags,
    p.timestamp = r.timestamp,
    p.updated_at = r.synced_at
FOREACH (_ IN CASE WHEN r.author_id <> '' THEN [1] ELSE [] END |
  MERGE (u:User {id: r.author_id})
  SET u.name = r.author_name
  MERGE (u)-[:POSTED]->(p))
`

const prunePostStyles = `
UNWIND $rows AS r
MATCH (p:Post {id: r.id})-[rel:HAS_STYLE]->(s:Style)
WHERE NOT s.name IN r.styles
DELETE rel
`

const linkPosts = `
UNWIND $rows AS r
MATCH (p:Post {id: r.id})
FOREACH (it IN r.items |
  MERGE (i:Item {name: it.name})
  SET i.type = it.type
  MERGE (b:Brand {name: it.brand})
  MERGE (i)-[:OF_BRAND]->(b)
  MERGE (p)-[:MENTIONS_ITEM]->(i))
FOREACH (styleName IN r.styles |
  MERGE (s:Style {name: styleName})
  MERGE (p)-[hs:HAS_STYLE]->(s)
  SET hs.confidence = $confidence)
`

func (s *Neo4jStore) UpsertPosts(ctx context.Context, posts []fashion.Post) (int, error) {
	now := s.stamp()
	written := 0
	for _, batch := range batches(posts, s.batchSize) {
		rows := make([]map[string]any, 0, len(batch))
		for _, p := range batch {
			if strings.TrimSpace(p.ID) == "" {
				continue
			}
			items := make([]map[string]any, 0, len(p.Items))
			for _, it := range p.Items {
				if it.Name == "" || it.Brand == "" {
					continue
				}
				items = append(items, map[string]any{"name": it.Name, "type": it.Type, "brand": it.Brand})
			}
			ts := ""
			if !p.Timestamp.IsZero() {
				ts = p.Timestamp.UTC().Format(time.RFC3339)
			}
			rows = append(rows, map[string]any{
				"id":          p.ID,
				"author_id":   p.Author.ID,
				"author_name": p.Author.DisplayName,
				"caption":     p.CaptionRaw,
				"description": p.Description,
				"url":         p.URL,
				"image_url":   p.ImageURL,
				"hashtags":    p.Hashtags,
				"timestamp":   ts,
				"items":       items,
				"styles":      p.Styles.Strings(),
				"synced_at":   now,
			})
		}
		if len(rows) == 0 {
			continue
		}
		params := map[string]any{"rows": rows, "confidence": fashion.HasStyleConfidence}
		if err := s.writeAll(ctx, "upsert_posts",
			statement{upsertPostNodes, params},
			statement{prunePostStyles, params},
			statement{linkPosts, params},
		); err != nil {
			return written, err
		}
		written += len(rows)
	}
	return written, nil
}
