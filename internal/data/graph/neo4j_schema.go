package graph

import (
	"context"
	"fmt"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/neo4jdb"
)

var constraintStatements = []string{
	`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT post_id IF NOT EXISTS FOR (p:Post) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT product_id IF NOT EXISTS FOR (p:Product) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT style_name IF NOT EXISTS FOR (s:Style) REQUIRE s.name IS UNIQUE`,
	`CREATE CONSTRAINT brand_name IF NOT EXISTS FOR (b:Brand) REQUIRE b.name IS UNIQUE`,
	`CREATE CONSTRAINT category_name IF NOT EXISTS FOR (c:Category) REQUIRE c.name IS UNIQUE`,
	`CREATE CONSTRAINT item_name IF NOT EXISTS FOR (i:Item) REQUIRE i.name IS UNIQUE`,
}

var indexStatements = []string{
	`CREATE INDEX product_price IF NOT EXISTS FOR (p:Product) ON (p.price)`,
	`CREATE INDEX product_name IF NOT EXISTS FOR (p:Product) ON (p.name)`,
	`CREATE INDEX product_category IF NOT EXISTS FOR (p:Product) ON (p.category)`,
	`CREATE INDEX post_timestamp IF NOT EXISTS FOR (p:Post) ON (p.timestamp)`,
	`CREATE FULLTEXT INDEX product_search IF NOT EXISTS FOR (p:Product) ON EACH [p.name, p.description]`,
	`CREATE FULLTEXT INDEX post_search IF NOT EXISTS FOR (p:Post) ON EACH [p.caption, p.description]`,
}

func vectorIndexStatement(name, label string, dim int) string {
	return fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.img_embedding) "+
		"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}", name, label, dim)
}

const seedStyles = `
UNWIND $rows AS r
MERGE (s:Style {name: r.name})
SET s.description = r.description, s.english = r.english
`

const seedCategories = `
UNWIND $rows AS r
MERGE (c:Category {name: r.name})
SET c.description = r.description, c.english = r.english
`

// InitSchema creates constraints, indexes and the two vector indexes, then
// seeds the style and category vocabularies. Every statement is idempotent.
func (s *Neo4jStore) InitSchema(ctx context.Context, vectorDim int) error {
	if vectorDim <= 0 {
		return fmt.Errorf("graph: vector dimension must be positive, got %d", vectorDim)
	}
	stmts := append(append([]string{}, constraintStatements...), indexStatements...)
	stmts = append(stmts,
		vectorIndexStatement("post_image_index", "Post", vectorDim),
		vectorIndexStatement("product_image_index", "Product", vectorDim),
	)
	for _, q := range stmts {
		if err := s.db.Exec(ctx, q, nil); err != nil {
			return fashion.External("neo4j", "init_schema", fmt.Errorf("%s: %w", q, err))
		}
	}
	s.log.Info("graph schema ensured", "statements", len(stmts), "vector_dim", vectorDim)

	styleRows := make([]map[string]any, 0, len(fashion.Styles()))
	for _, st := range fashion.Styles() {
		styleRows = append(styleRows, map[string]any{"name": string(st), "description": st.Description(), "english": st.English()})
	}
	catRows := make([]map[string]any, 0, len(fashion.Categories()))
	for _, c := range fashion.Categories() {
		catRows = append(catRows, map[string]any{"name": string(c), "description": c.Description(), "english": c.English()})
	}
	if err := s.writeAll(ctx, "seed_vocabulary",
		statement{seedStyles, map[string]any{"rows": styleRows}},
		statement{seedCategories, map[string]any{"rows": catRows}},
	); err != nil {
		return err
	}
	s.log.Info("vocabulary seeded", "styles", len(styleRows), "categories", len(catRows))
	return nil
}

func (s *Neo4jStore) VerifySchema(ctx context.Context) (SchemaReport, error) {
	rep := SchemaReport{Nodes: map[string]int64{}, Relationships: map[string]int64{}}
	for _, label := range []string{"User", "Post", "Product", "Style", "Brand", "Category", "Item"} {
		n, err := s.readCount(ctx, "count_"+label, `MATCH (n:`+label+`) RETURN count(n) AS n`, nil)
		if err != nil {
			return rep, err
		}
		rep.Nodes[label] = n
	}
	for _, rel := range []string{RelPosted, RelMentions, RelHasStyle, RelInCategory, RelOfBrand, RelGoesWith, RelInspiredBy, RelSimilarTo} {
		n, err := s.readCount(ctx, "count_"+rel, `MATCH ()-[r:`+rel+`]->() RETURN count(r) AS n`, nil)
		if err != nil {
			return rep, err
		}
		rep.Relationships[rel] = n
	}
	recs, err := s.readRecords(ctx, "show_indexes", `SHOW INDEXES YIELD name RETURN name ORDER BY name`, nil)
	if err != nil {
		return rep, err
	}
	for _, rec := range recs {
		rep.Indexes = append(rep.Indexes, neo4jdb.String(rec, "name"))
	}
	return rep, nil
}
