package similarity

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/neo4jdb"
)

// Vector index names created by the graph schema.
const (
	PostVectorIndex    = "post_image_index"
	ProductVectorIndex = "product_image_index"
	EmbeddingProperty  = "img_embedding"
)

type graphTarget struct {
	label string
	index string
}

var graphTargets = map[Kind]graphTarget{
	KindPost:    {label: "Post", index: PostVectorIndex},
	KindProduct: {label: "Product", index: ProductVectorIndex},
}

// GraphIndex answers queries from a Neo4j vector index. One instance serves
// one kind of entity.
type GraphIndex struct {
	db     *neo4jdb.Client
	kind   Kind
	target graphTarget
}

func NewGraphIndex(db *neo4jdb.Client, kind Kind) (*GraphIndex, error) {
	t, ok := graphTargets[kind]
	if !ok {
		return nil, fmt.Errorf("similarity: no vector index for kind %q", kind)
	}
	return &GraphIndex{db: db, kind: kind, target: t}, nil
}

func (g *GraphIndex) Upsert(ctx context.Context, e Entry) error {
	if e.Kind != g.kind {
		return fmt.Errorf("%w: graph index for %s got %s", fashion.ErrInput, g.kind, e.Kind)
	}
	if norm(e.Vector) == 0 {
		return ErrZeroVector
	}
	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) SET n.%s = $embedding RETURN count(n) AS n`, g.target.label, EmbeddingProperty)
	out, err := g.db.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"id": e.ID, "embedding": toFloat64s(e.Vector)})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return neo4jdb.Int(rec, "n"), nil
	})
	if err != nil {
		return fashion.External("neo4j", "set_embedding", err)
	}
	if out.(int64) == 0 {
		return fmt.Errorf("%w: %s %s", fashion.ErrNotFound, g.target.label, e.ID)
	}
	return nil
}

// Search converts the index's normalised score (1+cos)/2 back to cosine.
func (g *GraphIndex) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if err := checkQuery(vec, k); err != nil {
		return nil, err
	}
	out, err := g.db.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score
RETURN node.id AS id, score
ORDER BY score DESC, id ASC`, map[string]any{
			"index":     g.target.index,
			"k":         int64(k),
			"embedding": toFloat64s(vec),
		})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(recs))
		for _, rec := range recs {
			hits = append(hits, Hit{
				ID:    neo4jdb.String(rec, "id"),
				Kind:  g.kind,
				Score: 2*neo4jdb.Float(rec, "score") - 1,
			})
		}
		return hits, nil
	})
	if err != nil {
		return nil, fashion.External("neo4j", "vector_query", err)
	}
	hits := out.([]Hit)
	if len(hits) == 0 {
		return nil, fashion.ErrEmptyIndex
	}
	return rank(hits, k), nil
}

func (g *GraphIndex) Get(ctx context.Context, kind Kind, id string) (Entry, bool, error) {
	if kind != g.kind {
		return Entry{}, false, nil
	}
	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) WHERE n.%s IS NOT NULL RETURN n.%s AS embedding`,
		g.target.label, EmbeddingProperty, EmbeddingProperty)
	out, err := g.db.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return []float32(nil), nil
		}
		return neo4jdb.Floats(recs[0], "embedding"), nil
	})
	if err != nil {
		return Entry{}, false, fashion.External("neo4j", "get_embedding", err)
	}
	vec := out.([]float32)
	if len(vec) == 0 {
		return Entry{}, false, nil
	}
	return Entry{ID: id, Kind: kind, Vector: vec}, true, nil
}

func (g *GraphIndex) Len(ctx context.Context) (int, error) {
	cypher := fmt.Sprintf(`MATCH (n:%s) WHERE n.%s IS NOT NULL RETURN count(n) AS n`, g.target.label, EmbeddingProperty)
	out, err := g.db.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return neo4jdb.Int(rec, "n"), nil
	})
	if err != nil {
		return 0, fashion.External("neo4j", "count_embeddings", err)
	}
	return int(out.(int64)), nil
}

// Each streams every stored embedding of this kind, ordered by id.
func (g *GraphIndex) Each(ctx context.Context, fn func(Entry) error) error {
	cypher := fmt.Sprintf(`MATCH (n:%s) WHERE n.%s IS NOT NULL RETURN n.id AS id, n.%s AS embedding ORDER BY id`,
		g.target.label, EmbeddingProperty, EmbeddingProperty)
	session := g.db.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	res, err := session.Run(ctx, cypher, nil)
	if err != nil {
		return fashion.External("neo4j", "scan_embeddings", err)
	}
	for res.Next(ctx) {
		rec := res.Record()
		if err := fn(Entry{ID: neo4jdb.String(rec, "id"), Kind: g.kind, Vector: neo4jdb.Floats(rec, "embedding")}); err != nil {
			return err
		}
	}
	if err := res.Err(); err != nil {
		return fashion.External("neo4j", "scan_embeddings", err)
	}
	return nil
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
