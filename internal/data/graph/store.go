// Package graph persists the catalog, posts and their style relationships,
// and answers the traversals the matcher needs.
package graph

import (
	"context"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
)

type CatalogWriter interface {
	UpsertProducts(ctx context.Context, products []fashion.Product) (int, error)
	UpsertPosts(ctx context.Context, posts []fashion.Post) (int, error)
}

type MatchReader interface {
	// PostStyles returns the has-style labels of one post.
	PostStyles(ctx context.Context, postID string) (fashion.StyleSet, error)
	// MatchExact returns products whose style set equals styles and that pass
	// pred, cheapest first.
	MatchExact(ctx context.Context, styles fashion.StyleSet, pred *filter.Predicate, limit int) ([]fashion.ProductHit, error)
	// MatchPartial returns products sharing at least one style, ranked by
	// overlap desc, price asc, id asc.
	MatchPartial(ctx context.Context, styles fashion.StyleSet, pred *filter.Predicate, limit int) ([]fashion.ProductHit, error)
	// Complementary returns other-category products sharing a style with the
	// given product, ranked by shared count desc, price asc.
	Complementary(ctx context.Context, productID string, limit int) ([]fashion.ProductHit, error)
	GetProduct(ctx context.Context, id string) (fashion.Product, error)
}

type RelationshipBuilder interface {
	BuildGoesWith(ctx context.Context, p GoesWithParams) (int64, error)
	BuildOutfitPairs(ctx context.Context, p OutfitParams) (int64, error)
	BuildInspiredBy(ctx context.Context) (int64, error)
	BuildStyleSimilarity(ctx context.Context, p StyleSimilarityParams) (int64, error)
	Stats(ctx context.Context, top int) (Stats, error)
}

type SchemaManager interface {
	InitSchema(ctx context.Context, vectorDim int) error
	VerifySchema(ctx context.Context) (SchemaReport, error)
}

type Store interface {
	CatalogWriter
	MatchReader
	RelationshipBuilder
	SchemaManager
	Close(ctx context.Context) error
}

type GoesWithParams struct {
	MaxPriceGap     float64
	MinCommonStyles int
}

type OutfitParams struct {
	MaxPriceGap float64
}

type StyleSimilarityParams struct {
	MinCoOccurrence int
}

func DefaultGoesWith() GoesWithParams {
	return GoesWithParams{MaxPriceGap: 5000, MinCommonStyles: 1}
}

func DefaultOutfit() OutfitParams { return OutfitParams{MaxPriceGap: 3000} }

func DefaultStyleSimilarity() StyleSimilarityParams {
	return StyleSimilarityParams{MinCoOccurrence: 5}
}

// Relationship type names as stored in the graph.
const (
	RelHasStyle     = "HAS_STYLE"
	RelInCategory   = "IN_CATEGORY"
	RelOfBrand      = "OF_BRAND"
	RelPosted       = "POSTED"
	RelMentions     = "MENTIONS_ITEM"
	RelGoesWith     = "GOES_WITH"
	RelInspiredBy   = "INSPIRED_BY"
	RelSimilarTo    = "SIMILAR_TO"
	OutfitTopBottom = "top_bottom"
)

type ProductDegree struct {
	ID              string
	Name            string
	Recommendations int64
}

// Stats summarises the recommendation graph after a build.
type Stats struct {
	Relationships map[string]int64
	TopProducts   []ProductDegree
	Isolated      int64
}

type SchemaReport struct {
	Nodes         map[string]int64
	Relationships map[string]int64
	Indexes       []string
}
