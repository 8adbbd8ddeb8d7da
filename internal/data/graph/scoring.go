package graph

import (
	"math"
	"sort"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

// GoesWithScore favours many shared styles and a small price gap.
func GoesWithScore(shared int, priceGap float64) float64 {
	return float64(shared) / (math.Abs(priceGap)/1000 + 1)
}

// OutfitScore replaces the goes-with score on top/bottom pairs.
func OutfitScore(shared int) float64 {
	return float64(shared) * 1.5
}

// InspiredSimilarity scales shared styles between a product and a post.
func InspiredSimilarity(shared int) float64 {
	return float64(shared) / 3
}

func StyleSimilarity(coOccurrence int) float64 {
	return float64(coOccurrence) / 100
}

// GoesWithEligible reports whether two products qualify for a goes-with edge.
func GoesWithEligible(a, b fashion.Product, p GoesWithParams) (shared int, ok bool) {
	if a.ID == b.ID || a.Category == b.Category {
		return 0, false
	}
	if math.Abs(a.Price-b.Price) >= p.MaxPriceGap {
		return 0, false
	}
	shared = a.Styles.Overlap(b.Styles)
	min := p.MinCommonStyles
	if min < 1 {
		min = 1
	}
	return shared, shared >= min
}

// OutfitEligible pairs a top with a bottom close in price.
func OutfitEligible(top, bottom fashion.Product, p OutfitParams) (shared int, ok bool) {
	if top.Category != fashion.CategoryTop || bottom.Category != fashion.CategoryBottom {
		return 0, false
	}
	if math.Abs(top.Price-bottom.Price) >= p.MaxPriceGap {
		return 0, false
	}
	shared = top.Styles.Overlap(bottom.Styles)
	return shared, shared > 0
}

// CommonStyles lists the labels of a that b also carries, in a's order.
func CommonStyles(a, b fashion.StyleSet) []string {
	out := make([]string, 0, len(a))
	for _, s := range fashion.NewStyleSet(a...) {
		if b.Contains(s) {
			out = append(out, string(s))
		}
	}
	return out
}

// SortByPrice orders hits cheapest first, id breaking ties.
func SortByPrice(hits []fashion.ProductHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Price != hits[j].Price {
			return hits[i].Price < hits[j].Price
		}
		return hits[i].ID < hits[j].ID
	})
}

// SortByOverlap orders hits by shared styles desc, then price asc, then id.
func SortByOverlap(hits []fashion.ProductHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].SharedStyles != hits[j].SharedStyles {
			return hits[i].SharedStyles > hits[j].SharedStyles
		}
		if hits[i].Price != hits[j].Price {
			return hits[i].Price < hits[j].Price
		}
		return hits[i].ID < hits[j].ID
	})
}

func capHits(hits []fashion.ProductHit, limit int) []fashion.ProductHit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
