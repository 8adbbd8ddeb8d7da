package fashion

import "time"

// HasStyleConfidence is the fixed score stored on every has-style edge.
const HasStyleConfidence = 0.8

type User struct {
	ID          string
	DisplayName string
}

// Item is a garment mention parsed from a post caption, e.g. "Jacket:BrandX".
type Item struct {
	Name  string
	Type  string
	Brand string
}

type Post struct {
	ID          string
	Author      User
	URL         string
	CaptionRaw  string
	Description string
	ImageURL    string
	Hashtags    []string
	Items       []Item
	Styles      StyleSet
	Embedding   []float32
	Timestamp   time.Time
}

type Product struct {
	ID            string
	Name          string
	Description   string
	Price         float64
	OriginalPrice float64
	ImageURL      string
	Brand         string
	Category      Category
	Styles        StyleSet
	Embedding     []float32
	CreatedAt     time.Time
}

// ProductHit is one ranked row returned by the matcher.
type ProductHit struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Brand       string
	Price       float64
	Styles      StyleSet
	ImageURL    string
	// SharedStyles is the overlap with the query styles (or the selected product).
	SharedStyles int
}

// HitFromProduct projects a product into a result row.
func HitFromProduct(p Product, shared int) ProductHit {
	return ProductHit{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		Brand:        p.Brand,
		Price:        p.Price,
		Styles:       p.Styles,
		ImageURL:     p.ImageURL,
		SharedStyles: shared,
	}
}

// MatchTier records which relaxation step produced a result.
type MatchTier string

const (
	TierExact   MatchTier = "exact"
	TierPartial MatchTier = "partial"
	TierNone    MatchTier = "none"
)

type SearchResult struct {
	Text           string
	Products       []ProductHit
	DetectedStyles StyleSet
	Tier           MatchTier
	Filter         string
}
