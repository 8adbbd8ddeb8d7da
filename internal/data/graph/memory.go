package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
)

// Edge is one directed recommendation relationship.
type Edge struct {
	Type         string
	From         string
	To           string
	StyleMatch   int
	CommonStyles []string
	Score        float64
	Similarity   float64
	CoOccurrence int
	OutfitType   string
}

type edgeKey struct {
	typ, from, to string
}

// MemoryStore keeps the whole graph in process. It backs single-node dev
// runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]fashion.Product
	posts    map[string]fashion.Post
	edges    map[edgeKey]Edge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: map[string]fashion.Product{},
		posts:    map[string]fashion.Post{},
		edges:    map[edgeKey]Edge{},
	}
}

func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) UpsertProducts(_ context.Context, products []fashion.Product) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		p.Category = fashion.NormalizeCategory(string(p.Category))
		p.Styles = fashion.NewStyleSet(p.Styles...)
		if old, ok := m.products[p.ID]; ok && len(p.Embedding) == 0 {
			p.Embedding = old.Embedding
		}
		m.products[p.ID] = p
		n++
	}
	return n, nil
}

func (m *MemoryStore) UpsertPosts(_ context.Context, posts []fashion.Post) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range posts {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		p.Styles = fashion.NewStyleSet(p.Styles...)
		if old, ok := m.posts[p.ID]; ok && len(old.Embedding) > 0 {
			p.Embedding = old.Embedding
		}
		m.posts[p.ID] = p
		n++
	}
	return n, nil
}

func (m *MemoryStore) PostStyles(_ context.Context, postID string) (fashion.StyleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return vocabularyOrder(m.posts[postID].Styles), nil
}

func (m *MemoryStore) MatchExact(_ context.Context, styles fashion.StyleSet, pred *filter.Predicate, limit int) ([]fashion.ProductHit, error) {
	if len(styles) == 0 {
		return nil, nil
	}
	if err := filter.Validate(pred); err != nil {
		return nil, fmt.Errorf("%w: %v", fashion.ErrInput, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []fashion.ProductHit
	for _, p := range m.products {
		if p.Styles.Equal(styles) && pred.Eval(filter.SubjectOf(p)) {
			hits = append(hits, m.hit(p, len(p.Styles)))
		}
	}
	SortByPrice(hits)
	return capHits(hits, limit), nil
}

func (m *MemoryStore) MatchPartial(_ context.Context, styles fashion.StyleSet, pred *filter.Predicate, limit int) ([]fashion.ProductHit, error) {
	if len(styles) == 0 {
		return nil, nil
	}
	if err := filter.Validate(pred); err != nil {
		return nil, fmt.Errorf("%w: %v", fashion.ErrInput, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []fashion.ProductHit
	for _, p := range m.products {
		shared := p.Styles.Overlap(styles)
		if shared > 0 && pred.Eval(filter.SubjectOf(p)) {
			hits = append(hits, m.hit(p, shared))
		}
	}
	SortByOverlap(hits)
	return capHits(hits, limit), nil
}

func (m *MemoryStore) Complementary(_ context.Context, productID string, limit int) ([]fashion.ProductHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", fashion.ErrNotFound, productID)
	}
	var hits []fashion.ProductHit
	for _, p := range m.products {
		if p.ID == src.ID || p.Category == src.Category {
			continue
		}
		if shared := p.Styles.Overlap(src.Styles); shared > 0 {
			hits = append(hits, m.hit(p, shared))
		}
	}
	SortByOverlap(hits)
	return capHits(hits, limit), nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id string) (fashion.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return fashion.Product{}, fmt.Errorf("%w: product %s", fashion.ErrNotFound, id)
	}
	p.Styles = vocabularyOrder(p.Styles)
	return p, nil
}

func (m *MemoryStore) hit(p fashion.Product, shared int) fashion.ProductHit {
	p.Styles = vocabularyOrder(p.Styles)
	return fashion.HitFromProduct(p, shared)
}

func (m *MemoryStore) sortedProducts() []fashion.Product {
	out := make([]fashion.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) BuildGoesWith(_ context.Context, p GoesWithParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.edges {
		if k.typ != RelGoesWith {
			continue
		}
		a, b := m.products[e.From], m.products[e.To]
		if _, ok := GoesWithEligible(a, b, p); !ok {
			delete(m.edges, k)
		}
	}
	products := m.sortedProducts()
	var n int64
	for i := range products {
		for j := i + 1; j < len(products); j++ {
			a, b := products[i], products[j]
			shared, ok := GoesWithEligible(a, b, p)
			if !ok {
				continue
			}
			score := GoesWithScore(shared, a.Price-b.Price)
			common := CommonStyles(a.Styles, b.Styles)
			for _, dir := range [][2]string{{a.ID, b.ID}, {b.ID, a.ID}} {
				m.edges[edgeKey{RelGoesWith, dir[0], dir[1]}] = Edge{
					Type: RelGoesWith, From: dir[0], To: dir[1],
					StyleMatch: shared, CommonStyles: common, Score: score,
				}
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) BuildOutfitPairs(_ context.Context, p OutfitParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := m.sortedProducts()
	var n int64
	for _, top := range products {
		for _, bottom := range products {
			shared, ok := OutfitEligible(top, bottom, p)
			if !ok {
				continue
			}
			k := edgeKey{RelGoesWith, top.ID, bottom.ID}
			e := m.edges[k]
			e.Type, e.From, e.To = RelGoesWith, top.ID, bottom.ID
			e.OutfitType = OutfitTopBottom
			e.CommonStyles = CommonStyles(top.Styles, bottom.Styles)
			e.StyleMatch = shared
			e.Score = OutfitScore(shared)
			m.edges[k] = e
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) BuildInspiredBy(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.edges {
		if k.typ != RelInspiredBy {
			continue
		}
		prod, okProd := m.products[e.From]
		post, okPost := m.posts[e.To]
		if !okProd || !okPost || len(CommonStyles(prod.Styles, post.Styles)) == 0 {
			delete(m.edges, k)
		}
	}
	var n int64
	for _, prod := range m.products {
		for _, post := range m.posts {
			common := CommonStyles(prod.Styles, post.Styles)
			if len(common) == 0 {
				continue
			}
			m.edges[edgeKey{RelInspiredBy, prod.ID, post.ID}] = Edge{
				Type: RelInspiredBy, From: prod.ID, To: post.ID,
				CommonStyles: common, Similarity: InspiredSimilarity(len(common)),
			}
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) BuildStyleSimilarity(_ context.Context, p StyleSimilarityParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	co := map[[2]fashion.Style]int{}
	count := func(styles fashion.StyleSet) {
		set := fashion.NewStyleSet(styles...)
		for _, a := range set {
			for _, b := range set {
				if a < b {
					co[[2]fashion.Style{a, b}]++
				}
			}
		}
	}
	for _, prod := range m.products {
		count(prod.Styles)
	}
	for _, post := range m.posts {
		count(post.Styles)
	}
	for k := range m.edges {
		if k.typ != RelSimilarTo {
			continue
		}
		pair := [2]fashion.Style{fashion.Style(k.from), fashion.Style(k.to)}
		if pair[1] < pair[0] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if co[pair] < p.MinCoOccurrence {
			delete(m.edges, k)
		}
	}
	var n int64
	for pair, c := range co {
		if c < p.MinCoOccurrence {
			continue
		}
		for _, dir := range [][2]string{{string(pair[0]), string(pair[1])}, {string(pair[1]), string(pair[0])}} {
			m.edges[edgeKey{RelSimilarTo, dir[0], dir[1]}] = Edge{
				Type: RelSimilarTo, From: dir[0], To: dir[1],
				CoOccurrence: c, Similarity: StyleSimilarity(c),
			}
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Stats(_ context.Context, top int) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Relationships: map[string]int64{}}
	degree := map[string]int64{}
	linked := map[string]bool{}
	for k := range m.edges {
		st.Relationships[k.typ]++
		if k.typ == RelGoesWith {
			degree[k.from]++
			linked[k.from], linked[k.to] = true, true
		}
	}
	var hasStyle int64
	for _, p := range m.products {
		hasStyle += int64(len(p.Styles))
		if !linked[p.ID] {
			st.Isolated++
		}
	}
	for _, p := range m.posts {
		hasStyle += int64(len(p.Styles))
	}
	st.Relationships[RelHasStyle] = hasStyle
	for id, n := range degree {
		st.TopProducts = append(st.TopProducts, ProductDegree{ID: id, Name: m.products[id].Name, Recommendations: n})
	}
	sort.Slice(st.TopProducts, func(i, j int) bool {
		a, b := st.TopProducts[i], st.TopProducts[j]
		if a.Recommendations != b.Recommendations {
			return a.Recommendations > b.Recommendations
		}
		return a.ID < b.ID
	})
	if top >= 0 && len(st.TopProducts) > top {
		st.TopProducts = st.TopProducts[:top]
	}
	return st, nil
}

// Edges returns every edge of the type, ordered by endpoints.
func (m *MemoryStore) Edges(typ string) []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Edge
	for k, e := range m.edges {
		if k.typ == typ {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func (m *MemoryStore) InitSchema(context.Context, int) error { return nil }

func (m *MemoryStore) VerifySchema(context.Context) (SchemaReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep := SchemaReport{
		Nodes: map[string]int64{
			"Product":  int64(len(m.products)),
			"Post":     int64(len(m.posts)),
			"Style":    int64(len(fashion.Styles())),
			"Category": int64(len(fashion.Categories())),
		},
		Relationships: map[string]int64{},
	}
	for k := range m.edges {
		rep.Relationships[k.typ]++
	}
	return rep, nil
}
