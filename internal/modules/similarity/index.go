// Package similarity stores entity embeddings and answers cosine
// nearest-neighbour queries.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

type Kind string

const (
	KindPost    Kind = "post"
	KindProduct Kind = "product"
)

type Entry struct {
	ID     string
	Kind   Kind
	Vector []float32
}

func (e Entry) key() string { return string(e.Kind) + "/" + e.ID }

type Hit struct {
	ID    string
	Kind  Kind
	Score float64
}

// Index is a k-nearest-neighbour store. Search fails with
// fashion.ErrEmptyIndex when nothing has been stored.
type Index interface {
	Upsert(ctx context.Context, e Entry) error
	Search(ctx context.Context, vec []float32, k int) ([]Hit, error)
	Get(ctx context.Context, kind Kind, id string) (Entry, bool, error)
	Len(ctx context.Context) (int, error)
}

var (
	ErrZeroVector        = errors.New("similarity: zero-length or zero-norm vector")
	ErrDimensionMismatch = errors.New("similarity: dimension mismatch")
)

// Cosine is dot(a,b)/(|a||b|).
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	return dot(a, b) / (na * nb), nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// rank orders hits by score descending and entity id ascending, then cuts to k.
func rank(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ID != hits[j].ID {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Kind < hits[j].Kind
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func checkQuery(vec []float32, k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive", fashion.ErrInput)
	}
	if len(vec) == 0 || norm(vec) == 0 {
		return ErrZeroVector
	}
	return nil
}
