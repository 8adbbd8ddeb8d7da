package similarity

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

type memEntry struct {
	Entry
	norm float64
}

// MemoryIndex is an exact brute-force index. It is safe for concurrent use.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]memEntry
}

func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, entries: make(map[string]memEntry)}
}

// Check reports whether Upsert would accept e, without storing it.
func (m *MemoryIndex) Check(e Entry) error {
	_, err := m.check(e)
	return err
}

func (m *MemoryIndex) check(e Entry) (float64, error) {
	if e.ID == "" {
		return 0, fmt.Errorf("%w: entry id required", fashion.ErrInput)
	}
	n := norm(e.Vector)
	if n == 0 {
		return 0, ErrZeroVector
	}
	m.mu.RLock()
	dim := m.dim
	m.mu.RUnlock()
	if dim != 0 && len(e.Vector) != dim {
		return 0, fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(e.Vector), dim)
	}
	return n, nil
}

func (m *MemoryIndex) Upsert(_ context.Context, e Entry) error {
	n, err := m.check(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = len(e.Vector)
	}
	if len(e.Vector) != m.dim {
		return fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(e.Vector), m.dim)
	}
	vec := append([]float32(nil), e.Vector...)
	m.entries[e.key()] = memEntry{Entry: Entry{ID: e.ID, Kind: e.Kind, Vector: vec}, norm: n}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vec []float32, k int) ([]Hit, error) {
	if err := checkQuery(vec, k); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return nil, fashion.ErrEmptyIndex
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, index holds %d", ErrDimensionMismatch, len(vec), m.dim)
	}
	qn := norm(vec)
	hits := make([]Hit, 0, len(m.entries))
	for _, e := range m.entries {
		hits = append(hits, Hit{ID: e.ID, Kind: e.Kind, Score: dot(vec, e.Vector) / (qn * e.norm)})
	}
	return rank(hits, k), nil
}

func (m *MemoryIndex) Get(_ context.Context, kind Kind, id string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[Entry{ID: id, Kind: kind}.key()]
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{ID: e.ID, Kind: e.Kind, Vector: append([]float32(nil), e.Vector...)}, true, nil
}

func (m *MemoryIndex) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
