package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

func TestCosineSelfIsOne(t *testing.T) {
	v := []float32{0.3, -1.2, 4, 0.01}
	got, err := Cosine(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	_, err = Cosine(v, []float32{0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrZeroVector)
	_, err = Cosine(v, []float32{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryIndexEmpty(t *testing.T) {
	idx := NewMemoryIndex(0)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if !errors.Is(err, fashion.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestMemoryIndexSelfIsTopHit(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)
	vecs := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.7, 0.7, 0},
		"d": {0, 0, 1},
	}
	for id, v := range vecs {
		require.NoError(t, idx.Upsert(ctx, Entry{ID: id, Kind: KindPost, Vector: v}))
	}
	for id, v := range vecs {
		hits, err := idx.Search(ctx, v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, id, hits[0].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	}
}

func TestMemoryIndexTiesBreakByID(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	for _, id := range []string{"p3", "p1", "p2"} {
		require.NoError(t, idx.Upsert(ctx, Entry{ID: id, Kind: KindPost, Vector: []float32{1, 1}}))
	}
	hits, err := idx.Search(ctx, []float32{2, 2}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].ID)
	assert.Equal(t, "p2", hits[1].ID)
}

func TestMemoryIndexRejectsBadVectors(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	assert.ErrorIs(t, idx.Upsert(ctx, Entry{ID: "z", Kind: KindPost, Vector: []float32{0, 0}}), ErrZeroVector)
	assert.ErrorIs(t, idx.Upsert(ctx, Entry{ID: "x", Kind: KindPost, Vector: []float32{1, 2, 3}}), ErrDimensionMismatch)
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "ok", Kind: KindPost, Vector: []float32{1, 2}}))
	_, err := idx.Search(ctx, []float32{1, 2}, 0)
	assert.ErrorIs(t, err, fashion.ErrInput)
}

func TestBadgerIndexRoundTripsThroughStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx, err := OpenBadger(logger.Nop(), dir, 0)
	require.NoError(t, err)
	want := []float32{0.25, -1.5, float32(math.Pi)}
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "post_1", Kind: KindPost, Vector: want}))
	require.NoError(t, idx.Close())

	reopened, err := OpenBadger(logger.Nop(), dir, 0)
	require.NoError(t, err)
	defer reopened.Close()
	n, err := reopened.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, ok, err := reopened.Get(ctx, KindPost, "post_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got.Vector)
}

func TestBadgerFailedWriteLeavesMemoryUntouched(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadger(logger.Nop(), "", 0)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, Entry{ID: "post_1", Kind: KindPost, Vector: []float32{1, 0}}))
	require.NoError(t, store.Close())

	err = store.Upsert(ctx, Entry{ID: "post_2", Kind: KindPost, Vector: []float32{0, 1}})
	require.Error(t, err)
	_, ok, err := store.Get(ctx, KindPost, "post_2")
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBadgerRejectsBadVectorsBeforeDisk(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadger(logger.Nop(), "", 2)
	require.NoError(t, err)
	defer store.Close()
	assert.ErrorIs(t, store.Upsert(ctx, Entry{ID: "p", Kind: KindPost, Vector: []float32{0, 0}}), ErrZeroVector)
	require.NoError(t, store.Upsert(ctx, Entry{ID: "p", Kind: KindPost, Vector: []float32{1, 0}}))
	assert.ErrorIs(t, store.Upsert(ctx, Entry{ID: "q", Kind: KindPost, Vector: []float32{1, 0, 0}}), ErrDimensionMismatch)
}

func TestBadgerKindViewsAreSeparate(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadger(logger.Nop(), "", 0)
	require.NoError(t, err)
	defer store.Close()
	posts, products := store.Kind(KindPost), store.Kind(KindProduct)

	require.NoError(t, posts.Upsert(ctx, Entry{ID: "post_1", Kind: KindPost, Vector: []float32{1, 0}}))
	require.NoError(t, products.Upsert(ctx, Entry{ID: "prod_1", Kind: KindProduct, Vector: []float32{1, 0}}))
	assert.ErrorIs(t, posts.Upsert(ctx, Entry{ID: "prod_2", Kind: KindProduct, Vector: []float32{0, 1}}), fashion.ErrInput)

	hits, err := posts.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "post_1", hits[0].ID)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSplitKey(t *testing.T) {
	kind, id, ok := splitKey(entryKey(KindProduct, "prod_7/x"))
	require.True(t, ok)
	assert.Equal(t, KindProduct, kind)
	assert.Equal(t, "prod_7/x", id)
	_, _, ok = splitKey([]byte("emb/post"))
	assert.False(t, ok)
}

type fakeDurable struct {
	*MemoryIndex
	upserts int
}

func (f *fakeDurable) Upsert(ctx context.Context, e Entry) error {
	f.upserts++
	return f.MemoryIndex.Upsert(ctx, e)
}

func (f *fakeDurable) Each(ctx context.Context, fn func(Entry) error) error {
	for _, e := range f.entries {
		if err := fn(e.Entry); err != nil {
			return err
		}
	}
	return nil
}

func TestMirrorKeepsExistingEmbedding(t *testing.T) {
	ctx := context.Background()
	durable := &fakeDurable{MemoryIndex: NewMemoryIndex(2)}
	local := NewMemoryIndex(2)
	m, err := NewMirror(logger.Nop(), local, durable, BackendLocal)
	require.NoError(t, err)

	first, created, err := m.Put(ctx, Entry{ID: "p1", Kind: KindPost, Vector: []float32{1, 0}})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []float32{1, 0}, first.Vector)

	second, created, err := m.Put(ctx, Entry{ID: "p1", Kind: KindPost, Vector: []float32{0, 1}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []float32{1, 0}, second.Vector)
	assert.Equal(t, 1, durable.upserts)

	got, ok, err := local.Get(ctx, KindPost, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, got.Vector)
}

func TestMirrorResyncFillsLocal(t *testing.T) {
	ctx := context.Background()
	durable := &fakeDurable{MemoryIndex: NewMemoryIndex(2)}
	require.NoError(t, durable.MemoryIndex.Upsert(ctx, Entry{ID: "a", Kind: KindPost, Vector: []float32{1, 0}}))
	require.NoError(t, durable.MemoryIndex.Upsert(ctx, Entry{ID: "b", Kind: KindPost, Vector: []float32{0, 1}}))
	local := NewMemoryIndex(2)
	m, err := NewMirror(logger.Nop(), local, durable, BackendLocal)
	require.NoError(t, err)

	n, err := m.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	hits, err := m.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", hits[0].ID)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, b)
	b, err = ParseBackend("Graph")
	require.NoError(t, err)
	assert.Equal(t, BackendGraph, b)
	_, err = ParseBackend("faiss")
	assert.Error(t, err)
}
