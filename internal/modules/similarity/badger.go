package similarity

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

const embPrefix = "emb/"

// BadgerIndex persists embeddings of every kind in one badger store and
// serves queries from per-kind in-memory copies loaded at open. Use Kind to
// get a searchable view.
type BadgerIndex struct {
	db  *badger.DB
	dim int
	log *logger.Logger

	mu   sync.Mutex
	mems map[Kind]*MemoryIndex
	// writeMu orders disk and memory writes.
	writeMu sync.Mutex
}

// OpenBadger opens (or creates) the store at dir. An empty dir keeps
// everything in memory.
func OpenBadger(log *logger.Logger, dir string, dim int) (*BadgerIndex, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	idx := &BadgerIndex{db: db, dim: dim, log: log, mems: map[Kind]*MemoryIndex{}}
	n, err := idx.load()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("embedding store opened", "dir", dir, "entries", n)
	return idx, nil
}

func (b *BadgerIndex) load() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(embPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			kind, id, ok := splitKey(item.Key())
			if !ok {
				continue
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			vec, err := decodeVector(raw)
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", kind, id, err)
			}
			if err := b.memFor(kind).Upsert(context.Background(), Entry{ID: id, Kind: kind, Vector: vec}); err != nil {
				b.log.Warn("skipping stored embedding", "kind", kind, "id", id, "error", err)
				continue
			}
			n++
		}
		return nil
	})
	return n, err
}

func (b *BadgerIndex) memFor(kind Kind) *MemoryIndex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.mems[kind]
	if !ok {
		m = NewMemoryIndex(b.dim)
		b.mems[kind] = m
	}
	return m
}

// Upsert writes to disk before the in-memory copy so a failed write leaves
// both unchanged.
func (b *BadgerIndex) Upsert(ctx context.Context, e Entry) error {
	mem := b.memFor(e.Kind)
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := mem.Check(e); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e.Kind, e.ID), encodeVector(e.Vector))
	})
	if err != nil {
		return fmt.Errorf("persist %s/%s: %w", e.Kind, e.ID, err)
	}
	return mem.Upsert(ctx, e)
}

func (b *BadgerIndex) Get(ctx context.Context, kind Kind, id string) (Entry, bool, error) {
	return b.memFor(kind).Get(ctx, kind, id)
}

// Len counts entries of every kind.
func (b *BadgerIndex) Len(ctx context.Context) (int, error) {
	b.mu.Lock()
	mems := make([]*MemoryIndex, 0, len(b.mems))
	for _, m := range b.mems {
		mems = append(mems, m)
	}
	b.mu.Unlock()
	total := 0
	for _, m := range mems {
		n, err := m.Len(ctx)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Kind returns an Index restricted to one entity kind.
func (b *BadgerIndex) Kind(kind Kind) Index {
	return &badgerView{store: b, kind: kind}
}

type badgerView struct {
	store *BadgerIndex
	kind  Kind
}

func (v *badgerView) Upsert(ctx context.Context, e Entry) error {
	if e.Kind != v.kind {
		return fmt.Errorf("%w: %s index got %s entry", fashion.ErrInput, v.kind, e.Kind)
	}
	return v.store.Upsert(ctx, e)
}

func (v *badgerView) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	return v.store.memFor(v.kind).Search(ctx, vec, k)
}

func (v *badgerView) Get(ctx context.Context, kind Kind, id string) (Entry, bool, error) {
	return v.store.Get(ctx, kind, id)
}

func (v *badgerView) Len(ctx context.Context) (int, error) {
	return v.store.memFor(v.kind).Len(ctx)
}

func (b *BadgerIndex) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func entryKey(kind Kind, id string) []byte {
	return []byte(embPrefix + string(kind) + "/" + id)
}

func splitKey(key []byte) (Kind, string, bool) {
	rest := strings.TrimPrefix(string(key), embPrefix)
	kind, id, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return "", "", false
	}
	return Kind(kind), id, true
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes is not float32 aligned", len(raw))
	}
	out := make([]float32, len(raw)/4)
	r := bytes.NewReader(raw)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
