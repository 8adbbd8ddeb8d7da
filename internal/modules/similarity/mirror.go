package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

// Durable is the source-of-truth embedding store (the graph).
type Durable interface {
	Index
	Each(ctx context.Context, fn func(Entry) error) error
}

type Backend string

const (
	BackendLocal Backend = "local"
	BackendGraph Backend = "graph"
)

func ParseBackend(raw string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BackendLocal:
		return BackendLocal, nil
	case BackendGraph:
		return BackendGraph, nil
	default:
		return "", fmt.Errorf("unknown index backend %q", raw)
	}
}

// Mirror keeps a local index consistent with the durable store. Writes land
// in both; reads go to the configured backend. A nil durable store makes the
// local index authoritative.
type Mirror struct {
	log     *logger.Logger
	local   Index
	durable Durable
	read    Backend
}

func NewMirror(log *logger.Logger, local Index, durable Durable, read Backend) (*Mirror, error) {
	if local == nil {
		return nil, fmt.Errorf("similarity: local index required")
	}
	if read == BackendGraph && durable == nil {
		return nil, fmt.Errorf("similarity: graph read backend needs a durable store")
	}
	return &Mirror{log: log.With("component", "IndexMirror"), local: local, durable: durable, read: read}, nil
}

// Put stores e unless an embedding already exists for the entity, in which
// case the stored vector wins and is copied into the local index. It returns
// the vector now in effect and whether e was written.
func (m *Mirror) Put(ctx context.Context, e Entry) (Entry, bool, error) {
	existing, ok, err := m.lookup(ctx, e.Kind, e.ID)
	if err != nil {
		return Entry{}, false, err
	}
	if ok {
		if err := m.local.Upsert(ctx, existing); err != nil {
			return Entry{}, false, err
		}
		return existing, false, nil
	}
	if m.durable != nil {
		if err := m.durable.Upsert(ctx, e); err != nil {
			return Entry{}, false, err
		}
	}
	if err := m.local.Upsert(ctx, e); err != nil {
		// graph holds it; the next resync repairs the local copy
		m.log.Error("local index write failed after durable write", "kind", e.Kind, "id", e.ID, "error", err)
		return Entry{}, false, err
	}
	return e, true, nil
}

// Restore copies an existing embedding into the local index and reports
// whether one exists. Callers use it to skip computing a vector that Put
// would discard.
func (m *Mirror) Restore(ctx context.Context, kind Kind, id string) (bool, error) {
	existing, ok, err := m.lookup(ctx, kind, id)
	if err != nil || !ok {
		return false, err
	}
	if err := m.local.Upsert(ctx, existing); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mirror) lookup(ctx context.Context, kind Kind, id string) (Entry, bool, error) {
	if m.durable != nil {
		return m.durable.Get(ctx, kind, id)
	}
	return m.local.Get(ctx, kind, id)
}

func (m *Mirror) Upsert(ctx context.Context, e Entry) error {
	_, _, err := m.Put(ctx, e)
	return err
}

func (m *Mirror) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if m.read == BackendGraph {
		return m.durable.Search(ctx, vec, k)
	}
	return m.local.Search(ctx, vec, k)
}

func (m *Mirror) Get(ctx context.Context, kind Kind, id string) (Entry, bool, error) {
	return m.lookup(ctx, kind, id)
}

func (m *Mirror) Len(ctx context.Context) (int, error) {
	if m.read == BackendGraph {
		return m.durable.Len(ctx)
	}
	return m.local.Len(ctx)
}

// Resync copies every durable embedding into the local index.
func (m *Mirror) Resync(ctx context.Context) (int, error) {
	if m.durable == nil {
		return 0, nil
	}
	n, skipped := 0, 0
	err := m.durable.Each(ctx, func(e Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.local.Upsert(ctx, e); err != nil {
			skipped++
			m.log.Warn("resync skipped embedding", "kind", e.Kind, "id", e.ID, "error", err)
			return nil
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	m.log.Info("local index resynced", "entries", n, "skipped", skipped)
	return n, nil
}
