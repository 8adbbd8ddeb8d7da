// Package pipeline turns catalog rows and scraped posts into graph nodes,
// style labels and garment embeddings.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/data/graph"
	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/modules/styletag"
	"github.com/yungbote/outfitmatch-backend/internal/modules/vision"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/redis"
)

type StyleTagger interface {
	TagProduct(ctx context.Context, in styletag.ProductInput) fashion.StyleSet
	TagPost(ctx context.Context, in styletag.PostInput) fashion.StyleSet
	Revalidate(stored string) fashion.StyleSet
}

type GarmentEmbedder interface {
	EmbedGarment(ctx context.Context, img image.Image) ([]float32, error)
}

// EmbeddingStore keeps an existing embedding instead of overwriting it.
type EmbeddingStore interface {
	// Restore reloads a stored embedding into the serving index and reports
	// whether there was one.
	Restore(ctx context.Context, kind similarity.Kind, id string) (bool, error)
	Put(ctx context.Context, e similarity.Entry) (similarity.Entry, bool, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type ObjectWriter interface {
	Write(ctx context.Context, uri string, r io.Reader) error
}

type Deps struct {
	Store    graph.CatalogWriter
	Tagger   StyleTagger
	Embedder GarmentEmbedder
	// PostEmbeddings and ProductEmbeddings back the two vector indexes.
	PostEmbeddings    EmbeddingStore
	ProductEmbeddings EmbeddingStore
	Fetcher           ImageFetcher
	// Objects receives tagged exports addressed by gs:// URIs; optional.
	Objects ObjectWriter
	Bus     redis.Bus
	Metrics *observability.Metrics
}

type Config struct {
	Workers   int
	BatchSize int
}

func DefaultConfig() Config { return Config{Workers: 4, BatchSize: 200} }

type Service struct {
	log  *logger.Logger
	deps Deps
	cfg  Config
	now  func() time.Time
}

func New(log *logger.Logger, deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pipeline: catalog writer required")
	}
	if deps.Tagger == nil {
		return nil, fmt.Errorf("pipeline: style tagger required")
	}
	if deps.Bus == nil {
		deps.Bus = redis.NopBus{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Service{log: log.With("service", "IngestionPipeline"), deps: deps, cfg: cfg, now: time.Now}, nil
}

// Report counts what a run did. Warnings carry per-record problems that did
// not stop the run.
type Report struct {
	Source      string
	Read        int
	Tagged      int
	Revalidated int
	Upserted    int
	Embedded    int
	Kept        int
	NoGarment   int
	Skipped     int
	Warnings    []string
	Duration    time.Duration
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// embed stores the garment embedding for id unless one is already stored.
// load supplies the image and is only called when a vector has to be
// computed. It returns fashion.ErrNoGarmentDetected untouched.
func (s *Service) embed(ctx context.Context, kind similarity.Kind, id string, load func(context.Context) ([]byte, error)) (bool, error) {
	store := s.deps.PostEmbeddings
	if kind == similarity.KindProduct {
		store = s.deps.ProductEmbeddings
	}
	if s.deps.Embedder == nil || store == nil {
		return false, fmt.Errorf("%s embedding not configured", kind)
	}
	kept, err := store.Restore(ctx, kind, id)
	if err != nil {
		return false, fmt.Errorf("look up embedding: %w", err)
	}
	if kept {
		return false, nil
	}
	raw, err := load(ctx)
	if err != nil {
		return false, err
	}
	img, _, err := vision.Decode(raw)
	if err != nil {
		return false, err
	}
	vec, err := s.deps.Embedder.EmbedGarment(ctx, img)
	if err != nil {
		return false, err
	}
	_, written, err := store.Put(ctx, similarity.Entry{ID: id, Kind: kind, Vector: vec})
	if err != nil {
		return false, fmt.Errorf("store embedding: %w", err)
	}
	return written, nil
}

func (s *Service) announce(ctx context.Context, kind, source string, count int) {
	ev := redis.Event{Kind: kind, Source: source, Count: count, At: s.now().UTC()}
	if err := s.deps.Bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Event publish failed", "kind", kind, "error", err)
	}
}
