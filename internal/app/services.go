package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/outfitmatch-backend/internal/data/graph"
	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/ingestion/extractor"
	"github.com/yungbote/outfitmatch-backend/internal/ingestion/pipeline"
	"github.com/yungbote/outfitmatch-backend/internal/modules/matcher"
	"github.com/yungbote/outfitmatch-backend/internal/modules/querytranslate"
	"github.com/yungbote/outfitmatch-backend/internal/modules/recommend"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/modules/styletag"
	"github.com/yungbote/outfitmatch-backend/internal/modules/vision"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/cache"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/redis"
)

type Services struct {
	Store    graph.Store
	Local    *similarity.BadgerIndex
	Posts    *similarity.Mirror
	Products *similarity.Mirror
	Cache    cache.Cache
	Bus      redis.Bus

	Tagger     *styletag.Tagger
	Translator *querytranslate.Translator
	Embedder   *vision.GarmentEmbedder
	Matcher    *matcher.Matcher
	Pipeline   *pipeline.Service
	Builder    *recommend.Builder
}

func wireServices(ctx context.Context, log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	var s Services
	ok := false
	defer func() {
		if !ok {
			s.close(ctx)
		}
	}()

	// Graph store
	if clients.Neo4j != nil {
		store, err := graph.NewNeo4jStore(log, clients.Neo4j)
		if err != nil {
			clients.closeNeo4j(ctx)
			return Services{}, fmt.Errorf("init graph store: %w", err)
		}
		s.Store = store
	} else {
		s.Store = graph.NewMemoryStore()
	}

	// Vector indexes
	local, err := similarity.OpenBadger(log, cfg.Index.Path, cfg.Index.Dim)
	if err != nil {
		return Services{}, fmt.Errorf("open local index: %w", err)
	}
	s.Local = local
	if s.Posts, err = newMirror(log, cfg, clients, local, similarity.KindPost, metrics); err != nil {
		return Services{}, err
	}
	if s.Products, err = newMirror(log, cfg, clients, local, similarity.KindProduct, metrics); err != nil {
		return Services{}, err
	}

	// Cache + events
	s.Cache = newCache(log, cfg.Cache, clients.Redis, metrics)
	s.Bus = redis.NopBus{}
	if cfg.Cache.Events && clients.Redis != nil {
		s.Bus = redis.NewBus(log, clients.Redis, cfg.Cache.Channel)
	}

	// LLM-backed services
	tc := styletag.DefaultConfig()
	tc.Model = cfg.LLM.StyleModel
	tc.Default = fashion.Style(cfg.Search.DefaultStyle)
	if cfg.LLM.StyleAttempts > 0 {
		tc.Attempts = cfg.LLM.StyleAttempts
	}
	if cfg.LLM.StyleBackoff > 0 {
		tc.Backoff = cfg.LLM.StyleBackoff
	}
	tc.RequestsPerSecond = cfg.LLM.RequestsPerSecond
	if s.Tagger, err = styletag.New(log, clients.TextGen, tc, metrics); err != nil {
		return Services{}, fmt.Errorf("init style tagger: %w", err)
	}

	qc := querytranslate.DefaultConfig()
	qc.Model = cfg.LLM.FilterModel
	qc.Policy = querytranslate.Policy(cfg.LLM.FilterPolicy)
	qc.CacheTTL = cfg.Cache.TTL
	if s.Translator, err = querytranslate.New(log, clients.TextGen, s.Cache, qc, metrics); err != nil {
		return Services{}, fmt.Errorf("init query translator: %w", err)
	}

	// Vision
	s.Embedder = &vision.GarmentEmbedder{
		Isolator: vision.NewIsolator(vision.NewRemoteSegmenter(clients.Models, metrics), vision.IsolatorConfig{
			GarmentLabels: cfg.Inference.GarmentLabels,
		}),
		Embedder: vision.NewRemoteEmbedder(clients.Models, cfg.Index.Dim, metrics),
	}

	if s.Matcher, err = matcher.New(log, matcher.Deps{
		Translator: s.Translator,
		Embedder:   s.Embedder,
		Index:      s.Posts,
		Store:      s.Store,
		Cache:      s.Cache,
		Metrics:    metrics,
	}, matcher.Config{
		Limit:              cfg.Search.Limit,
		ComplementaryLimit: cfg.Search.ComplementaryLimit,
		Locale:             matcher.Locale(cfg.Search.Locale),
		DefaultStyle:       fashion.Style(cfg.Search.DefaultStyle),
		StyleCacheTTL:      cfg.Cache.TTL,
	}); err != nil {
		return Services{}, fmt.Errorf("init matcher: %w", err)
	}

	fetcher := extractor.NewFetcher(log, clients.Objects, extractor.FetcherConfig{
		Timeout:  cfg.Ingest.FetchTimeout,
		MaxBytes: cfg.Ingest.MaxImageBytes,
		Attempts: cfg.Ingest.FetchAttempts,
	})
	if s.Pipeline, err = pipeline.New(log, pipeline.Deps{
		Store:             s.Store,
		Tagger:            s.Tagger,
		Embedder:          s.Embedder,
		PostEmbeddings:    s.Posts,
		ProductEmbeddings: s.Products,
		Fetcher:           fetcher,
		Objects:           clients.Objects,
		Bus:               s.Bus,
		Metrics:           metrics,
	}, pipeline.Config{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	}); err != nil {
		return Services{}, fmt.Errorf("init ingestion pipeline: %w", err)
	}

	rc := recommend.DefaultConfig()
	rc.GoesWith.MaxPriceGap = cfg.Recommend.GoesWithMaxGap
	rc.GoesWith.MinCommonStyles = cfg.Recommend.MinCommonStyles
	rc.Outfit.MaxPriceGap = cfg.Recommend.OutfitMaxGap
	rc.StyleSimilarity.MinCoOccurrence = cfg.Recommend.MinCoOccurrence
	rc.TopProducts = cfg.Recommend.TopProducts
	s.Builder = recommend.NewBuilder(log, s.Store, rc, metrics)

	ok = true
	return s, nil
}

func newCache(log *logger.Logger, cfg CacheConfig, rdb *goredis.Client, metrics *observability.Metrics) cache.Cache {
	switch {
	case !cfg.Enabled:
		return cache.Noop{}
	case cfg.Backend == CacheBackendMemory:
		log.Info("Query cache is in-process", "size", cfg.Size)
		return cache.NewMemory(cfg.Size)
	case rdb != nil:
		return redis.NewCache(log, rdb, cfg.KeyPrefix, metrics)
	default:
		return cache.Noop{}
	}
}

// newMirror fronts one embedding kind with the badger view and, on neo4j,
// the graph vector index as the durable copy.
func newMirror(log *logger.Logger, cfg Config, clients Clients, local *similarity.BadgerIndex, kind similarity.Kind, metrics *observability.Metrics) (*similarity.Mirror, error) {
	var durable similarity.Durable
	if clients.Neo4j != nil {
		gi, err := similarity.NewGraphIndex(clients.Neo4j, kind)
		if err != nil {
			return nil, fmt.Errorf("init graph %s index: %w", kind, err)
		}
		durable = instrumentDurable("index_graph", gi, metrics)
	}
	m, err := similarity.NewMirror(log, instrumentIndex("index_local", local.Kind(kind), metrics), durable, similarity.Backend(cfg.Index.Backend))
	if err != nil {
		return nil, fmt.Errorf("init %s index: %w", kind, err)
	}
	return m, nil
}

func (s *Services) close(ctx context.Context) {
	if s.Local != nil {
		_ = s.Local.Close()
		s.Local = nil
	}
	if s.Store != nil {
		_ = s.Store.Close(ctx)
		s.Store = nil
	}
}
