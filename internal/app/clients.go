package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/outfitmatch-backend/internal/data/db"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/gcp"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/modelhttp"
	"github.com/yungbote/outfitmatch-backend/internal/platform/neo4jdb"
	"github.com/yungbote/outfitmatch-backend/internal/platform/redis"
	"github.com/yungbote/outfitmatch-backend/internal/platform/textgen"
)

// ErrLLMNotConfigured is what the placeholder generator returns when no
// provider key is set.
var ErrLLMNotConfigured = errors.New("text generation is not configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")

type Clients struct {
	// Neo4j is owned by the graph store once wired; nil with the memory backend.
	Neo4j   *neo4jdb.Client
	Redis   *goredis.Client
	TextGen textgen.Generator
	// LLMReady is false when TextGen is the placeholder.
	LLMReady bool
	Models   *modelhttp.Client
	Objects  *lazyObjects
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Neo4j
	if cfg.Graph.Backend == "neo4j" {
		client, err := neo4jdb.New(ctx, log, neo4jdb.Config{
			URI:         cfg.Graph.URI,
			User:        cfg.Graph.User,
			Password:    cfg.Graph.Password,
			Database:    cfg.Graph.Database,
			Timeout:     cfg.Graph.Timeout,
			MaxPoolSize: cfg.Graph.MaxPoolSize,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init neo4j: %w", err)
		}
		c.Neo4j = client
	}

	// Redis
	if cfg.UsesRedis() {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			c.closeNeo4j(ctx)
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
	}

	// LLM
	gen, err := textgen.New(log, textgen.Config{
		Provider:     cfg.LLM.Provider,
		APIKey:       cfg.LLM.APIKey(),
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.StyleModel,
		Timeout:      cfg.LLM.Timeout,
	}, metrics)
	if err != nil {
		log.Warn("Text generation unavailable; style tagging and filter translation will fall back", "provider", cfg.LLM.Provider, "error", err)
		gen = textgen.Func(func(context.Context, textgen.Request) (string, error) { return "", ErrLLMNotConfigured })
	} else {
		c.LLMReady = true
	}
	c.TextGen = gen

	// Inference sidecar
	models, err := modelhttp.New(modelhttp.Config{
		BaseURL:           cfg.Inference.URL,
		APIKey:            cfg.Inference.APIKey,
		SegmentationModel: cfg.Inference.SegmentationModel,
		EmbeddingModel:    cfg.Inference.EmbeddingModel,
		Device:            cfg.DeviceHint(),
		Timeout:           cfg.Inference.Timeout,
	})
	if err != nil {
		c.Close(ctx)
		c.closeNeo4j(ctx)
		return Clients{}, fmt.Errorf("init inference client: %w", err)
	}
	c.Models = models

	// Object storage
	c.Objects = newLazyObjects(log, gcp.StorageConfig{
		Mode:         gcp.StorageMode(cfg.Storage.Mode),
		EmulatorHost: cfg.Storage.EmulatorHost,
		Credentials:  cfg.Storage.Credentials,
	})

	return c, nil
}

// OpenPostgres connects to the legacy catalog database on demand.
func OpenPostgres(log *logger.Logger, cfg Config) (*db.PostgresService, error) {
	if !cfg.Postgres.Enabled() {
		return nil, fmt.Errorf("postgres is not configured (set POSTGRES_DSN or POSTGRES_HOST)")
	}
	return db.NewPostgresService(log, cfg.Postgres)
}

func (c *Clients) closeNeo4j(ctx context.Context) {
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}

// Close releases everything except Neo4j, which the graph store closes.
func (c *Clients) Close(context.Context) {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Objects != nil {
		_ = c.Objects.Close()
	}
}
