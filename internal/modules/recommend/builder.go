// Package recommend derives the recommendation relationships of the graph.
package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/data/graph"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

type Config struct {
	GoesWith        graph.GoesWithParams
	Outfit          graph.OutfitParams
	StyleSimilarity graph.StyleSimilarityParams
	TopProducts     int
}

func DefaultConfig() Config {
	return Config{
		GoesWith:        graph.DefaultGoesWith(),
		Outfit:          graph.DefaultOutfit(),
		StyleSimilarity: graph.DefaultStyleSimilarity(),
		TopProducts:     5,
	}
}

// Report is what one build wrote, plus the graph summary afterwards.
type Report struct {
	GoesWith        int64
	OutfitPairs     int64
	InspiredBy      int64
	StyleSimilarity int64
	Stats           graph.Stats
	Duration        time.Duration
}

// ErrBuildInProgress is returned when another build in this process is running.
var ErrBuildInProgress = fmt.Errorf("recommend: build already in progress")

type Builder struct {
	log     *logger.Logger
	store   graph.RelationshipBuilder
	cfg     Config
	metrics *observability.Metrics
	running sync.Mutex
}

func NewBuilder(log *logger.Logger, store graph.RelationshipBuilder, cfg Config, metrics *observability.Metrics) *Builder {
	return &Builder{log: log.With("service", "RelationshipBuilder"), store: store, cfg: cfg, metrics: metrics}
}

// Run executes every step in order. Steps merge by endpoint, so reruns on an
// unchanged graph leave it unchanged.
func (b *Builder) Run(ctx context.Context) (Report, error) {
	if !b.running.TryLock() {
		return Report{}, ErrBuildInProgress
	}
	defer b.running.Unlock()

	ctx, span := observability.StartSpan(ctx, "recommend.Build")
	defer span.End()

	start := time.Now()
	var rep Report
	steps := []struct {
		name string
		run  func(context.Context) (int64, error)
		out  *int64
	}{
		{"goes_with", func(ctx context.Context) (int64, error) { return b.store.BuildGoesWith(ctx, b.cfg.GoesWith) }, &rep.GoesWith},
		{"outfit_pairs", func(ctx context.Context) (int64, error) { return b.store.BuildOutfitPairs(ctx, b.cfg.Outfit) }, &rep.OutfitPairs},
		{"inspired_by", b.store.BuildInspiredBy, &rep.InspiredBy},
		{"style_similarity", func(ctx context.Context) (int64, error) {
			return b.store.BuildStyleSimilarity(ctx, b.cfg.StyleSimilarity)
		}, &rep.StyleSimilarity},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		t0 := time.Now()
		n, err := step.run(ctx)
		if err != nil {
			b.log.Error("relationship step failed", "step", step.name, "error", err)
			return rep, fmt.Errorf("%s: %w", step.name, err)
		}
		*step.out = n
		b.log.Info("relationship step done", "step", step.name, "edges", n, "took", time.Since(t0).String())
	}

	stats, err := b.store.Stats(ctx, b.cfg.TopProducts)
	if err != nil {
		return rep, fmt.Errorf("stats: %w", err)
	}
	rep.Stats = stats
	rep.Duration = time.Since(start)
	for rel, n := range stats.Relationships {
		b.metrics.SetRelationships(rel, n)
	}
	b.log.Info("relationship build finished",
		"goes_with", rep.GoesWith,
		"outfit_pairs", rep.OutfitPairs,
		"inspired_by", rep.InspiredBy,
		"similar_to", rep.StyleSimilarity,
		"isolated_products", stats.Isolated,
		"took", rep.Duration.String(),
	)
	for i, p := range stats.TopProducts {
		b.log.Info("top recommended product", "rank", i+1, "id", p.ID, "name", p.Name, "recommendations", p.Recommendations)
	}
	return rep, nil
}
