// Package matcher answers image plus caption queries against the catalog.
package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/outfitmatch-backend/internal/data/graph"
	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
	"github.com/yungbote/outfitmatch-backend/internal/modules/querytranslate"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/modules/vision"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/cache"
	"github.com/yungbote/outfitmatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

// StyleCacheNamespace holds image hash to detected styles; flush it when posts change.
const StyleCacheNamespace = "image_styles"

type Translator interface {
	Translate(ctx context.Context, query string) (querytranslate.Translation, error)
}

type GarmentEmbedder interface {
	EmbedGarment(ctx context.Context, img image.Image) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]similarity.Hit, error)
}

type Config struct {
	Limit              int
	ComplementaryLimit int
	Locale             Locale
	DefaultStyle       fashion.Style
	StyleCacheTTL      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Limit:              10,
		ComplementaryLimit: 5,
		Locale:             LocaleZhTW,
		DefaultStyle:       fashion.DefaultStyle,
		StyleCacheTTL:      time.Hour,
	}
}

type Deps struct {
	Translator Translator
	Embedder   GarmentEmbedder
	Index      Searcher
	Store      graph.MatchReader
	Cache      cache.Cache
	Metrics    *observability.Metrics
}

type Matcher struct {
	log  *logger.Logger
	deps Deps
	cfg  Config
	msg  messages
}

func New(log *logger.Logger, deps Deps, cfg Config) (*Matcher, error) {
	if deps.Translator == nil || deps.Embedder == nil || deps.Index == nil || deps.Store == nil {
		return nil, fmt.Errorf("matcher: translator, embedder, index and store are required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.ComplementaryLimit <= 0 {
		cfg.ComplementaryLimit = 5
	}
	if !cfg.DefaultStyle.Valid() {
		return nil, fmt.Errorf("matcher: default style %q is not in the vocabulary", cfg.DefaultStyle)
	}
	return &Matcher{log: log.With("service", "Matcher"), deps: deps, cfg: cfg, msg: messagesFor(cfg.Locale)}, nil
}

type Query struct {
	Text  string
	Image []byte
}

// Search runs one query. Only malformed input is returned as an error; every
// downstream failure becomes an empty result with an explanatory text.
func (m *Matcher) Search(ctx context.Context, q Query) (fashion.SearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "matcher.Search")
	defer span.End()

	if len(q.Image) == 0 {
		return fashion.SearchResult{}, fashion.InputErrorf("image is required")
	}
	img, format, err := vision.Decode(q.Image)
	if err != nil {
		return fashion.SearchResult{}, err
	}
	span.SetAttributes(attribute.String("image.format", format))

	var (
		translation querytranslate.Translation
		styles      fashion.StyleSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		translation, err = m.deps.Translator.Translate(gctx, q.Text)
		return err
	})
	g.Go(func() error {
		var err error
		styles, err = m.detectStyles(gctx, img, q.Image)
		return err
	})
	if err := g.Wait(); err != nil {
		return m.failed(ctx, err), nil
	}

	pred := translation.Predicate
	if pred == nil {
		pred = filter.True()
	}
	res := fashion.SearchResult{DetectedStyles: styles, Filter: pred.String(), Tier: fashion.TierNone}

	hits, err := m.deps.Store.MatchExact(ctx, styles, pred, m.cfg.Limit)
	if err == nil && len(hits) > 0 {
		res.Tier = fashion.TierExact
	} else if err == nil {
		hits, err = m.deps.Store.MatchPartial(ctx, styles, pred, m.cfg.Limit)
		if err == nil && len(hits) > 0 {
			res.Tier = fashion.TierPartial
		}
	}
	if err != nil {
		failed := m.failed(ctx, err)
		failed.DetectedStyles, failed.Filter = styles, res.Filter
		return failed, nil
	}

	res.Products = hits
	if len(hits) == 0 {
		res.Text = m.msg.noMatch
	} else {
		res.Text = m.msg.found(styles)
	}
	m.deps.Metrics.IncSearch(string(res.Tier))
	span.SetAttributes(attribute.String("match.tier", string(res.Tier)), attribute.Int("match.count", len(hits)))
	m.log.Info("search served", append(ctxutil.LogFields(ctx),
		"tier", string(res.Tier), "results", len(hits), "styles", styles.Strings(), "filter", res.Filter, "filter_source", string(translation.Source))...)
	return res, nil
}

// detectStyles maps the query image to the style labels of its nearest post.
// Only a store failure is returned; every other problem yields the default.
func (m *Matcher) detectStyles(ctx context.Context, img image.Image, raw []byte) (fashion.StyleSet, error) {
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])
	var cached []string
	if ok, err := m.deps.Cache.Get(ctx, StyleCacheNamespace, key, &cached); err != nil {
		m.log.Warn("style cache read failed", "error", err)
	} else if ok {
		if styles := fashion.StyleSetFromStrings(cached); len(styles) > 0 {
			return styles, nil
		}
	}

	vec, err := m.deps.Embedder.EmbedGarment(ctx, img)
	if err != nil {
		return m.defaultStyles(ctx, "embed", err), nil
	}
	hits, err := m.deps.Index.Search(ctx, vec, 1)
	if err != nil || len(hits) == 0 {
		if err == nil {
			err = fashion.ErrEmptyIndex
		}
		return m.defaultStyles(ctx, "index", err), nil
	}
	styles, err := m.deps.Store.PostStyles(ctx, hits[0].ID)
	if err != nil {
		return nil, err
	}
	if len(styles) == 0 {
		return m.defaultStyles(ctx, "untagged_neighbor", fmt.Errorf("post %s has no styles", hits[0].ID)), nil
	}
	if err := m.deps.Cache.Set(ctx, StyleCacheNamespace, key, styles.Strings(), m.cfg.StyleCacheTTL); err != nil {
		m.log.Warn("style cache write failed", "error", err)
	}
	return styles, nil
}

func (m *Matcher) defaultStyles(ctx context.Context, stage string, err error) fashion.StyleSet {
	kind := "style_" + stage
	if errors.Is(err, fashion.ErrNoGarmentDetected) {
		kind = "no_garment"
	}
	m.deps.Metrics.IncFallback(kind)
	m.log.Warn("using default style", append(ctxutil.LogFields(ctx), "stage", stage, "default", string(m.cfg.DefaultStyle), "error", err)...)
	return fashion.NewStyleSet(m.cfg.DefaultStyle)
}

func (m *Matcher) failed(ctx context.Context, err error) fashion.SearchResult {
	m.deps.Metrics.IncSearch("failed")
	text := m.msg.unavailable
	if errors.Is(err, fashion.ErrInput) {
		text = m.msg.badCondition
	}
	m.log.Error("search failed", append(ctxutil.LogFields(ctx), "error", err)...)
	return fashion.SearchResult{Text: text, Tier: fashion.TierNone}
}

// Complementary lists products from other categories that share a style with the given one.
func (m *Matcher) Complementary(ctx context.Context, productID string, limit int) ([]fashion.ProductHit, error) {
	if limit <= 0 {
		limit = m.cfg.ComplementaryLimit
	}
	return m.deps.Store.Complementary(ctx, productID, limit)
}

func (m *Matcher) Product(ctx context.Context, id string) (fashion.Product, error) {
	return m.deps.Store.GetProduct(ctx, id)
}
