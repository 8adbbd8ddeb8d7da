// Package querytranslate turns a free-text shopping query into a validated
// filter predicate.
package querytranslate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/cache"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/retry"
	"github.com/yungbote/outfitmatch-backend/internal/platform/textgen"
)

const cacheNamespace = "nl2filter"

// Policy decides what a failed translation means.
type Policy string

const (
	// FailOpen drops the filter: every product passes.
	FailOpen Policy = "fail_open"
	// FailClosed reports the failure and the search returns nothing.
	FailClosed Policy = "fail_closed"
)

func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FailOpen, "open":
		return FailOpen, nil
	case FailClosed, "closed":
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown filter failure policy %q", raw)
}

type Config struct {
	Model       string
	Temperature float32
	Policy      Policy
	Attempts    int
	Backoff     time.Duration
	CacheTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		Temperature: 0.1,
		Policy:      FailOpen,
		Attempts:    2,
		Backoff:     500 * time.Millisecond,
		CacheTTL:    24 * time.Hour,
	}
}

// Source records where a translation came from.
type Source string

const (
	SourceEmpty    Source = "empty"
	SourceModel    Source = "model"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

type Translation struct {
	Predicate *filter.Predicate
	Source    Source
	// Err is the swallowed failure when Source is SourceFallback.
	Err error
}

type Translator struct {
	log     *logger.Logger
	gen     textgen.Generator
	cache   cache.Cache
	cfg     Config
	metrics *observability.Metrics
}

func New(log *logger.Logger, gen textgen.Generator, c cache.Cache, cfg Config, metrics *observability.Metrics) (*Translator, error) {
	if gen == nil {
		return nil, fmt.Errorf("querytranslate: generator required")
	}
	if c == nil {
		c = cache.Noop{}
	}
	if cfg.Policy == "" {
		cfg.Policy = FailOpen
	}
	return &Translator{log: log.With("component", "QueryTranslator"), gen: gen, cache: c, cfg: cfg, metrics: metrics}, nil
}

// Translate never returns an error under FailOpen. Under FailClosed a failed
// translation comes back as an ExternalServiceError or an ErrInput.
func (t *Translator) Translate(ctx context.Context, query string) (Translation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Translation{Predicate: filter.True(), Source: SourceEmpty}, nil
	}
	key := cache.Key(cache.NormalizeText(query))
	var cached string
	if ok, err := t.cache.Get(ctx, cacheNamespace, key, &cached); err != nil {
		t.log.Warn("filter cache read failed", "error", err)
	} else if ok {
		if pred, err := filter.Parse(cached); err == nil {
			return Translation{Predicate: pred, Source: SourceCache}, nil
		}
	}

	pred, err := t.translate(ctx, query)
	if err != nil {
		return t.fallback(query, err)
	}
	if err := t.cache.Set(ctx, cacheNamespace, key, pred.String(), t.cfg.CacheTTL); err != nil {
		t.log.Warn("filter cache write failed", "error", err)
	}
	t.log.Debug("query translated", "query", query, "filter", pred.String())
	return Translation{Predicate: pred, Source: SourceModel}, nil
}

func (t *Translator) translate(ctx context.Context, query string) (*filter.Predicate, error) {
	var raw string
	err := retry.Do(ctx, retry.Fixed(t.cfg.Attempts, t.cfg.Backoff), t.log, "nl2filter", func(ctx context.Context) error {
		out, err := t.gen.Generate(ctx, textgen.Request{
			System:      systemPrompt,
			Prompt:      buildPrompt(query),
			Model:       t.cfg.Model,
			Temperature: t.cfg.Temperature,
			MaxTokens:   200,
		})
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, fashion.External("textgen", "nl2filter", err)
	}
	pred, err := filter.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: untranslatable model output %q: %v", fashion.ErrInput, strings.TrimSpace(raw), err)
	}
	return pred, nil
}

func (t *Translator) fallback(query string, err error) (Translation, error) {
	if t.cfg.Policy == FailClosed {
		t.metrics.IncFallback("filter_fail_closed")
		t.log.Warn("query translation failed, failing closed", "query", query, "error", err)
		return Translation{Source: SourceFallback, Err: err}, err
	}
	t.metrics.IncFallback("filter_fail_open")
	t.log.Warn("query translation failed, dropping filter", "query", query, "error", err)
	return Translation{Predicate: filter.True(), Source: SourceFallback, Err: err}, nil
}

func (t *Translator) Policy() Policy { return t.cfg.Policy }
