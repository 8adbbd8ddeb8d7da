// Package styletag assigns vocabulary style labels to products and posts
// using a text-generation model.
package styletag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/retry"
	"github.com/yungbote/outfitmatch-backend/internal/platform/textgen"
)

type Config struct {
	Model       string
	Temperature float32
	MaxStyles   int
	Default     fashion.Style
	Attempts    int
	Backoff     time.Duration
	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxStyles:   2,
		Default:     fashion.DefaultStyle,
		Attempts:    3,
		Backoff:     2 * time.Second,
	}
}

type Tagger struct {
	log     *logger.Logger
	gen     textgen.Generator
	cfg     Config
	limiter *rate.Limiter
	metrics *observability.Metrics
}

func New(log *logger.Logger, gen textgen.Generator, cfg Config, metrics *observability.Metrics) (*Tagger, error) {
	if gen == nil {
		return nil, fmt.Errorf("styletag: generator required")
	}
	if !cfg.Default.Valid() {
		return nil, fmt.Errorf("styletag: default style %q is not in the vocabulary", cfg.Default)
	}
	if cfg.MaxStyles <= 0 {
		cfg.MaxStyles = 2
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	t := &Tagger{log: log.With("component", "StyleTagger"), gen: gen, cfg: cfg, metrics: metrics}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t, nil
}

// TagProduct never fails; an unusable answer yields the default label.
func (t *Tagger) TagProduct(ctx context.Context, in ProductInput) fashion.StyleSet {
	styles, err := t.predict(ctx, productPrompt(in, t.cfg.MaxStyles))
	return t.orDefault(styles, err, "product", in.Name)
}

func (t *Tagger) TagPost(ctx context.Context, in PostInput) fashion.StyleSet {
	styles, err := t.predict(ctx, postPrompt(in, t.cfg.MaxStyles))
	return t.orDefault(styles, err, "post", firstRunes(in.Caption, 40))
}

// Revalidate checks a stored label list (e.g. a predicted_style column)
// without calling the model.
func (t *Tagger) Revalidate(stored string) fashion.StyleSet {
	styles, err := Parse(stored, t.cfg.MaxStyles)
	if err != nil {
		styles = fashion.StyleSetFromStrings(splitPlain(stored))
		if len(styles) > t.cfg.MaxStyles {
			styles = styles[:t.cfg.MaxStyles]
		}
	}
	if len(styles) == 0 {
		return fashion.NewStyleSet(t.cfg.Default)
	}
	return styles
}

func (t *Tagger) Default() fashion.Style { return t.cfg.Default }

func (t *Tagger) orDefault(styles fashion.StyleSet, err error, kind, subject string) fashion.StyleSet {
	if err == nil && len(styles) > 0 {
		return styles
	}
	t.metrics.IncFallback("style_default")
	t.log.Warn("Style prediction unusable, using default", "kind", kind, "subject", subject, "default", string(t.cfg.Default), "error", err)
	return fashion.NewStyleSet(t.cfg.Default)
}

func (t *Tagger) predict(ctx context.Context, prompt string) (fashion.StyleSet, error) {
	var raw string
	err := retry.Do(ctx, retry.Fixed(t.cfg.Attempts, t.cfg.Backoff), t.log, "style_predict", func(ctx context.Context) error {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		out, err := t.gen.Generate(ctx, textgen.Request{
			System:      systemPrompt,
			Prompt:      prompt,
			Model:       t.cfg.Model,
			Temperature: t.cfg.Temperature,
			MaxTokens:   50,
		})
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, fashion.External("textgen", "style_predict", err)
		}
		return nil, err
	}
	return Parse(raw, t.cfg.MaxStyles)
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
