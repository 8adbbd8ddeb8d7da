// Package textgen talks to hosted text-generation models. Completions are
// untrusted text; callers validate them.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrEmptyCompletion is returned when the provider answers with no text.
var ErrEmptyCompletion = errors.New("textgen: empty completion")

type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	BaseURL  string
	// DefaultModel is used when a request names no model, or names a model of another provider.
	DefaultModel string
	Timeout      time.Duration

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerMinRequests uint32
	BreakerFailRatio   float64
}

// New builds the configured provider behind a circuit breaker and a per-call timeout.
func New(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("textgen: api key required for provider %q", cfg.Provider)
	}
	var (
		inner Generator
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		inner = NewOpenAI(cfg)
	case "anthropic", "claude":
		inner = NewAnthropic(cfg)
	default:
		err = fmt.Errorf("textgen: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewGuarded(log, cfg, inner, metrics), nil
}

// Guarded bounds every call with a timeout and trips a breaker when the
// provider keeps failing.
type Guarded struct {
	log     *logger.Logger
	next    Generator
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	name    string
	metrics *observability.Metrics
}

func NewGuarded(log *logger.Logger, cfg Config, next Generator, metrics *observability.Metrics) *Guarded {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "openai"
	}
	minReq := cfg.BreakerMinRequests
	if minReq == 0 {
		minReq = 5
	}
	ratio := cfg.BreakerFailRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	settings := gobreaker.Settings{
		Name:        "textgen-" + name,
		MaxRequests: max(cfg.BreakerMaxRequests, 1),
		Interval:    orDefault(cfg.BreakerInterval, 30*time.Second),
		Timeout:     orDefault(cfg.BreakerTimeout, 60*time.Second),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minReq {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(n string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("Circuit breaker state changed", "circuit", n, "from", from.String(), "to", to.String())
			}
		},
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Guarded{
		log:     log.With("service", "TextGen", "provider", name),
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: orDefault(cfg.Timeout, 30*time.Second),
		name:    name,
		metrics: metrics,
	}
}

func (g *Guarded) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.next.Generate(cctx, req)
	})
	status := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "breaker_open"
	case err != nil:
		status = "error"
	}
	g.metrics.ObserveExternal("textgen", g.name+":"+req.Model, status, time.Since(start))
	if err != nil {
		g.log.Warn("Text generation failed", "model", req.Model, "status", status, "error", err)
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
