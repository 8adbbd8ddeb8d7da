package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/modules/recommend"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

const serviceName = "outfitmatch"

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Services Services

	otelShutdown func(context.Context) error
}

// New connects every backend the config names and wires the services on top.
// Nothing listens until Serve.
func New(ctx context.Context, log *logger.Logger, cfg Config, version string) (*App, error) {
	metrics := observability.NewMetrics()
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: serviceName,
		Environment: cfg.Env,
		Version:     version,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		SampleRatio: cfg.Otel.SampleRatio,
	})

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	services, err := wireServices(ctx, log, cfg, clients, metrics)
	if err != nil {
		clients.Close(ctx)
		_ = shutdown(ctx)
		return nil, err
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Services:     services,
		otelShutdown: shutdown,
	}, nil
}

// Serve loads the indexes, starts background work and serves HTTP until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.loadIndexes(ctx); err != nil {
		return err
	}

	if a.Cfg.Recommend.Schedule != "" {
		sched, err := recommend.NewScheduler(a.Log, a.Services.Builder, a.Cfg.Recommend.Schedule, a.Cfg.Recommend.Timeout)
		if err != nil {
			return err
		}
		sched.OnDone = publishBuild(a.Services.Bus, a.Log)
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.Server.DrainTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	events := newEventHandler(a.Log, a.Services)
	if err := a.Services.Bus.StartForwarder(ctx, events.handle); err != nil {
		return fmt.Errorf("start event forwarder: %w", err)
	}

	server := wireServer(a.Log, a.Cfg, wireHandlers(a.Log, a.Services), a.Metrics)
	return server.Run(ctx, a.Cfg.ListenAddr(), a.Cfg.Server.DrainTimeout)
}

func (a *App) loadIndexes(ctx context.Context) error {
	start := time.Now()
	if _, err := a.Services.Posts.Resync(ctx); err != nil {
		return fmt.Errorf("load post index: %w", err)
	}
	if _, err := a.Services.Products.Resync(ctx); err != nil {
		return fmt.Errorf("load product index: %w", err)
	}
	posts, err := a.Services.Posts.Len(ctx)
	if err != nil {
		return fmt.Errorf("count post index: %w", err)
	}
	products, err := a.Services.Products.Len(ctx)
	if err != nil {
		return fmt.Errorf("count product index: %w", err)
	}
	if posts == 0 {
		a.Log.Warn("post index is empty; searches will use the default style until posts are ingested")
	}
	a.Log.Info("Indexes loaded", "posts", posts, "products", products, "duration", time.Since(start).String())
	return nil
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	a.Services.close(ctx)
	a.Clients.Close(ctx)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
