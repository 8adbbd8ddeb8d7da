package app

import (
	"context"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/modules/matcher"
	"github.com/yungbote/outfitmatch-backend/internal/modules/recommend"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/redis"
)

// eventHandler reloads what an offline job changed underneath a running server.
type eventHandler struct {
	log      *logger.Logger
	services Services
	timeout  time.Duration
}

func newEventHandler(log *logger.Logger, services Services) *eventHandler {
	return &eventHandler{log: log.With("component", "EventForwarder"), services: services, timeout: 5 * time.Minute}
}

func (h *eventHandler) handle(ev redis.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	log := h.log.With("kind", ev.Kind, "source", ev.Source, "count", ev.Count)

	switch ev.Kind {
	case redis.EventPostsIngested:
		n, err := h.services.Posts.Resync(ctx)
		if err != nil {
			log.Error("post index resync failed", "error", err)
			return
		}
		if err := h.services.Cache.Flush(ctx, matcher.StyleCacheNamespace); err != nil {
			log.Warn("style cache flush failed", "error", err)
		}
		log.Info("post index resynced", "loaded", n)
	case redis.EventCatalogIngested:
		n, err := h.services.Products.Resync(ctx)
		if err != nil {
			log.Error("product index resync failed", "error", err)
			return
		}
		log.Info("product index resynced", "loaded", n)
	case redis.EventRelationshipsRun:
		log.Info("relationships rebuilt")
	default:
		log.Debug("ignoring event")
	}
}

// publishBuild announces a finished build so other replicas can log it.
func publishBuild(bus redis.Bus, log *logger.Logger) func(context.Context, recommend.Report) {
	return func(ctx context.Context, rep recommend.Report) {
		total := rep.GoesWith + rep.OutfitPairs + rep.InspiredBy + rep.StyleSimilarity
		err := bus.Publish(ctx, redis.Event{
			Kind:   redis.EventRelationshipsRun,
			Source: "scheduler",
			Count:  int(total),
			At:     time.Now().UTC(),
		})
		if err != nil {
			log.Warn("publish build event failed", "error", err)
		}
	}
}
