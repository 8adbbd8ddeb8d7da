package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

// Event kinds announced after offline jobs change what a server has loaded.
const (
	EventPostsIngested    = "posts_ingested"
	EventCatalogIngested  = "catalog_ingested"
	EventRelationshipsRun = "relationships_built"
)

type Event struct {
	Kind   string    `json:"kind"`
	Source string    `json:"source,omitempty"`
	Count  int       `json:"count,omitempty"`
	At     time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(Event)) error
}

type bus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewBus(log *logger.Logger, rdb goredis.UniversalClient, channel string) Bus {
	ch := strings.TrimSpace(channel)
	if ch == "" {
		ch = "outfitmatch:events"
	}
	return &bus{log: logFor(log, "RedisEventBus"), rdb: rdb, channel: ch}
}

func (b *bus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *bus) StartForwarder(ctx context.Context, onEvent func(Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

// NopBus drops events; used when redis is not configured.
type NopBus struct{}

func (NopBus) Publish(context.Context, Event) error              { return nil }
func (NopBus) StartForwarder(context.Context, func(Event)) error { return nil }
