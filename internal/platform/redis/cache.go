package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

// Cache implements cache.Cache on redis with JSON values.
type Cache struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	prefix  string
	metrics *observability.Metrics
}

func NewCache(log *logger.Logger, rdb goredis.UniversalClient, prefix string, metrics *observability.Metrics) *Cache {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "outfitmatch"
	}
	return &Cache{log: logFor(log, "RedisCache"), rdb: rdb, prefix: prefix, metrics: metrics}
}

func (c *Cache) key(namespace, key string) string {
	return c.prefix + ":" + namespace + ":" + key
}

func (c *Cache) Get(ctx context.Context, namespace, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.metrics.IncCache(namespace, "miss")
		return false, nil
	}
	if err != nil {
		c.metrics.IncCache(namespace, "error")
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.metrics.IncCache(namespace, "error")
		return false, fmt.Errorf("redis decode %s: %w", namespace, err)
	}
	c.metrics.IncCache(namespace, "hit")
	return true, nil
}

func (c *Cache) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(namespace, key), raw, ttl).Err()
}

func (c *Cache) Flush(ctx context.Context, namespace string) error {
	match := c.prefix + ":" + namespace + ":*"
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.log.Debug("cache namespace flushed", "namespace", namespace, "keys", deleted)
	return nil
}
