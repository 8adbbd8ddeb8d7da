// Package cache holds small JSON values keyed by namespace. Entries are
// derived data; a miss or a cache error never changes a result.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Cache interface {
	// Get decodes the stored value into dst and reports whether it was found.
	Get(ctx context.Context, namespace, key string, dst any) (bool, error)
	Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	// Flush drops every entry of the namespace.
	Flush(ctx context.Context, namespace string) error
}

// Key hashes the parts into a fixed-length key.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeText lowercases and collapses whitespace so equivalent queries share a key.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type Noop struct{}

func (Noop) Get(context.Context, string, string, any) (bool, error)        { return false, nil }
func (Noop) Set(context.Context, string, string, any, time.Duration) error { return nil }
func (Noop) Flush(context.Context, string) error                           { return nil }

type memItem struct {
	raw     []byte
	expires time.Time
}

// DefaultMemorySize bounds the in-process cache when no size is configured.
const DefaultMemorySize = 4096

// Memory is an in-process LRU cache for single-node deployments without redis.
type Memory struct {
	lru *lru.Cache[string, memItem]
	now func() time.Time
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	// lru.New only fails on a non-positive size.
	l, _ := lru.New[string, memItem](size)
	return &Memory{lru: l, now: time.Now}
}

func (m *Memory) Get(_ context.Context, namespace, key string, dst any) (bool, error) {
	k := namespace + ":" + key
	it, ok := m.lru.Get(k)
	if ok && !it.expires.IsZero() && m.now().After(it.expires) {
		m.lru.Remove(k)
		ok = false
	}
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(it.raw, dst)
}

func (m *Memory) Set(_ context.Context, namespace, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	it := memItem{raw: raw}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.lru.Add(namespace+":"+key, it)
	return nil
}

func (m *Memory) Flush(_ context.Context, namespace string) error {
	prefix := namespace + ":"
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.lru.Remove(k)
		}
	}
	return nil
}

// Len is the number of live and not yet evicted entries.
func (m *Memory) Len() int { return m.lru.Len() }
