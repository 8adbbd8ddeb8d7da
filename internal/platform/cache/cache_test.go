package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(0)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "styles", "k", []string{"韓系"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got []string
	ok, err := m.Get(ctx, "styles", "k", &got)
	if err != nil || !ok || len(got) != 1 || got[0] != "韓系" {
		t.Fatalf("get = %v %v %v", got, ok, err)
	}

	now = now.Add(2 * time.Minute)
	ok, _ = m.Get(ctx, "styles", "k", &got)
	if ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryCacheFlushIsNamespaced(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	_ = m.Set(ctx, "a", "1", 1, 0)
	_ = m.Set(ctx, "b", "1", 2, 0)
	if err := m.Flush(ctx, "a"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	var v int
	if ok, _ := m.Get(ctx, "a", "1", &v); ok {
		t.Fatalf("namespace a should be empty")
	}
	if ok, _ := m.Get(ctx, "b", "1", &v); !ok || v != 2 {
		t.Fatalf("namespace b lost its entry")
	}
}

func TestKeyIsStableAndSeparatesParts(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Fatalf("parts must not be concatenated ambiguously")
	}
	if Key(NormalizeText("  2000元以下的 上衣 ")) != Key(NormalizeText("2000元以下的 上衣")) {
		t.Fatalf("normalized text should hash identically")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	_ = m.Set(ctx, "q", "1", 1, 0)
	_ = m.Set(ctx, "q", "2", 2, 0)
	var v int
	if ok, _ := m.Get(ctx, "q", "1", &v); !ok {
		t.Fatalf("entry 1 should be present")
	}
	_ = m.Set(ctx, "q", "3", 3, 0)

	if ok, _ := m.Get(ctx, "q", "2", &v); ok {
		t.Fatalf("entry 2 should have been evicted")
	}
	if ok, _ := m.Get(ctx, "q", "1", &v); !ok || v != 1 {
		t.Fatalf("recently used entry 1 was evicted")
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
}
