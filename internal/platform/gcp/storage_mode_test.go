package gcp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

func TestResolveStorageConfigDefaultGCS(t *testing.T) {
	cfg, err := ResolveStorageConfig("", "", "")
	if err != nil {
		t.Fatalf("ResolveStorageConfig: %v", err)
	}
	if cfg.Mode != StorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", StorageModeGCS, cfg.Mode)
	}
}

func TestResolveStorageConfigEmulatorFromHost(t *testing.T) {
	cfg, err := ResolveStorageConfig("", "http://fake-gcs:4443/", "")
	if err != nil {
		t.Fatalf("ResolveStorageConfig: %v", err)
	}
	if cfg.Mode != StorageModeEmulator {
		t.Fatalf("mode: want=%q got=%q", StorageModeEmulator, cfg.Mode)
	}
	if cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host: got=%q", cfg.EmulatorHost)
	}
}

func TestResolveStorageConfigErrors(t *testing.T) {
	cases := []struct {
		mode, host string
		code       StorageConfigErrorCode
	}{
		{"local", "", StorageConfigErrorInvalidMode},
		{"gcs_emulator", "", StorageConfigErrorMissingEmulatorHost},
		{"gcs_emulator", "fake-gcs:4443", StorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		_, err := ResolveStorageConfig(tc.mode, tc.host, "")
		var cfgErr *StorageConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("mode=%q host=%q: want StorageConfigError, got %v", tc.mode, tc.host, err)
		}
		if cfgErr.Code != tc.code {
			t.Fatalf("mode=%q host=%q: code want=%q got=%q", tc.mode, tc.host, tc.code, cfgErr.Code)
		}
	}
}

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("gs://looks/posts/a b.jpg")
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if bucket != "looks" || key != "posts/a b.jpg" {
		t.Fatalf("got bucket=%q key=%q", bucket, key)
	}
	for _, bad := range []string{"https://x/y", "gs://", "gs://bucket", "gs://bucket/", "gs:///key"} {
		if _, _, err := ParseURI(bad); !errors.Is(err, ErrNotGSURI) {
			t.Fatalf("ParseURI(%q): want ErrNotGSURI, got %v", bad, err)
		}
	}
}

func TestObjectStoreReadsFromEmulator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/b/looks/o/posts/1.jpg" || r.URL.Query().Get("alt") != "media" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "jpeg-bytes")
	}))
	defer srv.Close()

	store, err := NewObjectStore(context.Background(), logger.Nop(), StorageConfig{Mode: StorageModeEmulator, EmulatorHost: srv.URL})
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}
	defer store.Close()

	b, err := store.ReadAll(context.Background(), "gs://looks/posts/1.jpg", 1<<10)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(b) != "jpeg-bytes" {
		t.Fatalf("body: got=%q", b)
	}
	if _, err := store.ReadAll(context.Background(), "gs://looks/posts/1.jpg", 4); err == nil {
		t.Fatalf("ReadAll over limit: expected error")
	}
	if _, err := store.ReadAll(context.Background(), "gs://looks/missing.jpg", 1<<10); err == nil {
		t.Fatalf("ReadAll missing: expected error")
	}
}
