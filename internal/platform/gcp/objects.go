package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

var ErrNotGSURI = errors.New("not a gs:// uri")

// ObjectStore reads and writes objects addressed by gs://bucket/key URIs:
// remote catalog images and tagged catalog exports.
type ObjectStore struct {
	log          *logger.Logger
	client       *storage.Client
	mode         StorageMode
	emulatorHost string
	httpClient   *http.Client
}

func NewObjectStore(ctx context.Context, log *logger.Logger, cfg StorageConfig) (*ObjectStore, error) {
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	serviceLog := log.With("service", "ObjectStore")
	serviceLog.Info("Object storage initialized", "mode", cfg.Mode, "emulator_host", cfg.EmulatorHost)
	return &ObjectStore{
		log:          serviceLog,
		client:       client,
		mode:         cfg.Mode,
		emulatorHost: cfg.EmulatorHost,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.IsEmulator() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := ClientOptions(cfg.Credentials)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

// ParseURI splits gs://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	s := strings.TrimSpace(uri)
	if !strings.HasPrefix(s, "gs://") {
		return "", "", fmt.Errorf("%w: %q", ErrNotGSURI, uri)
	}
	rest := strings.TrimPrefix(s, "gs://")
	idx := strings.IndexByte(rest, '/')
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("%w: %q needs bucket and object", ErrNotGSURI, uri)
	}
	return rest[:idx], rest[idx+1:], nil
}

func IsURI(s string) bool { return strings.HasPrefix(strings.TrimSpace(s), "gs://") }

// The reader owns its context; cancelling before the caller has read would
// yield zero bytes.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (s *ObjectStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if s.mode == StorageModeEmulator && s.emulatorHost != "" {
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, s.emulatorMediaURL(bucket, key), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("build emulator download request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("emulator download %s: %w", uri, err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download %s: status=%d body=%s", uri, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// ReadAll reads at most max bytes; larger objects are an error.
func (s *ObjectStore) ReadAll(ctx context.Context, uri string, max int64) ([]byte, error) {
	rc, err := s.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("object %s exceeds %d bytes", uri, max)
	}
	return b, nil
}

func (s *ObjectStore) Write(ctx context.Context, uri string, r io.Reader) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", uri, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer %s: %w", uri, err)
	}
	s.log.Debug("Object written", "uri", uri)
	return nil
}

func (s *ObjectStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *ObjectStore) emulatorMediaURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", s.emulatorHost, url.PathEscape(bucket), url.PathEscape(key))
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".csv"):
		return "text/csv; charset=utf-8"
	case strings.HasSuffix(s, ".jsonl"), strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
