package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/platform/gcp"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/retry"
)

// DefaultMaxImageBytes bounds every fetched image.
const DefaultMaxImageBytes = 15 << 20

type ObjectReader interface {
	ReadAll(ctx context.Context, uri string, max int64) ([]byte, error)
}

// Fetcher loads image bytes from http(s) URLs, gs:// objects or local paths.
type Fetcher struct {
	log      *logger.Logger
	http     *http.Client
	objects  ObjectReader
	maxBytes int64
	retry    retry.Config
}

type FetcherConfig struct {
	Timeout  time.Duration
	MaxBytes int64
	Attempts int
}

// NewFetcher builds a fetcher; objects may be nil when no bucket is configured.
func NewFetcher(log *logger.Logger, objects ObjectReader, cfg FetcherConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Fetcher{
		log:      log.With("service", "ImageFetcher"),
		http:     &http.Client{Timeout: timeout},
		objects:  objects,
		maxBytes: maxBytes,
		retry:    retry.Exponential(attempts, 500*time.Millisecond, 5*time.Second),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty image reference")
	case gcp.IsURI(ref):
		if f.objects == nil {
			return nil, fmt.Errorf("image %s: object storage not configured", ref)
		}
		return f.objects.ReadAll(ctx, ref, f.maxBytes)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		var body []byte
		err := retry.Do(ctx, f.retry, f.log, "fetch_image", func(ctx context.Context) error {
			b, err := f.get(ctx, ref)
			body = b
			return err
		})
		return body, err
	default:
		return f.readFile(strings.TrimPrefix(ref, "file://"))
	}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("get %s: status %d", url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(b)) > f.maxBytes {
		return nil, retry.Permanent(fmt.Errorf("image %s exceeds %d bytes", url, f.maxBytes))
	}
	return b, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	if st.Size() > f.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", path, f.maxBytes)
	}
	return os.ReadFile(path)
}
