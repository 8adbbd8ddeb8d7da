package app

import (
	"context"
	"io"
	"sync"

	"github.com/yungbote/outfitmatch-backend/internal/platform/gcp"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

var newObjectStore = gcp.NewObjectStore

// lazyObjects opens cloud storage on the first gs:// access, so commands that
// never touch a bucket run without credentials.
type lazyObjects struct {
	log *logger.Logger
	cfg gcp.StorageConfig

	once  sync.Once
	store *gcp.ObjectStore
	err   error
}

func newLazyObjects(log *logger.Logger, cfg gcp.StorageConfig) *lazyObjects {
	return &lazyObjects{log: log, cfg: cfg}
}

func (l *lazyObjects) get(ctx context.Context) (*gcp.ObjectStore, error) {
	l.once.Do(func() {
		l.store, l.err = newObjectStore(context.WithoutCancel(ctx), l.log, l.cfg)
		if l.err != nil {
			l.log.Error("Object storage bootstrap failed",
				"mode", string(l.cfg.Mode), "emulator_host", l.cfg.EmulatorHost, "error", l.err)
			return
		}
		l.log.Info("Object storage ready", "mode", string(l.cfg.Mode), "emulator_host", l.cfg.EmulatorHost)
	})
	return l.store, l.err
}

func (l *lazyObjects) ReadAll(ctx context.Context, uri string, max int64) ([]byte, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.ReadAll(ctx, uri, max)
}

func (l *lazyObjects) Write(ctx context.Context, uri string, r io.Reader) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Write(ctx, uri, r)
}

func (l *lazyObjects) Close() error {
	if l == nil || l.store == nil {
		return nil
	}
	return l.store.Close()
}
