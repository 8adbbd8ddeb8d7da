package app

import (
	"context"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
)

type instrumentedIndex struct {
	service string
	inner   similarity.Index
	metrics *observability.Metrics
}

func instrumentIndex(service string, inner similarity.Index, metrics *observability.Metrics) similarity.Index {
	if inner == nil {
		return nil
	}
	return &instrumentedIndex{service: service, inner: inner, metrics: metrics}
}

func (s *instrumentedIndex) Upsert(ctx context.Context, e similarity.Entry) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, e)
	s.observe("upsert", err, time.Since(start))
	return err
}

func (s *instrumentedIndex) Search(ctx context.Context, vec []float32, k int) ([]similarity.Hit, error) {
	start := time.Now()
	out, err := s.inner.Search(ctx, vec, k)
	s.observe("search", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndex) Get(ctx context.Context, kind similarity.Kind, id string) (similarity.Entry, bool, error) {
	start := time.Now()
	e, ok, err := s.inner.Get(ctx, kind, id)
	s.observe("get", err, time.Since(start))
	return e, ok, err
}

func (s *instrumentedIndex) Len(ctx context.Context) (int, error) {
	return s.inner.Len(ctx)
}

func (s *instrumentedIndex) observe(op string, err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveExternal(s.service, op, status, dur)
}

// instrumentedDurable keeps Each uninstrumented; it only runs during resync.
type instrumentedDurable struct {
	*instrumentedIndex
	each func(ctx context.Context, fn func(similarity.Entry) error) error
}

func instrumentDurable(service string, inner similarity.Durable, metrics *observability.Metrics) similarity.Durable {
	if inner == nil {
		return nil
	}
	return &instrumentedDurable{
		instrumentedIndex: &instrumentedIndex{service: service, inner: inner, metrics: metrics},
		each:              inner.Each,
	}
}

func (d *instrumentedDurable) Each(ctx context.Context, fn func(similarity.Entry) error) error {
	return d.each(ctx, fn)
}
