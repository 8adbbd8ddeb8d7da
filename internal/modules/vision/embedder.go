package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/observability"
	"github.com/yungbote/outfitmatch-backend/internal/platform/modelhttp"
)

// DefaultDimension is the width of the summary-token embedding.
const DefaultDimension = 768

type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

// RemoteSegmenter runs segmentation on the model server.
type RemoteSegmenter struct {
	client  *modelhttp.Client
	metrics *observability.Metrics
}

func NewRemoteSegmenter(client *modelhttp.Client, metrics *observability.Metrics) *RemoteSegmenter {
	return &RemoteSegmenter{client: client, metrics: metrics}
}

func (s *RemoteSegmenter) Segment(ctx context.Context, img image.Image) (ClassMap, error) {
	body, err := EncodePNG(img)
	if err != nil {
		return ClassMap{}, err
	}
	start := time.Now()
	resp, err := s.client.Segment(ctx, body)
	s.metrics.ObserveExternal("model", "segment", statusOf(err), time.Since(start))
	if err != nil {
		return ClassMap{}, fashion.External("segmentation", "segment", err)
	}
	return NewClassMap(resp.Width, resp.Height, resp.Labels)
}

// RemoteEmbedder runs the vision embedding model on the model server.
type RemoteEmbedder struct {
	client  *modelhttp.Client
	dim     int
	metrics *observability.Metrics
}

func NewRemoteEmbedder(client *modelhttp.Client, dim int, metrics *observability.Metrics) *RemoteEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &RemoteEmbedder{client: client, dim: dim, metrics: metrics}
}

func (e *RemoteEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	body, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	vec, err := e.client.EmbedImage(ctx, body)
	e.metrics.ObserveExternal("model", "embed", statusOf(err), time.Since(start))
	if err != nil {
		return nil, fashion.External("embedding", "embed", err)
	}
	if len(vec) != e.dim {
		return nil, fashion.External("embedding", "embed", fmt.Errorf("got %d dims, want %d", len(vec), e.dim))
	}
	if !finite(vec) {
		return nil, fashion.External("embedding", "embed", fmt.Errorf("embedding has non-finite values"))
	}
	return vec, nil
}

// GarmentEmbedder isolates the garment region and embeds only that.
type GarmentEmbedder struct {
	Isolator *Isolator
	Embedder Embedder
}

// EmbedGarment returns fashion.ErrNoGarmentDetected unchanged so callers can
// apply their own fallback.
func (g *GarmentEmbedder) EmbedGarment(ctx context.Context, img image.Image) ([]float32, error) {
	iso, err := g.Isolator.Isolate(ctx, img)
	if err != nil {
		return nil, err
	}
	return g.Embedder.Embed(ctx, iso.Image)
}

func finite(vec []float32) bool {
	for _, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
