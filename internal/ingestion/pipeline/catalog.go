package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/modules/styletag"
	"github.com/yungbote/outfitmatch-backend/internal/platform/gcp"
	"github.com/yungbote/outfitmatch-backend/internal/platform/redis"
)

// UnknownBrand is stored for rows without a brand.
const UnknownBrand = "未知品牌"

type CatalogOptions struct {
	// SkipPrediction re-validates each row's stored predicted_style instead
	// of calling the model.
	SkipPrediction bool
	// TaggedOutput, when set, receives the rows plus predicted_style as CSV
	// (a local path or gs:// URI).
	TaggedOutput string
	EmbedImages  bool
}

// ProductID is the external id when present, else derived from row position.
func ProductID(row CatalogRow) string {
	if id := strings.TrimSpace(row.ID); id != "" {
		return id
	}
	return "prod_" + strconv.Itoa(row.Index)
}

func ProductFromRow(row CatalogRow, styles fashion.StyleSet) fashion.Product {
	brand := strings.TrimSpace(row.Brand)
	if brand == "" {
		brand = UnknownBrand
	}
	original := row.OriginalPrice
	if original == 0 {
		original = row.Price
	}
	return fashion.Product{
		ID:            ProductID(row),
		Name:          strings.TrimSpace(row.Name),
		Description:   strings.TrimSpace(row.Description),
		Price:         row.Price,
		OriginalPrice: original,
		ImageURL:      strings.TrimSpace(row.ImageURL),
		Brand:         brand,
		Category:      fashion.NormalizeCategory(row.Category),
		Styles:        styles,
	}
}

// IngestCatalog tags every row, upserts the products in batches and
// optionally embeds their images.
func (s *Service) IngestCatalog(ctx context.Context, src CatalogSource, opts CatalogOptions) (Report, error) {
	start := s.now()
	rep := Report{Source: src.Name()}
	rows, err := src.Rows(ctx)
	if err != nil {
		return rep, fmt.Errorf("read catalog %s: %w", src.Name(), err)
	}
	rep.Read = len(rows)
	s.log.Info("Catalog loaded", "source", rep.Source, "rows", rep.Read, "skip_prediction", opts.SkipPrediction)

	styles := make([]fashion.StyleSet, len(rows))
	if opts.SkipPrediction {
		for i, row := range rows {
			styles[i] = s.deps.Tagger.Revalidate(row.PredictedStyle)
		}
		rep.Revalidated = len(rows)
	} else {
		var done int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Workers)
		for i := range rows {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				row := rows[i]
				styles[i] = s.deps.Tagger.TagProduct(gctx, styletag.ProductInput{
					Name:        row.Name,
					Description: row.Description,
					Category:    string(fashion.NormalizeCategory(row.Category)),
					Brand:       row.Brand,
				})
				if n := atomic.AddInt64(&done, 1); n%50 == 0 {
					s.log.Info("Style prediction progress", "done", n, "total", len(rows))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return rep, err
		}
		rep.Tagged = len(rows)
	}

	if opts.TaggedOutput != "" {
		if err := s.exportTagged(ctx, opts.TaggedOutput, rows, styles); err != nil {
			rep.warn("tagged export: %v", err)
			s.log.Warn("Tagged catalog export failed", "target", opts.TaggedOutput, "error", err)
		}
	}

	products := make([]fashion.Product, 0, len(rows))
	seen := map[string]int{}
	for i, row := range rows {
		p := ProductFromRow(row, styles[i])
		if prev, dup := seen[p.ID]; dup {
			rep.warn("row %d duplicates id %s of row %d; later row wins", row.Index, p.ID, prev)
			products[prev] = p
			continue
		}
		seen[p.ID] = len(products)
		products = append(products, p)
	}

	for lo := 0; lo < len(products); lo += s.cfg.BatchSize {
		hi := min(lo+s.cfg.BatchSize, len(products))
		n, err := s.deps.Store.UpsertProducts(ctx, products[lo:hi])
		if err != nil {
			s.deps.Metrics.IncIngested("product", "failed")
			return rep, fmt.Errorf("upsert products %d-%d: %w", lo, hi, err)
		}
		rep.Upserted += n
		for range products[lo:hi] {
			s.deps.Metrics.IncIngested("product", "upserted")
		}
	}

	if opts.EmbedImages {
		s.embedProducts(ctx, products, &rep)
	}

	rep.Duration = s.now().Sub(start)
	s.log.Info("Catalog ingestion finished",
		"source", rep.Source, "read", rep.Read, "upserted", rep.Upserted,
		"embedded", rep.Embedded, "no_garment", rep.NoGarment, "warnings", len(rep.Warnings),
		"duration", rep.Duration.String())
	s.announce(ctx, redis.EventCatalogIngested, rep.Source, rep.Upserted)
	return rep, nil
}

func (s *Service) embedProducts(ctx context.Context, products []fashion.Product, rep *Report) {
	for _, p := range products {
		if ctx.Err() != nil {
			return
		}
		if p.ImageURL == "" || s.deps.Fetcher == nil {
			rep.Skipped++
			continue
		}
		url := p.ImageURL
		written, err := s.embed(ctx, similarity.KindProduct, p.ID, func(ctx context.Context) ([]byte, error) {
			raw, err := s.deps.Fetcher.Fetch(ctx, url)
			if err != nil {
				return nil, fmt.Errorf("image: %w", err)
			}
			return raw, nil
		})
		switch {
		case errors.Is(err, fashion.ErrNoGarmentDetected):
			rep.NoGarment++
			s.deps.Metrics.IncIngested("product_embedding", "no_garment")
		case err != nil:
			rep.Skipped++
			rep.warn("product %s embedding: %v", p.ID, err)
			s.deps.Metrics.IncIngested("product_embedding", "failed")
		case written:
			rep.Embedded++
			s.deps.Metrics.IncIngested("product_embedding", "written")
		default:
			rep.Kept++
			s.deps.Metrics.IncIngested("product_embedding", "kept")
		}
	}
}

func (s *Service) exportTagged(ctx context.Context, target string, rows []CatalogRow, styles []fashion.StyleSet) error {
	var buf bytes.Buffer
	if err := WriteTaggedCSV(&buf, rows, styles); err != nil {
		return err
	}
	if gcp.IsURI(target) {
		if s.deps.Objects == nil {
			return fmt.Errorf("object storage not configured for %s", target)
		}
		return s.deps.Objects.Write(ctx, target, &buf)
	}
	return os.WriteFile(target, buf.Bytes(), 0o644)
}

// WriteTaggedCSV writes the catalog columns plus id and predicted_style as a
// list literal, the format the skip-prediction path reads back.
func WriteTaggedCSV(w io.Writer, rows []CatalogRow, styles []fashion.StyleSet) error {
	cw := csv.NewWriter(w)
	header := append([]string{"id"}, catalogColumns...)
	header = append(header, "predicted_style")
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range rows {
		var ss fashion.StyleSet
		if i < len(styles) {
			ss = styles[i]
		}
		quoted := make([]string, 0, len(ss))
		for _, st := range ss {
			quoted = append(quoted, "'"+string(st)+"'")
		}
		rec := []string{
			ProductID(row),
			row.Name,
			row.Description,
			row.Category,
			row.Brand,
			formatPrice(row.Price),
			formatPrice(row.OriginalPrice),
			row.ImageURL,
			"[" + strings.Join(quoted, ", ") + "]",
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
