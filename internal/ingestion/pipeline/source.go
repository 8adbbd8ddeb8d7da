package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// CatalogRow is one product as handed over by a catalog loader. Index is the
// row position, used for ids when the source has none.
type CatalogRow struct {
	Index          int
	ID             string
	Name           string
	Description    string
	Category       string
	Brand          string
	Price          float64
	OriginalPrice  float64
	ImageURL       string
	PredictedStyle string
}

type CatalogSource interface {
	Name() string
	Rows(ctx context.Context) ([]CatalogRow, error)
}

var catalogColumns = []string{"name", "description", "category", "brand", "price", "original_price", "image_url"}

var ErrMissingColumn = errors.New("catalog csv: missing column")

// CSVSource reads a catalog export with a header row. Column order is free;
// id and predicted_style are optional.
type CSVSource struct {
	Path  string
	Limit int
}

func (s CSVSource) Name() string { return "csv:" + s.Path }

func (s CSVSource) Rows(ctx context.Context) ([]CatalogRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ReadCatalogCSV(ctx, f, s.Limit)
}

func ReadCatalogCSV(ctx context.Context, r io.Reader, limit int) ([]CatalogRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		col[h] = i
	}
	for _, name := range []string{"name", "price"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []CatalogRow
	for idx := 0; limit <= 0 || idx < limit; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", idx, err)
		}
		price := parsePrice(get(rec, "price"))
		original := price
		if raw := get(rec, "original_price"); raw != "" {
			original = parsePrice(raw)
		}
		rows = append(rows, CatalogRow{
			Index:          idx,
			ID:             get(rec, "id"),
			Name:           get(rec, "name"),
			Description:    get(rec, "description"),
			Category:       get(rec, "category"),
			Brand:          get(rec, "brand"),
			Price:          price,
			OriginalPrice:  original,
			ImageURL:       get(rec, "image_url"),
			PredictedStyle: get(rec, "predicted_style"),
		})
	}
	return rows, nil
}

// parsePrice accepts "1,280", "NT$990" and "$1990.00"; anything else is 0.
func parsePrice(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "NT")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// PostgresSource reads the legacy products table.
type PostgresSource struct {
	DB    *gorm.DB
	Limit int
}

type legacyProduct struct {
	ID             int64
	Name           string
	Description    string
	Category       string
	Brand          string
	Price          float64
	PredictedStyle string
	ImageURL       string
}

func (s PostgresSource) Name() string { return "postgres:products" }

func (s PostgresSource) Rows(ctx context.Context) ([]CatalogRow, error) {
	q := `SELECT id, COALESCE(name, '') AS name, COALESCE(description, '') AS description,
	COALESCE(category, '') AS category, COALESCE(brand, '') AS brand, COALESCE(price, 0) AS price,
	COALESCE(array_to_string(predicted_style, ','), '') AS predicted_style, COALESCE(image_url, '') AS image_url
	FROM products ORDER BY id`
	args := []any{}
	if s.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, s.Limit)
	}
	var recs []legacyProduct
	if err := s.DB.WithContext(ctx).Raw(q, args...).Scan(&recs).Error; err != nil {
		return nil, fmt.Errorf("query legacy products: %w", err)
	}
	rows := make([]CatalogRow, 0, len(recs))
	for i, r := range recs {
		rows = append(rows, CatalogRow{
			Index:          i,
			ID:             strconv.FormatInt(r.ID, 10),
			Name:           r.Name,
			Description:    r.Description,
			Category:       r.Category,
			Brand:          r.Brand,
			Price:          r.Price,
			OriginalPrice:  r.Price,
			ImageURL:       r.ImageURL,
			PredictedStyle: r.PredictedStyle,
		})
	}
	return rows, nil
}
