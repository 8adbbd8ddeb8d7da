package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/data/db"
	"github.com/yungbote/outfitmatch-backend/internal/data/graph"
	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/modules/styletag"
	"github.com/yungbote/outfitmatch-backend/internal/modules/vision"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
	"github.com/yungbote/outfitmatch-backend/internal/platform/textgen"
)

const catalogCSV = "\ufeffname,description,category,brand,price,original_price,image_url\n" +
	"韓系針織上衣,柔軟針織,top,Queen,\"1,280\",1580,\n" +
	"簡約寬褲,,bottom,,NT$990,,\n" +
	"亮片洋裝,派對必備,禮服,Queen,$2990.00,,\n"

type harness struct {
	store     *graph.MemoryStore
	posts     *similarity.Mirror
	products  *similarity.Mirror
	llmCalls  *int64
	svc       *Service
	embedHits *int64
}

// garmentEmbedder treats 1-pixel-wide images as garment-free and derives the
// vector from the top-left pixel colour.
type garmentEmbedder struct{ calls *int64 }

func (g garmentEmbedder) EmbedGarment(_ context.Context, img image.Image) ([]float32, error) {
	atomic.AddInt64(g.calls, 1)
	if img.Bounds().Dx() == 1 {
		return nil, fashion.ErrNoGarmentDetected
	}
	r, gr, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	return []float32{float32(r) + 1, float32(gr) + 1, float32(b) + 1}, nil
}

func newHarness(t *testing.T) harness {
	t.Helper()
	var calls, embeds int64
	gen := textgen.Func(func(_ context.Context, req textgen.Request) (string, error) {
		atomic.AddInt64(&calls, 1)
		switch {
		case strings.Contains(req.Prompt, "商品名稱：韓系"), strings.Contains(req.Prompt, "貼文內容："):
			return "['韓系']", nil
		case strings.Contains(req.Prompt, "商品名稱：簡約寬褲"):
			return "```python\n['簡約', '休閒']\n```", nil
		default:
			return "這件很華麗", nil
		}
	})
	cfg := styletag.DefaultConfig()
	cfg.Attempts = 1
	cfg.Backoff = 0
	tagger, err := styletag.New(logger.Nop(), gen, cfg, nil)
	require.NoError(t, err)

	postIdx, err := similarity.NewMirror(logger.Nop(), similarity.NewMemoryIndex(0), nil, similarity.BackendLocal)
	require.NoError(t, err)
	productIdx, err := similarity.NewMirror(logger.Nop(), similarity.NewMemoryIndex(0), nil, similarity.BackendLocal)
	require.NoError(t, err)

	store := graph.NewMemoryStore()
	svc, err := New(logger.Nop(), Deps{
		Store:             store,
		Tagger:            tagger,
		Embedder:          garmentEmbedder{calls: &embeds},
		PostEmbeddings:    postIdx,
		ProductEmbeddings: productIdx,
	}, Config{Workers: 2, BatchSize: 2})
	require.NoError(t, err)
	return harness{store: store, posts: postIdx, products: productIdx, llmCalls: &calls, svc: svc, embedHits: &embeds}
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	b, err := vision.EncodePNG(img)
	require.NoError(t, err)
	return b
}

func TestReadCatalogCSV(t *testing.T) {
	rows, err := ReadCatalogCSV(context.Background(), strings.NewReader(catalogCSV), 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1280.0, rows[0].Price)
	assert.Equal(t, 1580.0, rows[0].OriginalPrice)
	assert.Equal(t, 990.0, rows[1].Price)
	assert.Equal(t, 990.0, rows[1].OriginalPrice)
	assert.Equal(t, 2990.0, rows[2].Price)

	limited, err := ReadCatalogCSV(context.Background(), strings.NewReader(catalogCSV), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = ReadCatalogCSV(context.Background(), strings.NewReader("title,cost\nx,1\n"), 0)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestIngestCatalogTagsNormalizesAndExports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "catalog.csv")
	tagged := filepath.Join(dir, "tagged.csv")
	require.NoError(t, os.WriteFile(src, []byte(catalogCSV), 0o600))

	rep, err := h.svc.IngestCatalog(ctx, CSVSource{Path: src}, CatalogOptions{TaggedOutput: tagged})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Read)
	assert.Equal(t, 3, rep.Tagged)
	assert.Equal(t, 3, rep.Upserted)
	assert.Empty(t, rep.Warnings)

	knit, err := h.store.GetProduct(ctx, "prod_0")
	require.NoError(t, err)
	assert.Equal(t, fashion.CategoryTop, knit.Category)
	assert.Equal(t, fashion.NewStyleSet(fashion.StyleKorean), knit.Styles)

	pants, err := h.store.GetProduct(ctx, "prod_1")
	require.NoError(t, err)
	assert.Equal(t, UnknownBrand, pants.Brand)
	assert.Equal(t, fashion.CategoryBottom, pants.Category)
	assert.ElementsMatch(t, []fashion.Style{fashion.StyleMinimalist, fashion.StyleCasual}, pants.Styles)

	dress, err := h.store.GetProduct(ctx, "prod_2")
	require.NoError(t, err)
	assert.Equal(t, fashion.CategoryOther, dress.Category)
	assert.Equal(t, fashion.NewStyleSet(fashion.DefaultStyle), dress.Styles)

	// the export feeds the skip-prediction path without further model calls
	before := atomic.LoadInt64(h.llmCalls)
	rep, err = h.svc.IngestCatalog(ctx, CSVSource{Path: tagged}, CatalogOptions{SkipPrediction: true})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Revalidated)
	assert.Equal(t, before, atomic.LoadInt64(h.llmCalls))
	again, err := h.store.GetProduct(ctx, "prod_1")
	require.NoError(t, err)
	assert.ElementsMatch(t, pants.Styles, again.Styles)
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	if b, ok := m[ref]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("no image %s", ref)
}

func TestIngestCatalogEmbedsProductImages(t *testing.T) {
	h := newHarness(t)
	h.svc.deps.Fetcher = mapFetcher{
		"https://img/1.png": pngBytes(t, 4, 4, color.RGBA{R: 200, A: 255}),
		"https://img/2.png": pngBytes(t, 1, 4, color.RGBA{G: 200, A: 255}),
	}
	rows := []CatalogRow{
		{Index: 0, Name: "韓系外套", Category: "top", Price: 100, ImageURL: "https://img/1.png"},
		{Index: 1, Name: "寬褲", Category: "bottom", Price: 200, ImageURL: "https://img/2.png"},
		{Index: 2, Name: "寬褲二", Category: "bottom", Price: 300, ImageURL: "https://img/missing.png"},
	}
	rep, err := h.svc.IngestCatalog(context.Background(), staticSource(rows), CatalogOptions{EmbedImages: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Embedded)
	assert.Equal(t, 1, rep.NoGarment)
	assert.Equal(t, 1, rep.Skipped)

	_, ok, err := h.products.Get(context.Background(), similarity.KindProduct, "prod_0")
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := h.posts.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// stored vectors are reused without another model call; only the
	// garment-free image is tried again
	before := atomic.LoadInt64(h.embedHits)
	rep, err = h.svc.IngestCatalog(context.Background(), staticSource(rows), CatalogOptions{EmbedImages: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Kept)
	assert.Zero(t, rep.Embedded)
	assert.Equal(t, 1, rep.NoGarment)
	assert.Equal(t, before+1, atomic.LoadInt64(h.embedHits))
}

type staticSource []CatalogRow

func (s staticSource) Name() string                               { return "static" }
func (s staticSource) Rows(context.Context) ([]CatalogRow, error) { return s, nil }

func TestIngestPostsEmbedsAndKeepsExistingVectors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := t.TempDir()

	page := filepath.Join(dir, "p3.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><head>
<meta property="og:description" content="韓系日常

層次感穿搭

Top: Uniqlo"></head><body><img srcset="https://img/p3-small.png 320w, https://img/p3.png 1080w"></body></html>`), 0o600))
	h.svc.deps.Fetcher = mapFetcher{"https://img/p3.png": pngBytes(t, 3, 3, color.RGBA{B: 90, A: 255})}

	red := base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4, color.RGBA{R: 200, A: 255}))
	blank := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 1, 1, color.White))
	jsonl := strings.Join([]string{
		fmt.Sprintf(`{"url":"https://www.instagram.com/p/AAA/","author_name":"ootd_introducer","caption":"韓系 look\n\n今天的穿搭\n\nJacket: Lee #ootd","image_base64":%q,"timestamp":"2024-05-01T10:00:00Z"}`, red),
		fmt.Sprintf(`{"post_id":"BBB","author_id":"u2","caption":"韓系 plain","image_base64":%q}`, blank),
		``,
		fmt.Sprintf(`{"post_id":"CCC","author_id":"u3","page_html_path":%q}`, page),
		`{"author_id":"u4","caption":"no id"}`,
	}, "\n")
	records, err := ReadPostsJSONL(ctx, strings.NewReader(jsonl))
	require.NoError(t, err)
	require.Len(t, records, 4)

	rep, err := h.svc.IngestPosts(ctx, "test", records)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Upserted)
	assert.Equal(t, 2, rep.Embedded)
	assert.Equal(t, 1, rep.NoGarment)
	assert.Equal(t, 1, rep.Skipped)

	styles, err := h.store.PostStyles(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, fashion.NewStyleSet(fashion.StyleKorean), styles)
	styles, err = h.store.PostStyles(ctx, "CCC")
	require.NoError(t, err)
	assert.Equal(t, fashion.NewStyleSet(fashion.StyleKorean), styles)

	first, ok, err := h.posts.Get(ctx, similarity.KindPost, "AAA")
	require.NoError(t, err)
	require.True(t, ok)

	// a second run with a different image must not replace the stored vector
	embedsBefore := atomic.LoadInt64(h.embedHits)
	records[0].ImageBase64 = base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4, color.RGBA{G: 10, A: 255}))
	rep, err = h.svc.IngestPosts(ctx, "test", records[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Kept)
	assert.Zero(t, rep.Embedded)
	assert.Equal(t, embedsBefore, atomic.LoadInt64(h.embedHits), "kept vector needs no model call")
	after, _, err := h.posts.Get(ctx, similarity.KindPost, "AAA")
	require.NoError(t, err)
	assert.Equal(t, first.Vector, after.Vector)

	hits, err := h.posts.Search(ctx, first.Vector, 1)
	require.NoError(t, err)
	assert.Equal(t, "AAA", hits[0].ID)
}

func TestPostgresSourceReadsLegacyTable(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "category", "brand", "price", "predicted_style", "image_url"}).
		AddRow(int64(7), "條紋襯衫", "", "上衣", "Queen", 1290.0, "韓系,簡約", "https://img/7.jpg").
		AddRow(int64(9), "寬褲", "", "下身", "", 990.0, "", "")
	mock.ExpectQuery(`(?s)SELECT id, .*array_to_string\(predicted_style, ','\).*FROM products ORDER BY id LIMIT`).
		WithArgs(5).
		WillReturnRows(rows)

	svc, err := db.NewPostgresServiceFromConn(logger.Nop(), conn)
	require.NoError(t, err)

	got, err := PostgresSource{DB: svc.DB(), Limit: 5}.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, "韓系,簡約", got[0].PredictedStyle)
	assert.Equal(t, 1290.0, got[0].OriginalPrice)
	assert.Equal(t, "7", ProductID(got[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteTaggedCSVRoundTrip(t *testing.T) {
	rows := []CatalogRow{{Index: 4, Name: "a, \"quoted\"", Category: "上衣", Price: 10}}
	var sb strings.Builder
	require.NoError(t, WriteTaggedCSV(&sb, rows, []fashion.StyleSet{fashion.NewStyleSet(fashion.StyleKorean, fashion.StyleMinimalist)}))

	back, err := ReadCatalogCSV(context.Background(), strings.NewReader(sb.String()), 0)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "prod_4", back[0].ID)
	assert.Equal(t, rows[0].Name, back[0].Name)
	assert.Equal(t, "['韓系', '簡約']", back[0].PredictedStyle)
}
