package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

const sampleCaption = "今日穿搭 ✨\n\n秋天的韓系層次感，簡單又有質感\n\nTop: Uniqlo U\nPants：Lee\njacket: Carhartt-WIP\n\n#ootd #韓系穿搭 #fall_look"

func TestParseCaption(t *testing.T) {
	c := ParseCaption(sampleCaption)

	require.Len(t, c.Items, 3)
	assert.Equal(t, "Top:Uniqlo U", c.Items[0].Name)
	assert.Equal(t, "Uniqlo U", c.Items[0].Brand)
	assert.Equal(t, "Pants", c.Items[1].Type)
	assert.Equal(t, "Lee", c.Items[1].Brand)
	assert.Equal(t, "jacket:Carhartt-WIP", c.Items[2].Name)

	assert.Equal(t, "秋天的韓系層次感，簡單又有質感", c.Description)
	assert.Equal(t, []string{"#ootd", "#韓系穿搭", "#fall_look"}, c.Hashtags)
}

func TestParseCaptionWithoutParagraphs(t *testing.T) {
	c := ParseCaption("just a line #tag")
	assert.Empty(t, c.Items)
	assert.Empty(t, c.Description)
	assert.Equal(t, []string{"#tag"}, c.Hashtags)
}

func TestPostIDFromURL(t *testing.T) {
	assert.Equal(t, "C8xYz", PostIDFromURL("https://www.instagram.com/p/C8xYz/"))
	assert.Equal(t, "C8xYz", PostIDFromURL("https://www.instagram.com/p/C8xYz"))
}

func TestParsePage(t *testing.T) {
	html := `<html><head><meta property="og:description" content="  Top: Zara  "></head>
<body><article>ignored</article>
<img src="small.jpg" srcset="a.jpg 320w, b.jpg 1080w, c.jpg 640w"></body></html>`
	page, err := ParsePage(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Top: Zara", page.Caption)
	assert.Equal(t, "b.jpg", page.ImageURL)
}

func TestParsePageFallbacks(t *testing.T) {
	html := `<html><body><article><p>caption from article</p></article><img src="only.jpg"></body></html>`
	page, err := ParsePage(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "caption from article", page.Caption)
	assert.Equal(t, "only.jpg", page.ImageURL)
}

func TestLargestSrcsetCandidateIgnoresDensityDescriptors(t *testing.T) {
	assert.Equal(t, "", LargestSrcsetCandidate("a.jpg 1x, b.jpg 2x"))
	assert.Equal(t, "w.jpg", LargestSrcsetCandidate("a.jpg 2x, w.jpg 10w"))
}

func TestFetcherHTTPRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("img"))
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop(), nil, FetcherConfig{Timeout: time.Second, Attempts: 2})
	f.retry.InitialDelay = time.Millisecond
	b, err := f.Fetch(context.Background(), srv.URL+"/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "img", string(b))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetcherHTTPNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(logger.Nop(), nil, FetcherConfig{Attempts: 3})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

type fakeObjects struct{ got string }

func (f *fakeObjects) ReadAll(_ context.Context, uri string, _ int64) ([]byte, error) {
	f.got = uri
	return []byte("gs-bytes"), nil
}

func TestFetcherRoutesByScheme(t *testing.T) {
	objs := &fakeObjects{}
	f := NewFetcher(logger.Nop(), objs, FetcherConfig{MaxBytes: 8})

	b, err := f.Fetch(context.Background(), "gs://bucket/post.jpg")
	require.NoError(t, err)
	assert.Equal(t, "gs-bytes", string(b))
	assert.Equal(t, "gs://bucket/post.jpg", objs.got)

	dir := t.TempDir()
	small := filepath.Join(dir, "small.png")
	require.NoError(t, os.WriteFile(small, []byte("png"), 0o600))
	b, err = f.Fetch(context.Background(), "file://"+small)
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))

	big := filepath.Join(dir, "big.png")
	require.NoError(t, os.WriteFile(big, []byte("0123456789"), 0o600))
	_, err = f.Fetch(context.Background(), big)
	require.Error(t, err)

	noBucket := NewFetcher(logger.Nop(), nil, FetcherConfig{})
	_, err = noBucket.Fetch(context.Background(), "gs://bucket/post.jpg")
	require.Error(t, err)
}
