package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/ingestion/extractor"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/modules/styletag"
	"github.com/yungbote/outfitmatch-backend/internal/modules/vision"
	"github.com/yungbote/outfitmatch-backend/internal/platform/redis"
)

// PostRecord is one scraped post. Exactly one image field is expected;
// PageHTMLPath supplies caption and image when they are missing.
type PostRecord struct {
	PostID       string `json:"post_id"`
	AuthorID     string `json:"author_id"`
	AuthorName   string `json:"author_name"`
	URL          string `json:"url"`
	Caption      string `json:"caption"`
	ImageURL     string `json:"image_url"`
	ImagePath    string `json:"image_path"`
	ImageBase64  string `json:"image_base64"`
	Timestamp    string `json:"timestamp"`
	PageHTMLPath string `json:"page_html_path"`
}

// ReadPostsJSONL decodes one record per line; blank lines are skipped.
func ReadPostsJSONL(ctx context.Context, r io.Reader) ([]PostRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 32<<20)
	var out []PostRecord
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec PostRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("posts line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read posts: %w", err)
	}
	return out, nil
}

func ReadPostsFile(ctx context.Context, path string) ([]PostRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open posts: %w", err)
	}
	defer f.Close()
	return ReadPostsJSONL(ctx, f)
}

type preparedPost struct {
	post  fashion.Post
	image []byte
}

// IngestPosts stores posts with their author, items and style labels, then
// embeds each post's garment region. A post whose image has no garment is
// kept without an embedding.
func (s *Service) IngestPosts(ctx context.Context, source string, records []PostRecord) (Report, error) {
	start := s.now()
	rep := Report{Source: source, Read: len(records)}

	for lo := 0; lo < len(records); lo += s.cfg.BatchSize {
		hi := min(lo+s.cfg.BatchSize, len(records))
		prepared, err := s.preparePosts(ctx, records[lo:hi], &rep)
		if err != nil {
			return rep, err
		}
		if len(prepared) == 0 {
			continue
		}
		posts := make([]fashion.Post, len(prepared))
		for i, p := range prepared {
			posts[i] = p.post
		}
		n, err := s.deps.Store.UpsertPosts(ctx, posts)
		if err != nil {
			s.deps.Metrics.IncIngested("post", "failed")
			return rep, fmt.Errorf("upsert posts %d-%d: %w", lo, hi, err)
		}
		rep.Upserted += n
		for range posts {
			s.deps.Metrics.IncIngested("post", "upserted")
		}
		for _, p := range prepared {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			s.embedPost(ctx, p, &rep)
		}
	}

	rep.Duration = s.now().Sub(start)
	s.log.Info("Post ingestion finished",
		"source", source, "read", rep.Read, "upserted", rep.Upserted, "embedded", rep.Embedded,
		"kept", rep.Kept, "no_garment", rep.NoGarment, "skipped", rep.Skipped, "duration", rep.Duration.String())
	s.announce(ctx, redis.EventPostsIngested, source, rep.Upserted)
	return rep, nil
}

func (s *Service) preparePosts(ctx context.Context, records []PostRecord, rep *Report) ([]preparedPost, error) {
	out := make([]*preparedPost, len(records))
	problems := make([]string, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := s.preparePost(gctx, records[i])
			if err != nil {
				problems[i] = err.Error()
				return nil
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	prepared := make([]preparedPost, 0, len(records))
	for i, p := range out {
		if p == nil {
			rep.Skipped++
			rep.warn("post record %d: %s", i, problems[i])
			s.deps.Metrics.IncIngested("post", "skipped")
			continue
		}
		rep.Tagged++
		prepared = append(prepared, *p)
	}
	return prepared, nil
}

func (s *Service) preparePost(ctx context.Context, rec PostRecord) (*preparedPost, error) {
	caption, imageRef := strings.TrimSpace(rec.Caption), strings.TrimSpace(rec.ImageURL)
	if rec.PageHTMLPath != "" {
		page, err := readSavedPage(rec.PageHTMLPath)
		if err != nil {
			return nil, err
		}
		if caption == "" {
			caption = page.Caption
		}
		if imageRef == "" && rec.ImagePath == "" && rec.ImageBase64 == "" {
			imageRef = page.ImageURL
		}
	}

	id := strings.TrimSpace(rec.PostID)
	if id == "" {
		id = extractor.PostIDFromURL(rec.URL)
	}
	if id == "" {
		return nil, fmt.Errorf("no post id and no url")
	}

	var image []byte
	var err error
	switch {
	case rec.ImageBase64 != "":
		image, err = vision.DecodeBase64(rec.ImageBase64)
	case rec.ImagePath != "":
		image, err = s.fetch(ctx, rec.ImagePath)
	case imageRef != "":
		image, err = s.fetch(ctx, imageRef)
	}
	if err != nil {
		return nil, fmt.Errorf("post %s image: %w", id, err)
	}
	if caption == "" && image == nil {
		return nil, fmt.Errorf("post %s has neither caption nor image", id)
	}

	parsed := extractor.ParseCaption(caption)
	authorID := strings.TrimSpace(rec.AuthorID)
	if authorID == "" {
		authorID = strings.TrimSpace(rec.AuthorName)
	}
	post := fashion.Post{
		ID:          id,
		Author:      fashion.User{ID: authorID, DisplayName: strings.TrimSpace(rec.AuthorName)},
		URL:         strings.TrimSpace(rec.URL),
		CaptionRaw:  caption,
		Description: parsed.Description,
		ImageURL:    firstNonEmpty(imageRef, rec.ImagePath),
		Hashtags:    parsed.Hashtags,
		Items:       parsed.Items,
		Timestamp:   parseTimestamp(rec.Timestamp, s.now()),
	}
	post.Styles = s.deps.Tagger.TagPost(ctx, styletag.PostInput{
		Caption:     caption,
		Description: parsed.Description,
		Hashtags:    parsed.Hashtags,
	})
	return &preparedPost{post: post, image: image}, nil
}

func (s *Service) embedPost(ctx context.Context, p preparedPost, rep *Report) {
	if p.image == nil {
		rep.Skipped++
		return
	}
	written, err := s.embed(ctx, similarity.KindPost, p.post.ID, func(context.Context) ([]byte, error) { return p.image, nil })
	switch {
	case errors.Is(err, fashion.ErrNoGarmentDetected):
		rep.NoGarment++
		s.deps.Metrics.IncIngested("post_embedding", "no_garment")
		s.log.Warn("No garment in post image; stored without embedding", "post_id", p.post.ID)
	case err != nil:
		rep.Skipped++
		rep.warn("post %s embedding: %v", p.post.ID, err)
		s.deps.Metrics.IncIngested("post_embedding", "failed")
	case written:
		rep.Embedded++
		s.deps.Metrics.IncIngested("post_embedding", "written")
	default:
		rep.Kept++
		s.deps.Metrics.IncIngested("post_embedding", "kept")
	}
}

func (s *Service) fetch(ctx context.Context, ref string) ([]byte, error) {
	if s.deps.Fetcher == nil {
		return nil, fmt.Errorf("no image fetcher configured")
	}
	return s.deps.Fetcher.Fetch(ctx, ref)
}

func readSavedPage(path string) (extractor.SavedPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return extractor.SavedPage{}, fmt.Errorf("open saved page: %w", err)
	}
	defer f.Close()
	return extractor.ParsePage(f)
}

func parseTimestamp(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
