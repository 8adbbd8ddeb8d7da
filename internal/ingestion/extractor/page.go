package extractor

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SavedPage is what a stored post page contributes.
type SavedPage struct {
	Caption  string
	ImageURL string
}

// ParsePage extracts the caption (og:description, else the first article's
// text) and the image (widest srcset candidate of the first img, else src).
func ParsePage(r io.Reader) (SavedPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return SavedPage{}, fmt.Errorf("parse saved page: %w", err)
	}
	var page SavedPage
	if content, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		page.Caption = strings.TrimSpace(content)
	}
	if page.Caption == "" {
		page.Caption = strings.TrimSpace(doc.Find("article").First().Text())
	}

	img := doc.Find("img").First()
	if srcset, ok := img.Attr("srcset"); ok {
		page.ImageURL = LargestSrcsetCandidate(srcset)
	}
	if page.ImageURL == "" {
		if src, ok := img.Attr("src"); ok {
			page.ImageURL = strings.TrimSpace(src)
		}
	}
	return page, nil
}

// LargestSrcsetCandidate picks the URL with the biggest "<n>w" descriptor.
// Candidates without a width descriptor are ignored.
func LargestSrcsetCandidate(srcset string) string {
	best, bestW := "", 0
	for _, cand := range strings.Split(srcset, ",") {
		fields := strings.Fields(cand)
		if len(fields) != 2 || !strings.HasSuffix(fields[1], "w") {
			continue
		}
		w, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		if err != nil || w <= bestW {
			continue
		}
		best, bestW = fields[0], w
	}
	return best
}
