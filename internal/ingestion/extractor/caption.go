package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

var (
	itemPattern    = regexp.MustCompile(`(?i)(Top|Pants|Skirt|Shoes|Cap|Jacket|Coat|Sneakers|Shoe|Hat|Belt|Bag|Outer|Accessories)[：:]\s*([\p{L}\p{N}_\-@. ]+)`)
	hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
)

// Caption is what a post caption yields: the garment mentions, the
// free-text description paragraph and the hashtags.
type Caption struct {
	Items       []fashion.Item
	Description string
	Hashtags    []string
}

// ParseCaption reads "Type: Brand" mentions, takes the second blank-line
// separated paragraph as the description and collects hashtags.
func ParseCaption(text string) Caption {
	var out Caption
	seen := map[string]bool{}
	for _, m := range itemPattern.FindAllStringSubmatch(text, -1) {
		brand := strings.TrimSpace(m[2])
		if brand == "" {
			continue
		}
		item := fashion.Item{Name: m[1] + ":" + brand, Type: m[1], Brand: brand}
		if seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		out.Items = append(out.Items, item)
	}

	normalized := strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if parts := strings.Split(normalized, "\n\n"); len(parts) > 1 {
		out.Description = strings.TrimSpace(parts[1])
	}
	out.Hashtags = hashtagPattern.FindAllString(text, -1)
	return out
}

// PostIDFromURL uses the last path segment of a post permalink.
func PostIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
