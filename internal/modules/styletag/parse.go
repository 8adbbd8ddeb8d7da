package styletag

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

var (
	ErrNotAList    = errors.New("styletag: response is not a list of quoted strings")
	ErrOutOfVocab  = errors.New("styletag: label outside the style vocabulary")
	ErrEmptyLabels = errors.New("styletag: no labels in response")
)

// Parse reads a list literal such as ['韓系', '簡約'] or ["korean"]. Every
// element must be a vocabulary member; duplicates collapse and at most max
// labels are kept (max <= 0 keeps all).
func Parse(raw string, max int) (fashion.StyleSet, error) {
	s := stripFence(raw)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, ErrNotAList
	}
	items, err := splitQuoted(strings.TrimSpace(s[1 : len(s)-1]))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyLabels
	}
	out := make(fashion.StyleSet, 0, len(items))
	for _, item := range items {
		st, ok := fashion.ParseStyle(item)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrOutOfVocab, item)
		}
		if !out.Contains(st) {
			out = append(out, st)
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func splitQuoted(body string) ([]string, error) {
	var out []string
	rs := []rune(body)
	i := 0
	skipSpace := func() {
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
	}
	for {
		skipSpace()
		if i >= len(rs) {
			return out, nil
		}
		q := rs[i]
		if q != '\'' && q != '"' {
			return nil, ErrNotAList
		}
		end := i + 1
		for end < len(rs) && rs[end] != q {
			end++
		}
		if end >= len(rs) {
			return nil, ErrNotAList
		}
		out = append(out, string(rs[i+1:end]))
		i = end + 1
		skipSpace()
		if i >= len(rs) {
			return out, nil
		}
		if rs[i] != ',' {
			return nil, ErrNotAList
		}
		i++
	}
}

// splitPlain accepts unquoted stored forms such as "韓系,簡約" or "{韓系,簡約}".
func splitPlain(raw string) []string {
	s := strings.Trim(strings.TrimSpace(raw), "{}[]")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '、' || r == '，' || r == '\'' || r == '"' || unicode.IsSpace(r)
	})
}
