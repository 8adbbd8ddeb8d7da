package fashion

import (
	"strings"
)

// Style is one label of the closed style vocabulary. The stored value is the
// catalog's own label so existing graph data stays addressable.
type Style string

const (
	StyleJapanese   Style = "日系"
	StyleKorean     Style = "韓系"
	StyleWestern    Style = "歐美"
	StyleStreet     Style = "街頭"
	StyleMinimalist Style = "簡約"
	StyleSport      Style = "運動風"
	StyleVintage    Style = "復古"
	StyleCasual     Style = "休閒"
	StyleUtility    Style = "工裝"
	StyleElegant    Style = "優雅"
	StyleOutdoor    Style = "戶外"
	StyleUrban      Style = "都會"
	StyleSweet      Style = "甜美"
	StyleSexy       Style = "性感"
	StyleFormal     Style = "正裝"
	StyleGlam       Style = "華麗"
)

// DefaultStyle is applied whenever tagging or image matching cannot produce a label.
const DefaultStyle = StyleCasual

type styleInfo struct {
	style       Style
	english     string
	description string
}

var styleTable = []styleInfo{
	{StyleJapanese, "japanese", "清新自然、簡約舒適的日本風格"},
	{StyleKorean, "korean", "時尚甜美、注重細節的韓國風格"},
	{StyleWestern, "western", "大膽前衛、個性鮮明的歐美風格"},
	{StyleStreet, "street", "休閒率性、潮流時尚的街頭風格"},
	{StyleMinimalist, "minimalist", "極簡主義、俐落大方的風格"},
	{StyleSport, "sport", "運動休閒、活力動感的風格"},
	{StyleVintage, "vintage", "懷舊經典、vintage 風格"},
	{StyleCasual, "casual", "輕鬆舒適、日常百搭的風格"},
	{StyleUtility, "utility", "實用耐穿、軍事工裝風格"},
	{StyleElegant, "elegant", "精緻優雅、知性氣質的風格"},
	{StyleOutdoor, "outdoor", "機能性強、戶外休閒風格"},
	{StyleUrban, "urban", "都市時尚、現代感強的風格"},
	{StyleSweet, "sweet", "可愛甜美、少女感的風格"},
	{StyleSexy, "sexy", "性感魅力、展現身材的風格"},
	{StyleFormal, "formal", "正式商務、專業得體的風格"},
	{StyleGlam, "glam", "奢華精緻、重視裝飾的風格"},
}

var styleLookup = func() map[string]Style {
	m := make(map[string]Style, len(styleTable)*4)
	for _, info := range styleTable {
		m[string(info.style)] = info.style
		m[info.english] = info.style
		m[info.english+"-style"] = info.style
		m[info.english+" style"] = info.style
	}
	// Common variants the models produce.
	m["運動"] = StyleSport
	m["sporty"] = StyleSport
	m["minimal"] = StyleMinimalist
	m["workwear"] = StyleUtility
	m["streetwear"] = StyleStreet
	m["retro"] = StyleVintage
	m["glamorous"] = StyleGlam
	return m
}()

// Styles returns the full vocabulary in its canonical order.
func Styles() []Style {
	out := make([]Style, len(styleTable))
	for i, info := range styleTable {
		out[i] = info.style
	}
	return out
}

// ParseStyle normalizes a label or an accepted alias to a vocabulary member.
func ParseStyle(raw string) (Style, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, "'\"`「」")
	if key == "" {
		return "", false
	}
	s, ok := styleLookup[key]
	return s, ok
}

func (s Style) Valid() bool {
	_, ok := styleLookup[string(s)]
	return ok && styleLookup[string(s)] == s
}

// English returns the English display name of the label.
func (s Style) English() string {
	for _, info := range styleTable {
		if info.style == s {
			return info.english
		}
	}
	return string(s)
}

func (s Style) Description() string {
	for _, info := range styleTable {
		if info.style == s {
			return info.description
		}
	}
	return ""
}

// StyleSet is an order-preserving, duplicate-free list of labels.
type StyleSet []Style

func NewStyleSet(styles ...Style) StyleSet {
	out := make(StyleSet, 0, len(styles))
	for _, s := range styles {
		if !out.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}

func (ss StyleSet) Contains(s Style) bool {
	for _, have := range ss {
		if have == s {
			return true
		}
	}
	return false
}

// Overlap counts the labels present in both sets.
func (ss StyleSet) Overlap(other StyleSet) int {
	n := 0
	for _, s := range NewStyleSet(ss...) {
		if other.Contains(s) {
			n++
		}
	}
	return n
}

// Equal reports set equality, ignoring order and duplicates.
func (ss StyleSet) Equal(other StyleSet) bool {
	a, b := NewStyleSet(ss...), NewStyleSet(other...)
	return len(a) == len(b) && a.Overlap(b) == len(a)
}

func (ss StyleSet) Strings() []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// StyleSetFromStrings keeps the members that parse and drops the rest.
func StyleSetFromStrings(raw []string) StyleSet {
	out := make(StyleSet, 0, len(raw))
	for _, r := range raw {
		if s, ok := ParseStyle(r); ok && !out.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}
