package fashion

import "strings"

type Category string

const (
	CategoryTop       Category = "上衣"
	CategoryBottom    Category = "下身"
	CategoryOnePiece  Category = "連身"
	CategoryAccessory Category = "配件"
	CategoryOther     Category = "其他"
)

type categoryInfo struct {
	category    Category
	english     string
	description string
}

var categoryTable = []categoryInfo{
	{CategoryTop, "top", "T恤、襯衫、風衣、背心、毛衣等上半身單品"},
	{CategoryBottom, "bottom", "褲子、短褲、長褲、裙子等下半身單品"},
	{CategoryOnePiece, "one-piece", "洋裝、連身褲等連身單品"},
	{CategoryAccessory, "accessory", "包包、帽子、鞋子、襪子等配件"},
	{CategoryOther, "other", "無法分類的其他商品"},
}

var categoryLookup = func() map[string]Category {
	m := map[string]Category{
		"tops":        CategoryTop,
		"bottoms":     CategoryBottom,
		"onepiece":    CategoryOnePiece,
		"one piece":   CategoryOnePiece,
		"dress":       CategoryOnePiece,
		"accessories": CategoryAccessory,
	}
	for _, info := range categoryTable {
		m[string(info.category)] = info.category
		m[info.english] = info.category
	}
	return m
}()

func Categories() []Category {
	out := make([]Category, len(categoryTable))
	for i, info := range categoryTable {
		out[i] = info.category
	}
	return out
}

// ParseCategory resolves a label or alias; ok is false for unknown input.
func ParseCategory(raw string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, "'\"`「」")
	c, ok := categoryLookup[key]
	return c, ok
}

// NormalizeCategory maps unknown categories to CategoryOther.
func NormalizeCategory(raw string) Category {
	if c, ok := ParseCategory(raw); ok {
		return c
	}
	return CategoryOther
}

func (c Category) Valid() bool {
	got, ok := categoryLookup[string(c)]
	return ok && got == c
}

func (c Category) English() string {
	for _, info := range categoryTable {
		if info.category == c {
			return info.english
		}
	}
	return string(c)
}

func (c Category) Description() string {
	for _, info := range categoryTable {
		if info.category == c {
			return info.description
		}
	}
	return ""
}
