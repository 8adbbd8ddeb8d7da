package matcher

import (
	"fmt"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

type Locale string

const (
	LocaleZhTW Locale = "zh-TW"
	LocaleEn   Locale = "en"
)

func ParseLocale(raw string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "zh-tw", "zh_tw", "zh":
		return LocaleZhTW, nil
	case "en", "en-us":
		return LocaleEn, nil
	}
	return "", fmt.Errorf("unsupported locale %q", raw)
}

type messages struct {
	found        func(styles fashion.StyleSet) string
	noMatch      string
	unavailable  string
	badCondition string
}

var catalog = map[Locale]messages{
	LocaleZhTW: {
		found: func(styles fashion.StyleSet) string {
			return fmt.Sprintf("您上傳的圖片最接近 %s 風格，以下是符合您條件的商品：", strings.Join(styles.Strings(), " + "))
		},
		noMatch:      "抱歉，找不到符合條件的商品。試試放寬條件或更換圖片吧！",
		unavailable:  "抱歉，目前無法完成搜尋，請稍後再試。",
		badCondition: "抱歉，無法理解您的搜尋條件，請換個說法再試一次。",
	},
	LocaleEn: {
		found: func(styles fashion.StyleSet) string {
			names := make([]string, len(styles))
			for i, s := range styles {
				names[i] = s.English()
			}
			return fmt.Sprintf("Your photo is closest to the %s style. Here are the products matching your request:", strings.Join(names, " + "))
		},
		noMatch:      "Sorry, no products match. Try relaxing the conditions or using another photo.",
		unavailable:  "Sorry, the search is unavailable right now. Please try again later.",
		badCondition: "Sorry, the search conditions could not be understood. Please rephrase and try again.",
	},
}

func messagesFor(l Locale) messages {
	if m, ok := catalog[l]; ok {
		return m
	}
	return catalog[LocaleZhTW]
}
