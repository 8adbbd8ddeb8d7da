package querytranslate

import (
	"fmt"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

const systemPrompt = "你是一位商品篩選條件專家，只輸出一行篩選運算式。"

type example struct {
	query  string
	answer string
}

var examples = []example{
	{"三千元以下的Nike鞋子", "brand = 'Nike' AND price <= 3000 AND category = '配件'"},
	{"2000元以下的韓系上衣", "price < 2000 AND category = '上衣' AND style = '韓系'"},
	{"1000元以下的休閒褲子", "price < 1000 AND category = '下身' AND style = '休閒'"},
	{"不要Zara的日系或韓系洋裝", "category = '連身' AND (style = '日系' OR style = '韓系') AND brand != 'Zara'"},
	{"隨便看看", "TRUE"},
}

func buildPrompt(query string) string {
	var b strings.Builder
	b.WriteString("將使用者的購物需求轉成一行篩選運算式。\n\n")
	b.WriteString("可用欄位：\n")
	b.WriteString("- price：數字，可用 = != < <= > >=\n")
	b.WriteString("- brand：品牌名稱字串，可用 = !=\n")
	fmt.Fprintf(&b, "- category：只能是 %s 之一，可用 = !=\n", joinCategories())
	fmt.Fprintf(&b, "- style：只能是 %s 之一，可用 = !=\n", joinStyles())
	b.WriteString("條件以 AND、OR、NOT 與括號組合；字串用單引號。沒有任何條件時回答 TRUE。\n")
	b.WriteString("只回答運算式本身，不要解釋，不要加程式碼區塊。\n\n")
	for _, ex := range examples {
		fmt.Fprintf(&b, "問題：%s\n答案：%s\n\n", ex.query, ex.answer)
	}
	fmt.Fprintf(&b, "問題：%s\n答案：", strings.Join(strings.Fields(query), " "))
	return b.String()
}

func joinStyles() string {
	styles := fashion.Styles()
	out := make([]string, len(styles))
	for i, s := range styles {
		out[i] = "'" + string(s) + "'"
	}
	return strings.Join(out, "、")
}

func joinCategories() string {
	cats := fashion.Categories()
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = "'" + string(c) + "'"
	}
	return strings.Join(out, "、")
}
