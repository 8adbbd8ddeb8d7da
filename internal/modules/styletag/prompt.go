package styletag

import (
	"fmt"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

const systemPrompt = "你是一個時尚穿搭風格專家，只輸出風格清單。"

type ProductInput struct {
	Name        string
	Description string
	Category    string
	Brand       string
}

type PostInput struct {
	Caption     string
	Description string
	Hashtags    []string
}

func vocabularyList() string {
	styles := fashion.Styles()
	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = string(s)
	}
	return strings.Join(names, "、")
}

func productPrompt(in ProductInput, max int) string {
	return fmt.Sprintf(`你是一個時尚穿搭風格專家。根據以下資訊，請判斷這項商品最符合的 1~%d 個風格（從下列風格選，最多%d個），只回傳 Python list 格式，不需解釋、不需補充。
可選風格有：%s
請用 ['風格1', '風格2'] 或 ['風格1'] 格式回傳，不要有多餘文字。
---
商品名稱：%s
商品描述：%s
類別：%s
品牌：%s
---`, max, max, vocabularyList(), oneLine(in.Name), oneLine(in.Description), oneLine(in.Category), oneLine(in.Brand))
}

func postPrompt(in PostInput, max int) string {
	return fmt.Sprintf(`你是一個時尚穿搭風格專家。根據以下穿搭貼文，請判斷這套穿搭最符合的 1~%d 個風格（從下列風格選，最多%d個），只回傳 Python list 格式，不需解釋、不需補充。
可選風格有：%s
請用 ['風格1', '風格2'] 或 ['風格1'] 格式回傳，不要有多餘文字。
---
貼文內容：%s
穿搭描述：%s
標籤：%s
---`, max, max, vocabularyList(), oneLine(in.Caption), oneLine(in.Description), strings.Join(in.Hashtags, " "))
}

// Prompt fields are single-line so a field cannot fake the closing fence.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "---", "-")
	return strings.Join(strings.Fields(s), " ")
}
