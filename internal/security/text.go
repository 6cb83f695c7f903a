package security

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText はHTML断片からプレーンテキストを抽出する。
// script/style要素の中身は無視し、連続する空白は1つにまとめる。
// 案件一覧のサマリー表示用テキストの生成に使用する。
// パースに失敗する断片はhtmlパッケージが寛容に補正するため、エラーは返さない。
func ExtractText(fragment string) string {
	if fragment == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		// html.Parseは実用上ほぼ失敗しないが、失敗時は素通しせず空を返す
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}

// Excerpt はテキストを最大maxRunesルーンに切り詰める。
// 切り詰めが発生した場合は末尾に"…"を付与する。
func Excerpt(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "…"
}
