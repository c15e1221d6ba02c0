package normalize

import (
	"regexp"
	"strings"
)

// BlocksToMarkdown 将 SERP 响应中的 text_block 序列转为 Markdown 风格纯文本。
//
// 支持的块类型：paragraph、heading、list、code、table。
// 未知类型按 paragraph 处理（取 text 字段）；畸形块被跳过。
func BlocksToMarkdown(blocks []any) string {
	var parts []string
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if s := blockToMarkdown(block); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func blockToMarkdown(block map[string]any) string {
	switch stringField(block, "type") {
	case "heading":
		text := stringField(block, "text")
		if text == "" {
			return ""
		}
		level := 2
		if l, ok := block["level"].(float64); ok && l >= 1 && l <= 6 {
			level = int(l)
		}
		return strings.Repeat("#", level) + " " + text
	case "list":
		items, _ := block["items"].([]any)
		var lines []string
		for _, item := range items {
			if s := anyContentText(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case "code":
		text := stringField(block, "text")
		if text == "" {
			return ""
		}
		lang := stringField(block, "language")
		return "```" + lang + "\n" + text + "\n```"
	case "table":
		return tableToMarkdown(block)
	default:
		return stringField(block, "text")
	}
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	htmlScriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

// htmlEntities 常见实体的最小替换表；完整解码不值得引入依赖
var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML 去除 HTML 标签，保留文本内容。
// script/style 块整体移除；块级标签边界折叠为换行。
func StripHTML(html string) string {
	s := htmlScriptPattern.ReplaceAllString(html, "")
	// 块级边界转换行，避免文字粘连
	for _, tag := range []string{"</p>", "</div>", "</li>", "<br>", "<br/>", "<br />", "</h1>", "</h2>", "</h3>", "</tr>"} {
		s = strings.ReplaceAll(s, tag, tag+"\n")
	}
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = htmlEntities.Replace(s)

	// 折叠多余空白
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
