package normalize

import (
	"fmt"
	"strings"
)

// ExtractAnswer 从任意 provider 响应 JSON 中提取答案纯文本。
//
// 优先级链（先到先得）：
//  1. results[0].content.response_text
//  2. results[0].content.markdown_text
//  3. results[0].content.answer_results_md
//  4. 递归 results[0].content.markdown_json，收集 raw 字段与列表项
//  5. results[0].content.text
//  6. content 为字符串时直接返回
//  7. content 为数组时拼接
//  8. 拼接 results[0].content.answer_results（列表转连字符行，表格转管道表）
//
// 扁平 payload 的回退顺序：answer_text → answer → response → content；
// 仅有 answer_section_html 时先去标签，去净后为空则回退原始 HTML。
func ExtractAnswer(root any) string {
	m, ok := root.(map[string]any)
	if !ok {
		if s, ok := root.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}

	if content := firstResultContent(m); content != nil {
		if s := stringField(content, "response_text"); s != "" {
			return s
		}
		if s := stringField(content, "markdown_text"); s != "" {
			return s
		}
		if s := stringField(content, "answer_results_md"); s != "" {
			return s
		}
		if raw, ok := content["markdown_json"]; ok {
			if s := collectMarkdownJSON(raw); s != "" {
				return s
			}
		}
		if s := stringField(content, "text"); s != "" {
			return s
		}
		if s := anyContentText(content["content"]); s != "" {
			return s
		}
		if results, ok := content["answer_results"].([]any); ok {
			if s := joinAnswerResults(results); s != "" {
				return s
			}
		}
	}

	// 扁平 payload 回退
	for _, key := range []string{"answer_text", "answer", "response", "content"} {
		if s := anyContentText(m[key]); s != "" {
			return s
		}
	}
	if html := stringField(m, "answer_section_html"); html != "" {
		if s := StripHTML(html); s != "" {
			return s
		}
		return html
	}
	return ""
}

// firstResultContent 返回 results[0].content（若存在且为对象）。
func firstResultContent(m map[string]any) map[string]any {
	results, ok := m["results"].([]any)
	if !ok || len(results) == 0 {
		return nil
	}
	first, ok := results[0].(map[string]any)
	if !ok {
		return nil
	}
	content, ok := first["content"].(map[string]any)
	if !ok {
		return nil
	}
	return content
}

// stringField returns a trimmed string field or "".
func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// anyContentText 将 string / []any 形状的内容拼接为文本。
func anyContentText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var parts []string
		for _, item := range t {
			if s := anyContentText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		// 嵌套对象：常见形状 {text: "..."} 或 {raw: "..."}
		if s := stringField(t, "text"); s != "" {
			return s
		}
		return stringField(t, "raw")
	}
	return ""
}

// collectMarkdownJSON 深度遍历 markdown_json，收集 raw 字段与列表项文本。
func collectMarkdownJSON(v any) string {
	var parts []string
	walkMarkdownJSON(v, &parts, 0)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// markdown_json 的嵌套层级有限，硬上限只是防御畸形的自引用深度
const maxMarkdownDepth = 32

func walkMarkdownJSON(v any, parts *[]string, depth int) {
	if depth > maxMarkdownDepth {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		if raw := stringField(t, "raw"); raw != "" {
			*parts = append(*parts, raw)
		}
		if items, ok := t["items"].([]any); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						*parts = append(*parts, "- "+s)
					}
					continue
				}
				walkMarkdownJSON(item, parts, depth+1)
			}
		}
		if children, ok := t["children"].([]any); ok {
			walkMarkdownJSON(children, parts, depth+1)
		}
	case []any:
		for _, item := range t {
			walkMarkdownJSON(item, parts, depth+1)
		}
	}
}

// joinAnswerResults 拼接 answer_results 条目：
// 文本直接追加，列表转为连字符行，表格转为 Markdown 管道表。
func joinAnswerResults(results []any) string {
	var parts []string
	for _, r := range results {
		switch t := r.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				parts = append(parts, s)
			}
		case map[string]any:
			if s := answerResultEntry(t); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func answerResultEntry(entry map[string]any) string {
	typ := stringField(entry, "type")
	switch typ {
	case "list":
		items, _ := entry["items"].([]any)
		var lines []string
		for _, item := range items {
			if s := anyContentText(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case "table":
		return tableToMarkdown(entry)
	default:
		if s := stringField(entry, "text"); s != "" {
			return s
		}
		return stringField(entry, "value")
	}
}

// tableToMarkdown 将 {headers: [...], rows: [[...], ...]} 转为管道表。
func tableToMarkdown(entry map[string]any) string {
	headers, _ := entry["headers"].([]any)
	rows, _ := entry["rows"].([]any)
	if len(headers) == 0 && len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	if len(headers) > 0 {
		b.WriteString("| " + joinCells(headers) + " |\n")
		seps := make([]string, len(headers))
		for i := range seps {
			seps[i] = "---"
		}
		b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	}
	for _, row := range rows {
		cells, ok := row.([]any)
		if !ok {
			continue
		}
		b.WriteString("| " + joinCells(cells) + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinCells(cells []any) string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, strings.TrimSpace(fmt.Sprintf("%v", c)))
	}
	return strings.Join(out, " | ")
}
