package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// urlPattern 匹配纯文本中的 http(s) URL
var urlPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// markdownLinkPattern 匹配 Markdown [text](url) 链接
var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)

// ExtractURLs 合并所有已知来源的 URL：
//   - 顶层 citations | sources | urls | links
//   - 各 text_block 的 snippet_links
//   - 任意节点的 annotations.url | link | source | href
//   - Markdown 链接与纯文本中的 URL
//
// 仅保留 http(s)；去重并保持首见顺序。
func ExtractURLs(root any) []string {
	var urls []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		u := CleanURL(raw)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	walkURLs(root, add, 0)
	return urls
}

const maxURLWalkDepth = 64

func walkURLs(v any, add func(string), depth int) {
	if depth > maxURLWalkDepth {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		// 顶层/节点级的 URL 列表字段
		for _, key := range []string{"citations", "sources", "urls", "links", "snippet_links"} {
			collectURLList(t[key], add)
		}
		// annotations 内的单值链接字段
		if ann, ok := t["annotations"].(map[string]any); ok {
			for _, key := range []string{"url", "link", "source", "href"} {
				if s := stringField(ann, key); s != "" {
					add(s)
				}
			}
		}
		// 单值链接字段（引用条目常见形状 {url: "...", title: "..."}）
		for _, key := range []string{"url", "link", "href"} {
			if s := stringField(t, key); s != "" {
				add(s)
			}
		}
		// 文本字段中内联的链接
		for _, key := range []string{"text", "markdown_text", "answer_text", "answer", "raw"} {
			if s := stringField(t, key); s != "" {
				addTextURLs(s, add)
			}
		}
		// 子节点按键名排序遍历，保证同一输入的 URL 顺序稳定
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkURLs(t[key], add, depth+1)
		}
	case []any:
		for _, item := range t {
			walkURLs(item, add, depth+1)
		}
	case string:
		addTextURLs(t, add)
	}
}

// collectURLList 收集字符串数组或 {url:...} 对象数组中的链接。
func collectURLList(v any, add func(string)) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	for _, item := range items {
		switch t := item.(type) {
		case string:
			add(t)
		case map[string]any:
			for _, key := range []string{"url", "link", "href", "source"} {
				if s := stringField(t, key); s != "" {
					add(s)
					break
				}
			}
		}
	}
}

// addTextURLs 提取文本中的 Markdown 链接与裸 URL。
func addTextURLs(text string, add func(string)) {
	if !strings.Contains(text, "http") {
		return
	}
	for _, match := range markdownLinkPattern.FindAllStringSubmatch(text, -1) {
		add(match[1])
	}
	for _, match := range urlPattern.FindAllString(text, -1) {
		add(match)
	}
}

// CleanURL 规范化单个 URL：去除首尾空白与尾部标点，拒绝非 http(s) 协议。
func CleanURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimRight(u, ".,;:!?)]}'\"")
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return ""
	}
	// 仅剩协议前缀的残片无意义
	if u == "http://" || u == "https://" {
		return ""
	}
	return u
}
