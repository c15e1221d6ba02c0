package types

import (
	"sort"
	"strings"
)

// Known collector identifiers exposed to callers.
const (
	CollectorChatGPT     = "chatgpt"
	CollectorGoogleAIO   = "google_aio"
	CollectorPerplexity  = "perplexity"
	CollectorClaude      = "claude"
	CollectorGemini      = "gemini"
	CollectorGrok        = "grok"
	CollectorBingCopilot = "bing_copilot"
)

// CanonicalCollectorKey 规范化 collector 集合为稳定的字符串键：
// 去重、排序、逗号连接。用于熔断器与指标标签。
func CanonicalCollectorKey(collectors []string) string {
	if len(collectors) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(collectors))
	uniq := make([]string, 0, len(collectors))
	for _, c := range collectors {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ",")
}
