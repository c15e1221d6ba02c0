package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs_Sources(t *testing.T) {
	t.Parallel()

	payload := mustJSON(t, `{
		"citations": ["https://a.example/one", "https://b.example/two"],
		"sources": [{"url": "https://c.example/three", "title": "t"}],
		"results": [{
			"content": {
				"text": "see [ref](https://d.example/four) and https://e.example/five.",
				"text_blocks": [{"snippet_links": ["https://f.example/six"]}]
			},
			"annotations": {"url": "https://g.example/seven"}
		}]
	}`)

	got := ExtractURLs(payload)
	assert.Contains(t, got, "https://a.example/one")
	assert.Contains(t, got, "https://b.example/two")
	assert.Contains(t, got, "https://c.example/three")
	assert.Contains(t, got, "https://d.example/four")
	assert.Contains(t, got, "https://e.example/five")
	assert.Contains(t, got, "https://f.example/six")
	assert.Contains(t, got, "https://g.example/seven")
}

func TestExtractURLs_FirstSeenOrderAndDedup(t *testing.T) {
	t.Parallel()

	payload := mustJSON(t, `{
		"citations": ["https://x.example/a", "https://y.example/b", "https://x.example/a"],
		"urls": ["https://y.example/b", "https://z.example/c"]
	}`)

	assert.Equal(t, []string{
		"https://x.example/a",
		"https://y.example/b",
		"https://z.example/c",
	}, ExtractURLs(payload))
}

func TestExtractURLs_StableOrderAcrossRuns(t *testing.T) {
	t.Parallel()

	// 多个仅能通过泛化遍历发现的 URL 分散在不同的 map 键下，
	// 重复提取必须得到同一顺序
	payload := mustJSON(t, `{
		"zeta":  {"nested": "https://z.example/1"},
		"alpha": {"nested": "https://a.example/2"},
		"mid":   {"nested": "https://m.example/3"},
		"beta":  {"nested": "https://b.example/4"},
		"omega": {"nested": "https://o.example/5"}
	}`)

	first := ExtractURLs(payload)
	assert.Len(t, first, 5)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ExtractURLs(payload))
	}
	// 键名升序决定遍历顺序
	assert.Equal(t, []string{
		"https://a.example/2",
		"https://b.example/4",
		"https://m.example/3",
		"https://o.example/5",
		"https://z.example/1",
	}, first)
}

func TestExtractURLs_RejectsNonHTTP(t *testing.T) {
	t.Parallel()

	payload := mustJSON(t, `{
		"citations": ["ftp://files.example/x", "javascript:alert(1)", "https://ok.example"]
	}`)
	assert.Equal(t, []string{"https://ok.example"}, ExtractURLs(payload))
}

func TestCleanURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected string
	}{
		{"https://a.example/path.", "https://a.example/path"},
		{"https://a.example/path),", "https://a.example/path"},
		{"  https://a.example ", "https://a.example"},
		{"http://a.example", "http://a.example"},
		{"ftp://a.example", ""},
		{"https://", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanURL(tt.in), tt.in)
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	html := `<html><style>p{color:red}</style><body><p>First &amp; second</p><ul><li>item</li></ul><script>evil()</script></body></html>`
	got := StripHTML(html)
	assert.Contains(t, got, "First & second")
	assert.Contains(t, got, "item")
	assert.NotContains(t, got, "evil")
	assert.NotContains(t, got, "color:red")
}
