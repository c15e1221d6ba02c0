package normalize

// ExtractModel 提取模型标识：content.llm_model → content.model → llm_model。
// 未找到时返回空串。
func ExtractModel(root any) string {
	m, ok := root.(map[string]any)
	if !ok {
		return ""
	}
	if content := firstResultContent(m); content != nil {
		if s := stringField(content, "llm_model"); s != "" {
			return s
		}
		if s := stringField(content, "model"); s != "" {
			return s
		}
	}
	if content, ok := m["content"].(map[string]any); ok {
		if s := stringField(content, "llm_model"); s != "" {
			return s
		}
		if s := stringField(content, "model"); s != "" {
			return s
		}
	}
	return stringField(m, "llm_model")
}
