package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollect_FirstChoiceVerbatim(t *testing.T) {
	t.Parallel()

	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"model":"anthropic/claude-sonnet-4","choices":[{"message":{"content":"the answer"}},{"message":{"content":"ignored"}}]}`))
	}))
	defer server.Close()

	p := New(providers.OpenRouterConfig{APIKey: "key-1", BaseURL: server.URL}, types.CollectorClaude, zap.NewNop())
	resp, err := p.Collect(context.Background(), &providers.AnswerRequest{Prompt: "compare X and Y"})
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, "anthropic/claude-sonnet-4", resp.ModelUsed)
	assert.Equal(t, "anthropic/claude-sonnet-4", gotBody.Model)
	assert.Equal(t, "compare X and Y", gotBody.Messages[0].Content)
}

func TestCollect_MissingCredentials(t *testing.T) {
	t.Parallel()

	p := New(providers.OpenRouterConfig{}, types.CollectorClaude, zap.NewNop())
	_, err := p.Collect(context.Background(), &providers.AnswerRequest{Prompt: "q"})
	assert.Equal(t, types.ErrConfigurationMissing, types.GetErrorCode(err))
}

func TestCollect_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		body         string
		expectedCode types.ErrorCode
	}{
		{"401", http.StatusUnauthorized, `{"error":"bad key"}`, types.ErrAuthentication},
		{"400", http.StatusBadRequest, `{"error":"bad schema"}`, types.ErrInvalidInput},
		{"502", http.StatusBadGateway, `{"error":"upstream"}`, types.ErrTransport},
		{"empty choices", http.StatusOK, `{"choices":[]}`, types.ErrEmptyResponse},
		{"not json", http.StatusOK, `<html>`, types.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := New(providers.OpenRouterConfig{APIKey: "k", BaseURL: server.URL}, types.CollectorGrok, zap.NewNop())
			_, err := p.Collect(context.Background(), &providers.AnswerRequest{Prompt: "q"})
			assert.Equal(t, tt.expectedCode, types.GetErrorCode(err))
		})
	}
}

func TestModelSelection(t *testing.T) {
	t.Parallel()

	// 配置覆盖优先于缺省映射
	p := New(providers.OpenRouterConfig{
		APIKey: "k",
		Models: map[string]string{types.CollectorClaude: "anthropic/claude-opus-4"},
	}, types.CollectorClaude, zap.NewNop())
	assert.Equal(t, "anthropic/claude-opus-4", p.model())

	p2 := New(providers.OpenRouterConfig{APIKey: "k"}, types.CollectorGrok, zap.NewNop())
	assert.Equal(t, "x-ai/grok-3", p2.model())

	p3 := New(providers.OpenRouterConfig{APIKey: "k"}, "unknown_collector", zap.NewNop())
	assert.Equal(t, "openai/gpt-4o", p3.model())
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := New(providers.OpenRouterConfig{APIKey: "k", BaseURL: server.URL}, types.CollectorClaude, zap.NewNop())
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
