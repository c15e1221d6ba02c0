package brightdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(serverURL string) *Client {
	return NewClient(providers.BrightDataConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
	}, zap.NewNop())
}

func TestExtractSnapshotID_KnownShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"snapshot_id", `{"snapshot_id":"s1"}`, "s1"},
		{"id", `{"id":"s2"}`, "s2"},
		{"snapshot_ids array", `{"snapshot_ids":["s3","s4"]}`, "s3"},
		{"nested data.snapshot_id", `{"data":{"snapshot_id":"s5"}}`, "s5"},
		{"nested data.id", `{"data":{"id":"s6"}}`, "s6"},
		{"missing", `{"other":"x"}`, ""},
		{"not json", `oops`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSnapshotID([]byte(tt.body)))
		})
	}
}

func TestTriggerDataset_Success(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.RawQuery, "dataset_id=ds1")
		w.Write([]byte(`{"snapshot_id":"snap-1"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	id, _, err := c.TriggerDataset(context.Background(), "p", "ds1", []map[string]any{{"prompt": "q"}})
	require.NoError(t, err)
	assert.Equal(t, "snap-1", id)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestTriggerDataset_MissingCredentials(t *testing.T) {
	t.Parallel()

	c := NewClient(providers.BrightDataConfig{}, zap.NewNop())
	_, _, err := c.TriggerDataset(context.Background(), "p", "ds1", nil)
	assert.Equal(t, types.ErrConfigurationMissing, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}

func TestTriggerDataset_MissingDatasetID(t *testing.T) {
	t.Parallel()

	c := testClient("http://unused.example")
	_, _, err := c.TriggerDataset(context.Background(), "p", "", nil)
	assert.Equal(t, types.ErrConfigurationMissing, types.GetErrorCode(err))
}

func TestFetchSnapshot_StillProcessing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"202 accepted", http.StatusAccepted, ""},
		{"running status", http.StatusOK, `{"status":"running"}`},
		{"building status", http.StatusOK, `{"status":"building"}`},
		{"non-json body", http.StatusOK, "Snapshot is building, try again later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := testClient(server.URL)
			_, err := c.FetchSnapshot(context.Background(), "p", "snap-1")
			require.Error(t, err)
			// 未就绪必须映射为可重试的 PARSE_ERROR
			assert.Equal(t, types.ErrParse, types.GetErrorCode(err))
			assert.True(t, types.IsRetryable(err))
		})
	}
}

func TestFetchSnapshot_Ready(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/datasets/v3/snapshot/snap-1")
		w.Write([]byte(`[{"answer_text":"hello"}]`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	data, err := c.FetchSnapshot(context.Background(), "p", "snap-1")
	require.NoError(t, err)
	arr, ok := data.Value.([]any)
	require.True(t, ok)
	assert.Len(t, arr, 1)
}

func TestFetchSnapshot_AuthFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.FetchSnapshot(context.Background(), "p", "snap-1")
	assert.Equal(t, types.ErrAuthentication, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}

func TestSyncScrape_DirectAndPromoted(t *testing.T) {
	t.Parallel()

	t.Run("direct result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"answer_text":"direct"}]`))
		}))
		defer server.Close()

		c := testClient(server.URL)
		data, snapshotID, err := c.SyncScrape(context.Background(), "p", "ds1", map[string]any{"prompt": "q"})
		require.NoError(t, err)
		assert.Empty(t, snapshotID)
		assert.NotNil(t, data)
	})

	t.Run("202 promotes to polling", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"snapshot_id":"promoted-1"}`))
		}))
		defer server.Close()

		c := testClient(server.URL)
		data, snapshotID, err := c.SyncScrape(context.Background(), "p", "ds1", map[string]any{"prompt": "q"})
		require.NoError(t, err)
		assert.Nil(t, data)
		assert.Equal(t, "promoted-1", snapshotID)
	})
}
