package brightdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.brightdata.com"

// Client 封装 Bright Data 数据集触发与快照下载接口。
// 所有 scraper 适配器共享同一个 Client 实例。
type Client struct {
	cfg     providers.BrightDataConfig
	client  *http.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewClient 创建 Bright Data 客户端。
// APIKey 缺失不在此处报错，适配器在请求路径上返回 CONFIGURATION_MISSING，
// 以便构造阶段不因部分后端未配置而失败。
func NewClient(cfg providers.BrightDataConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.PollRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PollRate), 1)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		limiter: limiter,
	}
}

// Configured 返回凭证是否就绪
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}
}

func (c *Client) requireCredentials(provider string) *types.Error {
	if c.Configured() {
		return nil
	}
	return types.NewError(types.ErrConfigurationMissing, "brightdata api key is not configured").
		WithProvider(provider)
}

// TriggerDataset 向数据集触发端点 POST 一批输入记录，返回快照 id 与原始响应体。
func (c *Client) TriggerDataset(ctx context.Context, provider, datasetID string, inputs []map[string]any) (string, []byte, error) {
	if err := c.requireCredentials(provider); err != nil {
		return "", nil, err
	}
	if datasetID == "" {
		return "", nil, types.NewError(types.ErrConfigurationMissing, "dataset id is not configured").
			WithProvider(provider)
	}

	endpoint := fmt.Sprintf("%s/datasets/v3/trigger?dataset_id=%s&include_errors=true",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(datasetID))

	status, body, err := providers.DoJSON(ctx, c.client, http.MethodPost, endpoint, c.headers(), inputs)
	if err != nil {
		return "", nil, providers.ClassifyTransportError(err, provider)
	}
	if status >= 400 {
		return "", nil, providers.MapHTTPError(status, providers.ReadErrMsg(body), provider)
	}

	snapshotID := ExtractSnapshotID(body)
	if snapshotID == "" {
		return "", body, types.NewError(types.ErrParse, "trigger response carries no snapshot id").
			WithProvider(provider).
			WithContext("body_prefix", prefix(body, 200))
	}

	c.logger.Debug("dataset triggered",
		zap.String("provider", provider),
		zap.String("dataset_id", datasetID),
		zap.String("snapshot_id", snapshotID),
		zap.Int("inputs", len(inputs)),
	)
	return snapshotID, body, nil
}

// SnapshotData 快照下载结果
type SnapshotData struct {
	Value any    // 解析后的 JSON 值（对象或数组）
	Raw   []byte // 原始响应体
}

// FetchSnapshot 下载一个快照。未就绪（HTTP 202、status=running、
// 非 JSON 响应体）返回可重试的 PARSE_ERROR，由轮询方继续等待。
func (c *Client) FetchSnapshot(ctx context.Context, provider, snapshotID string) (*SnapshotData, error) {
	if err := c.requireCredentials(provider); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrTimeout, "snapshot poll cancelled").
				WithProvider(provider).
				WithCause(err)
		}
	}

	endpoint := fmt.Sprintf("%s/datasets/v3/snapshot/%s?format=json",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(snapshotID))

	status, body, err := providers.DoJSON(ctx, c.client, http.MethodGet, endpoint, c.headers(), nil)
	if err != nil {
		return nil, providers.ClassifyTransportError(err, provider)
	}
	switch {
	case status == http.StatusAccepted:
		return nil, stillProcessing(provider, snapshotID, "snapshot accepted, still building")
	case status >= 400:
		return nil, providers.MapHTTPError(status, providers.ReadErrMsg(body), provider)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		// 构建中的快照经常返回进度文本而非 JSON
		return nil, stillProcessing(provider, snapshotID, "snapshot body is not json")
	}
	if isRunningStatus(value) {
		return nil, stillProcessing(provider, snapshotID, "snapshot reports running status")
	}
	return &SnapshotData{Value: value, Raw: body}, nil
}

// SyncScrape 调用同步抓取端点。部分数据集在负载高时返回 202+snapshot id，
// 此时提升为异步路径（返回 snapshot id 与 promoted=true）。
func (c *Client) SyncScrape(ctx context.Context, provider, datasetID string, input map[string]any) (*SnapshotData, string, error) {
	if err := c.requireCredentials(provider); err != nil {
		return nil, "", err
	}
	if datasetID == "" {
		return nil, "", types.NewError(types.ErrConfigurationMissing, "dataset id is not configured").
			WithProvider(provider)
	}

	endpoint := fmt.Sprintf("%s/datasets/v3/scrape?dataset_id=%s&format=json",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(datasetID))

	status, body, err := providers.DoJSON(ctx, c.client, http.MethodPost, endpoint, c.headers(), []map[string]any{input})
	if err != nil {
		return nil, "", providers.ClassifyTransportError(err, provider)
	}
	if status == http.StatusAccepted {
		snapshotID := ExtractSnapshotID(body)
		if snapshotID == "" {
			return nil, "", types.NewError(types.ErrParse, "202 without snapshot id").
				WithProvider(provider)
		}
		return nil, snapshotID, nil
	}
	if status >= 400 {
		return nil, "", providers.MapHTTPError(status, providers.ReadErrMsg(body), provider)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, "", types.NewError(types.ErrParse, "scrape body is not json").
			WithProvider(provider).
			WithCause(err)
	}
	return &SnapshotData{Value: value, Raw: body}, "", nil
}

// SERPSearch 调用 SERP 搜索端点，返回解析后的 JSON。
func (c *Client) SERPSearch(ctx context.Context, provider string, params url.Values) (*SnapshotData, error) {
	if err := c.requireCredentials(provider); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/serp/req?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), params.Encode())

	status, body, err := providers.DoJSON(ctx, c.client, http.MethodGet, endpoint, c.headers(), nil)
	if err != nil {
		return nil, providers.ClassifyTransportError(err, provider)
	}
	if status >= 400 {
		return nil, providers.MapHTTPError(status, providers.ReadErrMsg(body), provider)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, types.NewError(types.ErrParse, "serp body is not json").
			WithProvider(provider).
			WithCause(err)
	}
	return &SnapshotData{Value: value, Raw: body}, nil
}

// Ping 对数据集列表端点做一次轻量探活。
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/datasets/list"
	status, body, err := providers.DoJSON(ctx, c.client, http.MethodGet, endpoint, c.headers(), nil)
	latency := time.Since(start)
	if err != nil {
		return latency, err
	}
	if status != http.StatusOK {
		return latency, fmt.Errorf("brightdata ping failed: status=%d msg=%s", status, providers.ReadErrMsg(body))
	}
	return latency, nil
}

func stillProcessing(provider, snapshotID, msg string) *types.Error {
	return types.NewError(types.ErrParse, msg).
		WithProvider(provider).
		WithContext("snapshot_id", snapshotID)
}

// isRunningStatus 识别 {"status":"running"|"building"|"collecting"} 形状
func isRunningStatus(value any) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	status, _ := m["status"].(string)
	switch strings.ToLower(status) {
	case "running", "building", "collecting", "pending":
		return true
	}
	return false
}

// ExtractSnapshotID 从触发响应的若干已知形状中提取快照 id：
// {snapshot_id} → {id} → {snapshot_ids:[...]} → {data:{snapshot_id|id}}。
func ExtractSnapshotID(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	if id, ok := m["snapshot_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := m["id"].(string); ok && id != "" {
		return id
	}
	if ids, ok := m["snapshot_ids"].([]any); ok && len(ids) > 0 {
		if id, ok := ids[0].(string); ok {
			return id
		}
	}
	if data, ok := m["data"].(map[string]any); ok {
		if id, ok := data["snapshot_id"].(string); ok && id != "" {
			return id
		}
		if id, ok := data["id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

func prefix(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
