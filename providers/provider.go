package providers

import (
	"context"
	"time"
)

// Metadata keys shared across adapters.
const (
	MetaProvider    = "provider"
	MetaDatasetID   = "dataset_id"
	MetaSnapshotID  = "snapshot_id"
	MetaAsync       = "async"
	MetaRawResponse = "raw_response_json"
	MetaMock        = "mock"
)

// AnswerRequest 规范化的采集请求
type AnswerRequest struct {
	Prompt        string `json:"prompt"`
	Brand         string `json:"brand,omitempty"`
	Locale        string `json:"locale,omitempty"`
	Country       string `json:"country,omitempty"`
	CollectorType string `json:"collector_type"`
}

// AnswerResponse 规范化的采集响应。
// 异步提交时 Answer/Citations 为空，Metadata 携带 snapshot_id 与 async=true。
type AnswerResponse struct {
	Answer        string         `json:"answer"`
	Response      string         `json:"response,omitempty"`
	Citations     []string       `json:"citations,omitempty"`
	URLs          []string       `json:"urls,omitempty"`
	ModelUsed     string         `json:"model_used,omitempty"`
	CollectorType string         `json:"collector_type"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SnapshotID returns the async snapshot id, if any.
func (r *AnswerResponse) SnapshotID() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	id, _ := r.Metadata[MetaSnapshotID].(string)
	return id
}

// Async reports whether the response is an async submit.
func (r *AnswerResponse) Async() bool {
	if r == nil || r.Metadata == nil {
		return false
	}
	async, _ := r.Metadata[MetaAsync].(bool)
	return async
}

// SetMeta sets a metadata key, allocating the map on first use.
func (r *AnswerResponse) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// Adapter 是所有 provider 适配器的统一契约。
type Adapter interface {
	// Collect 执行一次采集。同步后端阻塞到拿到答案；
	// 异步后端快速返回带 snapshot_id 的提交响应。
	Collect(ctx context.Context, req *AnswerRequest) (*AnswerResponse, error)

	// HealthCheck 执行轻量级探活，返回延迟与可用性信息。
	// 仅用于监控，不参与请求路径的路由决策。
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name 返回适配器的唯一标识
	Name() string
}

// SnapshotAware 由在主调用完成前即可拿到异步快照 id 的适配器实现。
// onSnapshot 在 id 可知的第一时间被调用，使执行器能在进程崩溃前
// 把 snapshot_id 持久化到 Execution 上，用于崩溃后恢复。
type SnapshotAware interface {
	CollectWithSnapshot(ctx context.Context, req *AnswerRequest, onSnapshot func(snapshotID string)) (*AnswerResponse, error)
}
