package types

import "time"

// ExecutionStatus Execution 的生命周期状态
type ExecutionStatus string

const (
	// ExecutionPending 已创建，尚未发起任何 provider 调用
	ExecutionPending ExecutionStatus = "pending"
	// ExecutionRunning 至少一个 provider 调用在途（或异步快照等待中）
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted 终态：拿到非空答案
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed 终态：所有 provider 均失败
	ExecutionFailed ExecutionStatus = "failed"
)

// IsTerminal 返回状态是否为终态
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// Valid 返回状态是否为已知取值
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionPending, ExecutionRunning, ExecutionCompleted, ExecutionFailed:
		return true
	}
	return false
}

// ResultStatus CollectorResult 的生命周期状态
type ResultStatus string

const (
	// ResultProcessing 初始状态，答案尚未落库
	ResultProcessing ResultStatus = "processing"
	// ResultCompleted 终态：答案已写入
	ResultCompleted ResultStatus = "completed"
	// ResultFailed 终态：不可恢复的失败
	ResultFailed ResultStatus = "failed"
	// ResultFailedRetry 非终态失败：可由上层重试
	ResultFailedRetry ResultStatus = "failed_retry"
)

// IsTerminal 返回状态是否为终态（failed_retry 不是终态）
func (s ResultStatus) IsTerminal() bool {
	return s == ResultCompleted || s == ResultFailed
}

// Request 一次采集请求。接受后不可变。
type Request struct {
	QueryID         string   `json:"query_id"`
	BrandID         string   `json:"brand_id"`
	CustomerID      string   `json:"customer_id"`
	QueryText       string   `json:"query_text"`
	Intent          string   `json:"intent,omitempty"`
	Locale          string   `json:"locale,omitempty"`
	Country         string   `json:"country,omitempty"`
	Collectors      []string `json:"collectors"`
	SuppressScoring bool     `json:"suppress_scoring,omitempty"`
}

// CircuitKey 返回该请求对应的熔断器键：排序后的 collector 列表，逗号连接。
func (r *Request) CircuitKey() string {
	return CanonicalCollectorKey(r.Collectors)
}

// Attempt 重试历史中的单次尝试记录
type Attempt struct {
	AttemptNumber int       `json:"attempt_number"`
	Timestamp     time.Time `json:"timestamp"`
	ErrorType     ErrorCode `json:"error_type"`
	Retryable     bool      `json:"retryable"`
}

// ExecutionResult 单个 (request, collector) 的内存执行结果。
// 持久化记录（Execution / CollectorResult）由 state 包维护；
// ExecutionResult 只是返回给调用方的聚合视图。
type ExecutionResult struct {
	ExecutionID   string          `json:"execution_id"`
	ResultID      string          `json:"result_id,omitempty"`
	QueryID       string          `json:"query_id"`
	CollectorType string          `json:"collector_type"`
	Status        ExecutionStatus `json:"status"`
	Answer        string          `json:"answer,omitempty"`
	Citations     []string        `json:"citations,omitempty"`
	URLs          []string        `json:"urls,omitempty"`
	ModelUsed     string          `json:"model_used,omitempty"`
	SnapshotID    string          `json:"snapshot_id,omitempty"`
	FallbackUsed  bool            `json:"fallback_used"`
	FallbackChain []string        `json:"fallback_chain,omitempty"`
	Error         *Error          `json:"error,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Duration      time.Duration   `json:"duration"`
}

// Async 返回该结果是否仍在异步采集中（快照在途）。
func (r *ExecutionResult) Async() bool {
	if r.Metadata == nil {
		return false
	}
	async, _ := r.Metadata["async"].(bool)
	return async
}
