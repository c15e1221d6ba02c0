package state

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/collectorflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// metadata 中的状态流转键
const (
	metaTransitions    = "status_transitions"
	metaLastTransition = "last_status_transition"
)

// Manager 持久化状态管理器。
// Execution 与 CollectorResult 的所有状态流转都必须经过这里。
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger

	// 可注入的时钟，测试用
	now func() time.Time
}

// NewManager 创建状态管理器
func NewManager(db *gorm.DB, logger *zap.Logger) *Manager {
	return &Manager{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// DB 返回底层连接（监控与测试用）。
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// AutoMigrate 建表（开发与测试用；生产走 internal/migration 的 SQL 迁移）。
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(&Execution{}, &CollectorResult{})
}

// ExecutionInit 创建成对记录所需的初始字段
type ExecutionInit struct {
	QueryID       string
	BrandID       string
	CustomerID    string
	CollectorType string
	Brand         string
	Question      string
	Competitors   []string
	Metadata      map[string]any
}

// Create 创建成对的 Execution（pending）与 CollectorResult（processing）。
// 两次写入共用服务端签发的 id；第二次失败视为可恢复——
// 打印告警后返回 nil result，由后续 UPSERT / 对账补齐。
func (m *Manager) Create(ctx context.Context, init ExecutionInit) (*Execution, *CollectorResult, error) {
	now := m.now()

	exec := &Execution{
		ID:            uuid.NewString(),
		QueryID:       init.QueryID,
		BrandID:       init.BrandID,
		CustomerID:    init.CustomerID,
		CollectorType: init.CollectorType,
		Status:        types.ExecutionPending,
		Metadata:      appendTransition(JSONMap(init.Metadata), "", string(types.ExecutionPending), now, "executor", "created"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.db.WithContext(ctx).Create(exec).Error; err != nil {
		return nil, nil, types.NewError(types.ErrUnknown, "insert execution failed").WithCause(err)
	}

	result := &CollectorResult{
		ID:            uuid.NewString(),
		QueryID:       init.QueryID,
		ExecutionID:   exec.ID,
		CollectorType: init.CollectorType,
		Brand:         init.Brand,
		Question:      init.Question,
		Competitors:   init.Competitors,
		Status:        types.ResultProcessing,
		Metadata:      appendTransition(nil, "", string(types.ResultProcessing), now, "executor", "created"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.db.WithContext(ctx).Create(result).Error; err != nil {
		// 可恢复：Execution 已存在，后续 UPSERT 以 execution_id 补齐
		m.logger.Warn("collector_result insert failed, will be reconciled",
			zap.String("execution_id", exec.ID),
			zap.Error(err),
		)
		return exec, nil, nil
	}
	return exec, result, nil
}

// TransitionExecution 校验并执行一次 Execution 状态流转。
// 幂等：当前已是终态时跳过。目标为 completed 时校验配对结果的
// raw_answer 非空，不满足则降级为 running（不变式 1）。
func (m *Manager) TransitionExecution(ctx context.Context, executionID string, to types.ExecutionStatus, source, reason string, patch map[string]any) error {
	if !to.Valid() {
		return types.NewError(types.ErrInvalidInput, "unknown execution status "+string(to))
	}

	exec, err := m.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	if exec.Status.IsTerminal() {
		m.logger.Debug("execution already terminal, transition skipped",
			zap.String("execution_id", executionID),
			zap.String("current", string(exec.Status)),
			zap.String("requested", string(to)),
		)
		return nil
	}

	if to == types.ExecutionCompleted {
		if !m.hasNonEmptyAnswer(ctx, executionID) {
			m.logger.Warn("completed requested without raw_answer, downgrading to running",
				zap.String("execution_id", executionID),
				zap.String("source", source),
			)
			to = types.ExecutionRunning
			reason = strings.TrimSpace(reason + " (downgraded: raw_answer missing)")
		}
	}

	now := m.now()
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
		"metadata":   appendTransition(exec.Metadata, string(exec.Status), string(to), now, source, reason),
	}
	for k, v := range patch {
		updates[k] = v
	}
	if err := m.db.WithContext(ctx).Model(&Execution{}).Where("id = ?", executionID).Updates(updates).Error; err != nil {
		return types.NewError(types.ErrUnknown, "update execution failed").WithCause(err)
	}
	return nil
}

// TransitionResult 校验并执行一次 CollectorResult 状态流转。
// 幂等：当前已是终态时跳过（failed_retry 非终态，可反复进入）。
func (m *Manager) TransitionResult(ctx context.Context, resultID string, to types.ResultStatus, source, reason string, patch map[string]any) error {
	switch to {
	case types.ResultProcessing, types.ResultCompleted, types.ResultFailed, types.ResultFailedRetry:
	default:
		return types.NewError(types.ErrInvalidInput, "unknown result status "+string(to))
	}

	result, err := m.GetResult(ctx, resultID)
	if err != nil {
		return err
	}
	if result.Status.IsTerminal() {
		m.logger.Debug("result already terminal, transition skipped",
			zap.String("result_id", resultID),
			zap.String("current", string(result.Status)),
			zap.String("requested", string(to)),
		)
		return nil
	}

	now := m.now()
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
		"metadata":   appendTransition(result.Metadata, string(result.Status), string(to), now, source, reason),
	}
	for k, v := range patch {
		updates[k] = v
	}
	if err := m.db.WithContext(ctx).Model(&CollectorResult{}).Where("id = ?", resultID).Updates(updates).Error; err != nil {
		return types.NewError(types.ErrUnknown, "update collector_result failed").WithCause(err)
	}
	return nil
}

// SetSnapshotID 在快照 id 可知的第一时间把它落到成对记录上。
// 先于主调用完成执行，保证进程崩溃后可重挂快照。
func (m *Manager) SetSnapshotID(ctx context.Context, executionID, snapshotID string) error {
	if err := m.db.WithContext(ctx).Model(&Execution{}).
		Where("id = ?", executionID).
		Updates(map[string]any{"brightdata_snapshot_id": snapshotID, "updated_at": m.now()}).Error; err != nil {
		return types.NewError(types.ErrUnknown, "persist snapshot id failed").WithCause(err)
	}
	// 镜像到结果记录，供轮询方按快照 id 定位
	if err := m.db.WithContext(ctx).Model(&CollectorResult{}).
		Where("execution_id = ?", executionID).
		Updates(map[string]any{"brightdata_snapshot_id": snapshotID, "updated_at": m.now()}).Error; err != nil {
		m.logger.Warn("mirror snapshot id to result failed",
			zap.String("execution_id", executionID),
			zap.Error(err),
		)
	}
	return nil
}

// AppendAttempt 向重试历史追加一条记录并同步 retry_count。
func (m *Manager) AppendAttempt(ctx context.Context, executionID string, attempt types.Attempt) error {
	exec, err := m.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	history := append(exec.RetryHistory, attempt)
	return m.db.WithContext(ctx).Model(&Execution{}).Where("id = ?", executionID).
		Updates(map[string]any{
			"retry_history": history,
			"retry_count":   len(history),
			"updated_at":    m.now(),
		}).Error
}

// UpsertResult 以 execution_id 为冲突键 UPSERT 结果记录。
// quick-poll 与 background-poll 并发完成同一快照时保证结果唯一。
// raw_response_json 不在更新列内——大负载由 WriteRawResponse 单独写。
func (m *Manager) UpsertResult(ctx context.Context, result *CollectorResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := m.now()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "execution_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"raw_answer", "citations", "urls", "topic", "collection_time_ms",
			"status", "brightdata_snapshot_id", "metadata", "error_message", "updated_at",
		}),
	}).Create(result).Error
	if err != nil {
		return types.NewError(types.ErrUnknown, "upsert collector_result failed").WithCause(err)
	}
	return nil
}

// WriteRawResponse 第二次容错更新：单独写 raw_response_json 列。
// "payload too large" 类错误被归类为 PAYLOAD_TOO_LARGE——
// 调用方容忍该错误，基本字段不受影响。
func (m *Manager) WriteRawResponse(ctx context.Context, resultID, raw string) error {
	err := m.db.WithContext(ctx).Model(&CollectorResult{}).
		Where("id = ?", resultID).
		Update("raw_response_json", raw).Error
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "too large") ||
		strings.Contains(msg, "too long") ||
		strings.Contains(msg, "payload") {
		return types.NewError(types.ErrPayloadTooLarge, "raw_response_json rejected by store").WithCause(err)
	}
	return types.NewError(types.ErrUnknown, "write raw_response_json failed").WithCause(err)
}

// GetExecution 按 id 读取 Execution
func (m *Manager) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var exec Execution
	if err := m.db.WithContext(ctx).First(&exec, "id = ?", id).Error; err != nil {
		return nil, types.NewError(types.ErrUnknown, "execution not found: "+id).WithCause(err)
	}
	return &exec, nil
}

// GetResult 按 id 读取 CollectorResult
func (m *Manager) GetResult(ctx context.Context, id string) (*CollectorResult, error) {
	var result CollectorResult
	if err := m.db.WithContext(ctx).First(&result, "id = ?", id).Error; err != nil {
		return nil, types.NewError(types.ErrUnknown, "collector_result not found: "+id).WithCause(err)
	}
	return &result, nil
}

// GetResultByExecutionID 按 execution_id 读取配对结果
func (m *Manager) GetResultByExecutionID(ctx context.Context, executionID string) (*CollectorResult, error) {
	var result CollectorResult
	if err := m.db.WithContext(ctx).First(&result, "execution_id = ?", executionID).Error; err != nil {
		return nil, types.NewError(types.ErrUnknown, "collector_result not found for execution "+executionID).WithCause(err)
	}
	return &result, nil
}

// FindResultBySnapshotID 按快照 id 定位结果记录
func (m *Manager) FindResultBySnapshotID(ctx context.Context, snapshotID string) (*CollectorResult, error) {
	var result CollectorResult
	err := m.db.WithContext(ctx).First(&result, "brightdata_snapshot_id = ?", snapshotID).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindExecutionBySnapshotID 按快照 id 定位 Execution
func (m *Manager) FindExecutionBySnapshotID(ctx context.Context, snapshotID string) (*Execution, error) {
	var exec Execution
	err := m.db.WithContext(ctx).First(&exec, "brightdata_snapshot_id = ?", snapshotID).Error
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// hasNonEmptyAnswer 不变式 1 的校验
func (m *Manager) hasNonEmptyAnswer(ctx context.Context, executionID string) bool {
	result, err := m.GetResultByExecutionID(ctx, executionID)
	if err != nil {
		return false
	}
	return strings.TrimSpace(result.RawAnswer) != ""
}

// appendTransition 追加一条状态流转记录到 metadata。
// 同时维护 last_status_transition 快照。
func appendTransition(meta JSONMap, from, to string, at time.Time, source, reason string) JSONMap {
	if meta == nil {
		meta = make(JSONMap)
	}
	record := map[string]any{
		"from":   from,
		"to":     to,
		"at":     at.Format(time.RFC3339Nano),
		"source": source,
	}
	if reason != "" {
		record["reason"] = reason
	}

	transitions, _ := meta[metaTransitions].([]any)
	meta[metaTransitions] = append(transitions, record)
	meta[metaLastTransition] = record
	return meta
}

// FirstTransitionAt 返回 metadata 中第一条状态流转的时间。
// 轮询方据此计算 collection_time_ms。
func FirstTransitionAt(meta JSONMap) (time.Time, bool) {
	transitions, _ := meta[metaTransitions].([]any)
	if len(transitions) == 0 {
		return time.Time{}, false
	}
	first, ok := transitions[0].(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	raw, _ := first["at"].(string)
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
