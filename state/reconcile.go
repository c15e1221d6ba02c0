package state

import (
	"context"
	"strings"

	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

// ReconcileReport 一次对账扫描的统计
type ReconcileReport struct {
	Scanned    int `json:"scanned"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Downgraded int `json:"downgraded"`
}

// Reconcile 扫描不一致的成对记录并修复：
//
//   - running 的 Execution，配对结果已 completed 且 raw_answer 非空 → completed
//   - running 的 Execution，配对结果已 failed → failed
//   - completed 的 Execution，raw_answer 为空 → 降级回 running
//
// 进程崩溃或第二次写入失败留下的中间态由此收敛。
func (m *Manager) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	var running []Execution
	if err := m.db.WithContext(ctx).
		Where("status = ?", types.ExecutionRunning).
		Find(&running).Error; err != nil {
		return nil, types.NewError(types.ErrUnknown, "scan running executions failed").WithCause(err)
	}

	for _, exec := range running {
		report.Scanned++
		result, err := m.GetResultByExecutionID(ctx, exec.ID)
		if err != nil {
			continue
		}
		switch {
		case result.Status == types.ResultCompleted && strings.TrimSpace(result.RawAnswer) != "":
			if err := m.TransitionExecution(ctx, exec.ID, types.ExecutionCompleted, "reconciler", "paired result completed", nil); err == nil {
				report.Completed++
			}
		case result.Status == types.ResultFailed:
			if err := m.TransitionExecution(ctx, exec.ID, types.ExecutionFailed, "reconciler", "paired result failed", nil); err == nil {
				report.Failed++
			}
		}
	}

	var completed []Execution
	if err := m.db.WithContext(ctx).
		Where("status = ?", types.ExecutionCompleted).
		Find(&completed).Error; err != nil {
		return nil, types.NewError(types.ErrUnknown, "scan completed executions failed").WithCause(err)
	}

	for _, exec := range completed {
		report.Scanned++
		if m.hasNonEmptyAnswer(ctx, exec.ID) {
			continue
		}
		m.logger.Warn("completed execution without raw_answer, downgrading",
			zap.String("execution_id", exec.ID),
		)
		now := m.now()
		updates := map[string]any{
			"status":     types.ExecutionRunning,
			"updated_at": now,
			"metadata":   appendTransition(exec.Metadata, string(types.ExecutionCompleted), string(types.ExecutionRunning), now, "reconciler", "raw_answer missing"),
		}
		if err := m.db.WithContext(ctx).Model(&Execution{}).Where("id = ?", exec.ID).Updates(updates).Error; err == nil {
			report.Downgraded++
		}
	}

	return report, nil
}
