package collector

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"go.uber.org/zap"
)

// defaultHealthInterval 周期探活间隔
const defaultHealthInterval = 60 * time.Second

// HealthMonitor 周期性探活所有已注册 provider 适配器。
// 结果仅用于监控与诊断，不参与请求路径的路由决策。
type HealthMonitor struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	statuses map[string]*providers.HealthStatus

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewHealthMonitor 创建健康监控器。interval <= 0 时用默认间隔。
func NewHealthMonitor(registry *Registry, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthMonitor{
		registry: registry,
		interval: interval,
		logger:   logger,
		statuses: make(map[string]*providers.HealthStatus),
		stop:     make(chan struct{}),
	}
}

// Start 启动后台探活循环。启动时立即跑一轮。
func (h *HealthMonitor) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		h.CheckOnce(ctx)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CheckOnce(ctx)
			}
		}
	}()
}

// Close 停止探活循环并等待退出
func (h *HealthMonitor) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.wg.Wait()
}

// CheckOnce 对所有适配器跑一轮探活并更新状态快照。
func (h *HealthMonitor) CheckOnce(ctx context.Context) map[string]*providers.HealthStatus {
	names := h.registry.Adapters()
	out := make(map[string]*providers.HealthStatus, len(names))

	for _, name := range names {
		adapter, ok := h.registry.Adapter(name)
		if !ok {
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		status, err := adapter.HealthCheck(checkCtx)
		cancel()

		if status == nil {
			status = &providers.HealthStatus{Healthy: false}
			if err != nil {
				status.Message = err.Error()
			}
		}
		out[name] = status

		if !status.Healthy {
			h.logger.Warn("provider unhealthy",
				zap.String("provider", name),
				zap.String("message", status.Message),
			)
		}
	}

	h.mu.Lock()
	h.statuses = out
	h.mu.Unlock()
	return out
}

// Statuses 返回最近一轮探活的状态快照
func (h *HealthMonitor) Statuses() map[string]*providers.HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]*providers.HealthStatus, len(h.statuses))
	for k, v := range h.statuses {
		out[k] = v
	}
	return out
}
