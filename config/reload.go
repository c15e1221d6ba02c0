// =============================================================================
// 🔄 CollectorFlow 配置热更新
// =============================================================================
// 监听配置文件变更，校验通过后原子替换当前配置。
// 校验失败的新配置会被拒绝，继续使用旧配置。
// =============================================================================
package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ReloadCallback 配置替换成功后的回调
type ReloadCallback func(old, new *Config)

// Reloader 持有当前生效配置，并在文件变更时热替换。
type Reloader struct {
	loader  *Loader
	watcher *FileWatcher
	logger  *zap.Logger

	current atomic.Pointer[Config]

	mu        sync.Mutex
	callbacks []ReloadCallback

	reloads  atomic.Int64
	rejected atomic.Int64
}

// NewReloader 创建热更新管理器。
// path 为被监听的配置文件，initial 为启动时已加载的配置。
func NewReloader(path string, initial *Config, logger *zap.Logger, opts ...WatcherOption) (*Reloader, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := NewFileWatcher(path, append(opts, WithWatcherLogger(logger))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	r := &Reloader{
		loader:  NewLoader().WithConfigPath(path),
		watcher: watcher,
		logger:  logger,
	}
	r.current.Store(initial)

	watcher.OnChange(func(event FileEvent) {
		if event.Op == FileOpRemove {
			r.logger.Warn("config file removed, keeping current config",
				zap.String("path", event.Path))
			return
		}
		r.reload(event)
	})

	return r, nil
}

// Start 启动文件监听
func (r *Reloader) Start(ctx context.Context) error {
	return r.watcher.Start(ctx)
}

// Stop 停止文件监听
func (r *Reloader) Stop() {
	r.watcher.Stop()
}

// Current 返回当前生效配置。
// 返回的指针不可修改，热替换只会换整个指针。
func (r *Reloader) Current() *Config {
	return r.current.Load()
}

// OnReload 注册替换成功回调
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Stats 返回成功替换次数与被拒绝次数
func (r *Reloader) Stats() (reloads, rejected int64) {
	return r.reloads.Load(), r.rejected.Load()
}

// reload 重新加载配置文件并在校验通过后替换。
func (r *Reloader) reload(event FileEvent) {
	next, err := r.loader.Load()
	if err != nil {
		r.rejected.Add(1)
		r.logger.Error("config reload failed, keeping current config",
			zap.String("path", event.Path),
			zap.Error(err),
		)
		return
	}
	if err := next.Validate(); err != nil {
		r.rejected.Add(1)
		r.logger.Error("reloaded config is invalid, keeping current config",
			zap.String("path", event.Path),
			zap.Error(err),
		)
		return
	}

	old := r.current.Swap(next)
	r.reloads.Add(1)
	r.logger.Info("config reloaded",
		zap.String("path", event.Path),
		zap.String("op", event.Op.String()),
	)

	r.mu.Lock()
	callbacks := make([]ReloadCallback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, next)
	}
}
