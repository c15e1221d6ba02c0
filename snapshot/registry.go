package snapshot

import (
	"context"
	"sync"
	"time"
)

// Entry 一条在途快照的登记信息。
// PollIntervalMS/MaxWaitMS 为零时使用 Poller 的默认节奏。
type Entry struct {
	SnapshotID      string    `json:"snapshot_id"`
	ExecutionID     string    `json:"execution_id"`
	ResultID        string    `json:"result_id,omitempty"`
	QueryID         string    `json:"query_id,omitempty"`
	BrandID         string    `json:"brand_id,omitempty"`
	CustomerID      string    `json:"customer_id,omitempty"`
	CollectorType   string    `json:"collector_type"`
	Provider        string    `json:"provider"`
	SuppressScoring bool      `json:"suppress_scoring,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	PollIntervalMS  int       `json:"poll_interval_ms,omitempty"`
	MaxWaitMS       int       `json:"max_wait_ms,omitempty"`
}

// PollEvery 返回该条目的轮询间隔，零值时退回给定默认值。
func (e Entry) PollEvery(fallback time.Duration) time.Duration {
	if e.PollIntervalMS > 0 {
		return time.Duration(e.PollIntervalMS) * time.Millisecond
	}
	return fallback
}

// WaitBudget 返回该条目的最长等待，零值时退回给定默认值。
func (e Entry) WaitBudget(fallback time.Duration) time.Duration {
	if e.MaxWaitMS > 0 {
		return time.Duration(e.MaxWaitMS) * time.Millisecond
	}
	return fallback
}

// Registry 在途快照登记表。实现必须可并发使用。
type Registry interface {
	// Add 登记一条在途快照
	Add(ctx context.Context, entry Entry) error
	// Remove 移除登记（最终化或超时后）
	Remove(ctx context.Context, snapshotID string) error
	// List 返回所有在途登记（进程重启后重挂用）
	List(ctx context.Context) ([]Entry, error)
}

// MemoryRegistry 进程内登记表，默认实现。
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryRegistry 创建进程内登记表
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Entry)}
}

// Add implements Registry.
func (r *MemoryRegistry) Add(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.SnapshotID] = entry
	return nil
}

// Remove implements Registry.
func (r *MemoryRegistry) Remove(_ context.Context, snapshotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, snapshotID)
	return nil
}

// List implements Registry.
func (r *MemoryRegistry) List(_ context.Context) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

var _ Registry = (*MemoryRegistry)(nil)
