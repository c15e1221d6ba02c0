package snapshot

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/collectorflow/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKey 所有在途登记落在同一个 hash 里，field 为 snapshot id。
const redisKey = "collectorflow:snapshots:inflight"

// RedisRegistry 把在途快照落到 Redis 的登记表。
// 进程重启后 List 返回全部在途条目，供 Poller.Resume 重挂。
type RedisRegistry struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisRegistry 创建 Redis 登记表
func NewRedisRegistry(client redis.UniversalClient, logger *zap.Logger) *RedisRegistry {
	return &RedisRegistry{client: client, logger: logger}
}

// Add implements Registry.
func (r *RedisRegistry) Add(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return types.NewError(types.ErrUnknown, "marshal snapshot entry failed").WithCause(err)
	}
	if err := r.client.HSet(ctx, redisKey, entry.SnapshotID, string(payload)).Err(); err != nil {
		return types.NewError(types.ErrTransport, "persist snapshot entry failed").WithCause(err)
	}
	return nil
}

// Remove implements Registry.
func (r *RedisRegistry) Remove(ctx context.Context, snapshotID string) error {
	if err := r.client.HDel(ctx, redisKey, snapshotID).Err(); err != nil {
		return types.NewError(types.ErrTransport, "remove snapshot entry failed").WithCause(err)
	}
	return nil
}

// List implements Registry.
func (r *RedisRegistry) List(ctx context.Context) ([]Entry, error) {
	raw, err := r.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "list snapshot entries failed").WithCause(err)
	}

	out := make([]Entry, 0, len(raw))
	for id, payload := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			// 坏条目跳过并清理，不阻塞其余快照的恢复
			r.logger.Warn("corrupt snapshot entry dropped",
				zap.String("snapshot_id", id),
				zap.Error(err),
			)
			_ = r.client.HDel(ctx, redisKey, id).Err()
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

var _ Registry = (*RedisRegistry)(nil)
