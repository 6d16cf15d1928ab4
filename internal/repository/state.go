package repository

import (
	"context"
	"time"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
)

// StateRepository 定义了与房间实时状态相关的缓存操作，由 Redis 实现。
// 缓存失效或不可用只会降级性能，不影响正确性。
type StateRepository interface {
	// GetReplayCache 尝试从缓存获取房间的回放序列。
	// 缓存未命中时返回 ErrNotFound。
	GetReplayCache(ctx context.Context, roomID string) ([]domain.DrawEvent, error)

	// SetReplayCache 将回放序列写入缓存。
	// ttl 为缓存生存时间，0 表示不过期。
	SetReplayCache(ctx context.Context, roomID string, events []domain.DrawEvent, ttl time.Duration) error

	// InvalidateReplayCache 删除房间的回放缓存 (在追加新事件后调用)。
	InvalidateReplayCache(ctx context.Context, roomID string) error
}
