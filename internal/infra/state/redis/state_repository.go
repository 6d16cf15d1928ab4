package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/repository"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现。
// 目前只承载回放序列的缓存：避免每个新加入者都全量扫描 draw_events 表。
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wb:" // 默认前缀 "wb:" (whiteboard)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisStateRepository) replayCacheKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:replay", r.keyPrefix, roomID)
}

// GetReplayCache 尝试从 Redis 读取房间的回放序列
func (r *RedisStateRepository) GetReplayCache(ctx context.Context, roomID string) ([]domain.DrawEvent, error) {
	key := r.replayCacheKey(roomID)
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get replay cache for room '%s' from %s: %w", roomID, key, err)
	}
	var events []domain.DrawEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		// 缓存内容损坏时当作未命中，由调用方回源重建
		return nil, repository.ErrNotFound
	}
	return events, nil
}

// SetReplayCache 将回放序列写入 Redis
func (r *RedisStateRepository) SetReplayCache(ctx context.Context, roomID string, events []domain.DrawEvent, ttl time.Duration) error {
	key := r.replayCacheKey(roomID)
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("redis: marshal replay cache for room '%s': %w", roomID, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set replay cache for room '%s' on %s: %w", roomID, key, err)
	}
	return nil
}

// InvalidateReplayCache 删除房间的回放缓存
func (r *RedisStateRepository) InvalidateReplayCache(ctx context.Context, roomID string) error {
	key := r.replayCacheKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: invalidate replay cache for room '%s' on %s: %w", roomID, key, err)
	}
	return nil
}
