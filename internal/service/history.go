package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/repository"
)

// HistoryService 负责房间绘图历史的追加与回放。
// 回放走 Redis 缓存，未命中时回源数据库并回填；
// 追加成功后使缓存失效，保证后续加入者看到最新历史。
type HistoryService struct {
	roomRepo  repository.RoomRepository
	stateRepo repository.StateRepository
	cacheTTL  time.Duration
}

// NewHistoryService 创建 HistoryService 实例。
func NewHistoryService(roomRepo repository.RoomRepository, stateRepo repository.StateRepository, cacheTTL time.Duration) *HistoryService {
	if roomRepo == nil || stateRepo == nil {
		panic("All repositories must be non-nil for HistoryService")
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &HistoryService{
		roomRepo:  roomRepo,
		stateRepo: stateRepo,
		cacheTTL:  cacheTTL,
	}
}

// EnsureRoom 返回已有房间或创建一个历史为空的新房间。
func (s *HistoryService) EnsureRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.EnsureRoom(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to ensure room")
		return nil, ErrStoreUnavailable
	}
	return room, nil
}

// Append 将事件追加到房间历史。
// 存储失败返回 ErrStoreUnavailable；调用方 (Worker) 负责记录并决定重试。
// 追加成功后回放缓存失效；缓存删除失败只记日志，TTL 会兜底。
func (s *HistoryService) Append(ctx context.Context, roomID string, event *domain.DrawEvent) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "kind": event.Kind})

	if err := s.roomRepo.AppendEvent(ctx, roomID, event); err != nil {
		logCtx.WithError(err).Error("Failed to append event to history")
		return ErrStoreUnavailable
	}

	if err := s.stateRepo.InvalidateReplayCache(ctx, roomID); err != nil {
		logCtx.WithError(err).Warn("Failed to invalidate replay cache after append")
	}
	return nil
}

// Replay 按追加顺序返回房间的完整历史。
// 无中间追加时重复调用返回相同序列。
func (s *HistoryService) Replay(ctx context.Context, roomID string) ([]domain.DrawEvent, error) {
	logCtx := logrus.WithField("room_id", roomID)

	cached, err := s.stateRepo.GetReplayCache(ctx, roomID)
	if err == nil {
		logCtx.WithField("history_len", len(cached)).Debug("Replay served from cache")
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		// 缓存不可用只降级，不阻塞回放
		logCtx.WithError(err).Warn("Replay cache lookup failed, falling back to store")
	}

	events, err := s.roomRepo.Replay(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to replay history from store")
		return nil, ErrStoreUnavailable
	}

	if err := s.stateRepo.SetReplayCache(ctx, roomID, events, s.cacheTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to fill replay cache")
	}
	return events, nil
}
