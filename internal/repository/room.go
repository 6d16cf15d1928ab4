package repository

import (
	"context"
	"time"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
)

// RoomRepository 定义了房间及其绘图历史的持久化操作。
// 历史是仅追加的：事件写入后不会被修改或重排。
type RoomRepository interface {
	// FindByRoomID 根据外部房间标识查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error)

	// EnsureRoom 返回已有房间，不存在时创建一个历史为空的新房间。
	// 并发创建竞争通过唯一约束解决，总是返回最终存在的那条记录。
	EnsureRoom(ctx context.Context, roomID string) (*domain.Room, error)

	// TouchActivity 刷新房间的 LastActivity 时间戳。
	TouchActivity(ctx context.Context, roomID string, at time.Time) error

	// AppendEvent 将事件追加到房间历史并刷新 LastActivity。
	AppendEvent(ctx context.Context, roomID string, event *domain.DrawEvent) error

	// Replay 按追加顺序返回房间的完整历史；无记录时返回空序列。
	Replay(ctx context.Context, roomID string) ([]domain.DrawEvent, error)
}
