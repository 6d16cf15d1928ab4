// Package mocks 提供 repository 接口的 testify Mock 实现，供单元测试使用。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 Mock 实现。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) EnsureRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	args := m.Called(ctx, roomID, at)
	return args.Error(0)
}

func (m *RoomRepository) AppendEvent(ctx context.Context, roomID string, event *domain.DrawEvent) error {
	args := m.Called(ctx, roomID, event)
	return args.Error(0)
}

func (m *RoomRepository) Replay(ctx context.Context, roomID string) ([]domain.DrawEvent, error) {
	args := m.Called(ctx, roomID)
	if events, ok := args.Get(0).([]domain.DrawEvent); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}
