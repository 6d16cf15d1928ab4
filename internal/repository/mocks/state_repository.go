package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
)

// StateRepository 是 repository.StateRepository 的 Mock 实现。
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) GetReplayCache(ctx context.Context, roomID string) ([]domain.DrawEvent, error) {
	args := m.Called(ctx, roomID)
	if events, ok := args.Get(0).([]domain.DrawEvent); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StateRepository) SetReplayCache(ctx context.Context, roomID string, events []domain.DrawEvent, ttl time.Duration) error {
	args := m.Called(ctx, roomID, events, ttl)
	return args.Error(0)
}

func (m *StateRepository) InvalidateReplayCache(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}
