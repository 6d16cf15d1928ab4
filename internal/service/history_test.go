package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/repository"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/repository/mocks"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/service"
)

func newHistoryService(t *testing.T) (*service.HistoryService, *mocks.RoomRepository, *mocks.StateRepository) {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	return service.NewHistoryService(roomRepo, stateRepo, time.Minute), roomRepo, stateRepo
}

func strokeEvent(t *testing.T) *domain.DrawEvent {
	t.Helper()
	event := &domain.DrawEvent{Kind: domain.EventKindStroke, Timestamp: time.Now().UTC()}
	err := event.SetStrokePayload(domain.StrokePayload{
		Path:        []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
		Color:       "#000",
		StrokeWidth: 3,
	})
	require.NoError(t, err)
	return event
}

func TestHistoryService_Replay_CacheMissFallsBackToStore(t *testing.T) {
	svc, roomRepo, stateRepo := newHistoryService(t)
	ctx := context.Background()
	stored := []domain.DrawEvent{*strokeEvent(t)}

	stateRepo.On("GetReplayCache", ctx, "ABC123").Return(nil, repository.ErrNotFound).Once()
	roomRepo.On("Replay", ctx, "ABC123").Return(stored, nil).Once()
	stateRepo.On("SetReplayCache", ctx, "ABC123", stored, time.Minute).Return(nil).Once()

	events, err := svc.Replay(ctx, "ABC123")

	require.NoError(t, err)
	assert.Equal(t, stored, events)
	roomRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestHistoryService_Replay_CacheHitSkipsStore(t *testing.T) {
	svc, roomRepo, stateRepo := newHistoryService(t)
	ctx := context.Background()
	cached := []domain.DrawEvent{*strokeEvent(t)}

	stateRepo.On("GetReplayCache", ctx, "ABC123").Return(cached, nil).Once()

	events, err := svc.Replay(ctx, "ABC123")

	require.NoError(t, err)
	assert.Equal(t, cached, events)
	roomRepo.AssertNotCalled(t, "Replay", mock.Anything, mock.Anything)
}

func TestHistoryService_Replay_IdempotentWithoutAppend(t *testing.T) {
	svc, roomRepo, stateRepo := newHistoryService(t)
	ctx := context.Background()
	stored := []domain.DrawEvent{*strokeEvent(t)}

	// 第一次未命中回源并回填，第二次直接命中缓存，序列完全一致
	stateRepo.On("GetReplayCache", ctx, "ABC123").Return(nil, repository.ErrNotFound).Once()
	roomRepo.On("Replay", ctx, "ABC123").Return(stored, nil).Once()
	stateRepo.On("SetReplayCache", ctx, "ABC123", stored, time.Minute).Return(nil).Once()
	stateRepo.On("GetReplayCache", ctx, "ABC123").Return(stored, nil).Once()

	first, err := svc.Replay(ctx, "ABC123")
	require.NoError(t, err)
	second, err := svc.Replay(ctx, "ABC123")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHistoryService_Append_InvalidatesCache(t *testing.T) {
	svc, roomRepo, stateRepo := newHistoryService(t)
	ctx := context.Background()
	event := strokeEvent(t)

	roomRepo.On("AppendEvent", ctx, "ABC123", event).Return(nil).Once()
	stateRepo.On("InvalidateReplayCache", ctx, "ABC123").Return(nil).Once()

	err := svc.Append(ctx, "ABC123", event)

	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestHistoryService_Append_StoreFailureMapped(t *testing.T) {
	svc, roomRepo, stateRepo := newHistoryService(t)
	ctx := context.Background()
	event := strokeEvent(t)

	roomRepo.On("AppendEvent", ctx, "ABC123", event).Return(repository.ErrStoreUnavailable).Once()

	err := svc.Append(ctx, "ABC123", event)

	assert.ErrorIs(t, err, service.ErrStoreUnavailable)
	// 追加失败时不应动缓存
	stateRepo.AssertNotCalled(t, "InvalidateReplayCache", mock.Anything, mock.Anything)
}

func TestHistoryService_Append_RoundTripPayloadUnchanged(t *testing.T) {
	svc, roomRepo, stateRepo := newHistoryService(t)
	ctx := context.Background()
	event := strokeEvent(t)

	var appended *domain.DrawEvent
	roomRepo.On("AppendEvent", ctx, "ABC123", event).
		Run(func(args mock.Arguments) {
			appended = args.Get(2).(*domain.DrawEvent)
		}).
		Return(nil).Once()
	stateRepo.On("InvalidateReplayCache", ctx, "ABC123").Return(nil).Once()
	stateRepo.On("GetReplayCache", ctx, "ABC123").Return(nil, repository.ErrNotFound).Once()
	roomRepo.On("Replay", ctx, "ABC123").
		Return([]domain.DrawEvent{*event}, nil).Once()
	stateRepo.On("SetReplayCache", ctx, "ABC123", mock.Anything, time.Minute).Return(nil).Once()

	require.NoError(t, svc.Append(ctx, "ABC123", event))
	events, err := svc.Replay(ctx, "ABC123")
	require.NoError(t, err)

	require.Len(t, events, 1)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventKindStroke, last.Kind)

	payload, err := last.ParseStrokePayload()
	require.NoError(t, err)
	assert.Equal(t, []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, payload.Path)
	assert.Equal(t, "#000", payload.Color)
	assert.Equal(t, float64(3), payload.StrokeWidth)
	require.NotNil(t, appended)
	assert.Equal(t, event.Payload, appended.Payload)
}
