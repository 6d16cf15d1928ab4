package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/service"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/tasks"
)

// HistoryAppendHandler 处理历史追加任务：把转发时入队的绘图事件
// 落到持久存储。存储失败交给 asynq 重试，参与者永远感知不到。
type HistoryAppendHandler struct {
	history *service.HistoryService
}

// NewHistoryAppendHandler 创建 Handler 实例。
func NewHistoryAppendHandler(history *service.HistoryService) *HistoryAppendHandler {
	if history == nil {
		panic("HistoryService cannot be nil for HistoryAppendHandler")
	}
	return &HistoryAppendHandler{history: history}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *HistoryAppendHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.HistoryAppendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal history append payload")
		// 损坏的 payload 重试也不会成功
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": payload.RoomID,
		"kind":    payload.Kind,
	})

	event := &domain.DrawEvent{
		Kind:      payload.Kind,
		Payload:   string(payload.Data),
		Timestamp: payload.Timestamp,
	}
	if event.Payload == "" {
		event.Payload = "{}"
	}

	if err := h.history.Append(ctx, payload.RoomID, event); err != nil {
		logCtx.WithError(err).Error("Failed to append event to history store")
		return err // asynq 按默认策略重试
	}

	logCtx.Debug("Draw event persisted")
	return nil
}
