// Package tasks 定义后台任务类型及其 payload 编解码。
package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// 任务类型常量
const (
	TypeHistoryAppend = "history:append" // 绘图事件持久化任务
)

// HistoryAppendPayload 定义了历史追加任务的数据结构。
type HistoryAppendPayload struct {
	RoomID    string          `json:"roomId"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewHistoryAppendTask 创建一个历史追加任务。
func NewHistoryAppendTask(roomID, kind string, data json.RawMessage, timestamp time.Time) (*asynq.Task, error) {
	payload := HistoryAppendPayload{
		RoomID:    roomID,
		Kind:      kind,
		Data:      data,
		Timestamp: timestamp,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeHistoryAppend, payloadBytes), nil
}

// Enqueuer 包装 asynq.Client，实现 Hub 的 EventPersister 接口：
// 转发已经完成，这里只负责把持久化请求挂到后台队列。
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer 创建 Enqueuer 实例。
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	return &Enqueuer{client: client}
}

// EnqueueAppend 将一条绘图事件入队持久化。
func (e *Enqueuer) EnqueueAppend(roomID, kind string, data json.RawMessage, timestamp time.Time) error {
	task, err := NewHistoryAppendTask(roomID, kind, data, timestamp)
	if err != nil {
		return err
	}
	info, err := e.client.Enqueue(task, asynq.Queue("default"))
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"task_id": info.ID,
		"room_id": roomID,
		"kind":    kind,
	}).Debug("History append task enqueued")
	return nil
}
