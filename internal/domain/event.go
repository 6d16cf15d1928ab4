package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// 事件类型常量。历史记录中只有这两种事件。
const (
	EventKindStroke = "stroke" // 一笔完成的笔画
	EventKindClear  = "clear"  // 整板清空
)

// DrawEvent 表示房间历史中的一条不可变记录。
// 主键即追加顺序；事件一旦写入不会被修改或重排。
type DrawEvent struct {
	ID        uint      `gorm:"primaryKey"`                      // 追加顺序
	RoomID    string    `gorm:"index:idx_event_room;size:16;not null"` // 所属房间 (外部标识)
	Kind      string    `gorm:"size:20;not null"`                // "stroke" 或 "clear"
	Payload   string    `gorm:"type:text;not null"`              // 事件数据，JSON 字符串
	Timestamp time.Time `gorm:"index;not null"`                  // 事件发生时间
}

// Point 画布上的一个坐标点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload 定义了 "stroke" 事件的具体数据结构。
type StrokePayload struct {
	Path        []Point `json:"path"`        // 笔画经过的点序列
	Color       string  `json:"color"`       // 画笔颜色 (例如 "#000")
	StrokeWidth float64 `json:"strokeWidth"` // 画笔粗细
}

// SetStrokePayload 将 StrokePayload 序列化并写入 Payload 字段。
func (e *DrawEvent) SetStrokePayload(p StrokePayload) error {
	bytes, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal stroke payload: %w", err)
	}
	e.Payload = string(bytes)
	return nil
}

// ParseStrokePayload 将 Payload 字段 (JSON 字符串) 解析为 StrokePayload。
// 对 "clear" 事件调用是一个错误。
func (e *DrawEvent) ParseStrokePayload() (StrokePayload, error) {
	var p StrokePayload
	if e.Kind != EventKindStroke {
		return p, fmt.Errorf("event kind %q carries no stroke payload", e.Kind)
	}
	if e.Payload == "" || e.Payload == "null" {
		return p, fmt.Errorf("stroke payload is empty")
	}
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal stroke payload: %w", err)
	}
	return p, nil
}

// WireEvent 是 DrawEvent 在事件通道和 REST 响应中的序列化形式。
type WireEvent struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ToWire 转换为线上表示。空 Payload 输出为 {} 而不是 null。
func (e *DrawEvent) ToWire() WireEvent {
	payload := json.RawMessage(e.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return WireEvent{
		Kind:      e.Kind,
		Payload:   payload,
		Timestamp: e.Timestamp,
	}
}

// WireHistory 将整个历史序列转换为线上表示，保持追加顺序。
func WireHistory(events []DrawEvent) []WireEvent {
	wire := make([]WireEvent, 0, len(events))
	for i := range events {
		wire = append(wire, events[i].ToWire())
	}
	return wire
}
