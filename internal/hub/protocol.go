package hub

import "encoding/json"

// 事件通道协议：每个连接一条全双工 WebSocket，消息为 JSON 信封。

// 入站事件名
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventCursorMove  = "cursor-move"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"
)

// 出站事件名 (draw-* 和 clear-canvas 原样转发，复用上面的常量)
const (
	EventRoomData     = "room-data"
	EventUserCount    = "user-count"
	EventCursorUpdate = "cursor-update"
	EventError        = "error"
)

// ErrRoomFullMessage 第 5 个加入者收到的错误文案。
const ErrRoomFullMessage = "Room is full. Maximum 4 users allowed."

// ErrInvalidRoomIDMessage 房间标识不合法时的错误文案。
const ErrInvalidRoomIDMessage = "Room ID must be 6-8 characters"

// Envelope 是事件通道上传输的消息信封。
// Data 保持原始 JSON，转发类事件不做重新编码。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CursorMovePayload 入站 cursor-move 的数据。
type CursorMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CursorUpdatePayload 出站 cursor-update 的数据。
type CursorUpdatePayload struct {
	SessionID string  `json:"sessionId"`
	Color     string  `json:"color"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}
