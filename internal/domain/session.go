package domain

// Session 表示一个已连接参与者的服务端临时状态。
// 它由所属连接独占；RoomID 为空表示尚未加入任何房间。
// 所有字段只在 Hub 的事件循环内被修改。
type Session struct {
	SessionID   string // 连接建立时分配的唯一标识
	RoomID      string // 当前所在房间，最多同时属于一个房间
	CursorColor string // 加入房间时分配的光标颜色，离开前不变
	LastCursor  *Point // 最近一次上报的光标位置，未上报时为 nil
}

// Joined 报告会话当前是否在某个房间内。
func (s *Session) Joined() bool {
	return s.RoomID != ""
}

// ClearRoomState 在离开房间时重置与房间相关的状态。
func (s *Session) ClearRoomState() {
	s.RoomID = ""
	s.CursorColor = ""
	s.LastCursor = nil
}
