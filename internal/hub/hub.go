// Package hub 实现房间会话管理：成员准入、事件转发和历史持久化的编排。
package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/registry"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/service"
)

// WebSocket 读写参数，hub 和 client 共用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 笔画路径可能较长
)

// hubMessage 是 Hub 内部通道传递的消息。
type hubMessage struct {
	kind     string // "register", "unregister", "event", "deliver"
	client   *Client
	envelope *Envelope // 仅 event
	raw      []byte    // 仅 deliver (已编码的出站信封)
}

// HistoryReplayer 是 Hub 对历史存储的只读依赖 (加入时的快照获取)。
type HistoryReplayer interface {
	EnsureRoom(ctx context.Context, roomID string) (*domain.Room, error)
	Replay(ctx context.Context, roomID string) ([]domain.DrawEvent, error)
}

// EventPersister 把 "先转发、后异步持久化" 的策略抽象出来。
// 实现方 (asynq Enqueuer) 只负责入队，失败由调用方记录后吞掉。
type EventPersister interface {
	EnqueueAppend(roomID, kind string, payload json.RawMessage, timestamp time.Time) error
}

// Hub 维护所有活跃连接并串行处理它们的事件。
// 成员集的全部变更都发生在 Run 的单个 goroutine 内，
// 对同一房间不存在两次半交错的成员变更。
type Hub struct {
	messageChan chan hubMessage

	// sessionID -> Client，仅在 Run goroutine 内读写
	clients map[string]*Client

	registry  *registry.Registry
	history   HistoryReplayer
	persister EventPersister
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(reg *registry.Registry, history HistoryReplayer, persister EventPersister) *Hub {
	if reg == nil {
		panic("Registry cannot be nil for Hub")
	}
	if history == nil {
		panic("HistoryReplayer cannot be nil for Hub")
	}
	if persister == nil {
		panic("EventPersister cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan hubMessage, 512),
		clients:     make(map[string]*Client),
		registry:    reg,
		history:     history,
		persister:   persister,
	}
}

// Registry 返回 Hub 使用的成员注册表 (HTTP 层读取在线人数用)。
func (h *Hub) Registry() *registry.Registry {
	return h.registry
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行；messageChan 关闭后退出。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.kind {
		case "register":
			h.registerClient(msg.client)
		case "unregister":
			h.unregisterClient(msg.client)
		case "event":
			h.dispatchEvent(msg.client, msg.envelope)
		case "deliver":
			h.deliver(msg.client, msg.raw)
		default:
			log.Warnf("Received unknown hub message kind: %s", msg.kind)
		}
	}
	log.Info("Hub is shutting down...")
}

// Stop 关闭 Hub 的消息通道，使 Run 退出。只能调用一次。
func (h *Hub) Stop() {
	close(h.messageChan)
}

// queue 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示队列已满，消息被丢弃。
func (h *Hub) queue(msg hubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("kind", msg.kind).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Register 请求 Hub 接管一个新连接。
func (h *Hub) Register(client *Client) bool {
	return h.queue(hubMessage{kind: "register", client: client})
}

// --- 连接生命周期 ---

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.clients[client.SessionID()] = client
	logrus.WithField("session_id", client.SessionID()).Info("Client registered to Hub")
}

// unregisterClient 处理连接断开：等价于先 leave (若已加入) 再销毁会话。
// 从任何状态调用都安全。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		return
	}
	id := client.SessionID()
	if _, ok := h.clients[id]; !ok {
		// 已注销 (或从未注册成功)，无操作
		return
	}

	h.leaveRoom(client)

	delete(h.clients, id)
	close(client.send)
	logrus.WithField("session_id", id).Info("Client unregistered from Hub")
}

// --- 事件分发 ---

func (h *Hub) dispatchEvent(client *Client, env *Envelope) {
	if client == nil || env == nil {
		return
	}
	switch env.Event {
	case EventJoinRoom:
		h.handleJoinRoom(client, env)
	case EventLeaveRoom:
		h.handleLeaveRoom(client)
	case EventCursorMove:
		h.handleCursorMove(client, env)
	case EventDrawStart, EventDrawMove:
		h.relayToOthers(client, env)
	case EventDrawEnd:
		h.handleDrawEnd(client, env)
	case EventClearCanvas:
		h.handleClearCanvas(client)
	default:
		logrus.WithFields(logrus.Fields{
			"session_id": client.SessionID(),
			"event":      env.Event,
		}).Warn("Received unknown event, dropping")
	}
}

// handleJoinRoom 处理 join-room：先离开旧房间，再尝试准入新房间。
func (h *Hub) handleJoinRoom(client *Client, env *Envelope) {
	var rawRoomID string
	if err := json.Unmarshal(env.Data, &rawRoomID); err != nil {
		h.sendError(client, ErrInvalidRoomIDMessage)
		return
	}
	roomID, err := service.NormalizeRoomID(rawRoomID)
	if err != nil {
		// 不合法的标识在进入 Registry 之前就被拒绝
		h.sendError(client, ErrInvalidRoomIDMessage)
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": client.SessionID(),
		"room_id":    roomID,
	})

	// 同一会话最多属于一个房间：先执行离开序列
	if client.session.Joined() {
		h.leaveRoom(client)
	}

	adm, err := h.registry.Admit(roomID, client.SessionID())
	if err != nil {
		// 房间满：只通知请求者，不动任何状态
		logCtx.Info("Join rejected, room is full")
		h.sendError(client, ErrRoomFullMessage)
		return
	}

	client.session.RoomID = roomID
	client.session.CursorColor = adm.Color
	logCtx.WithFields(logrus.Fields{
		"color": adm.Color,
		"count": adm.MemberCount,
	}).Info("Client joined room")

	// 历史快照在循环外获取，送达再经循环串行投递
	go h.fetchRoomData(client, roomID)

	h.broadcastUserCount(roomID)
}

func (h *Hub) handleLeaveRoom(client *Client) {
	if !client.session.Joined() {
		return
	}
	h.leaveRoom(client)
}

// leaveRoom 执行离开序列：移出注册表、广播新人数、清空会话的房间状态。
func (h *Hub) leaveRoom(client *Client) {
	if !client.session.Joined() {
		return
	}
	roomID := client.session.RoomID
	h.registry.Remove(roomID, client.SessionID())
	client.session.ClearRoomState()

	logrus.WithFields(logrus.Fields{
		"session_id": client.SessionID(),
		"room_id":    roomID,
	}).Info("Client left room")

	h.broadcastUserCount(roomID)
}

func (h *Hub) handleCursorMove(client *Client, env *Envelope) {
	if !client.session.Joined() {
		// 未加入房间的事件直接丢弃，不回错误
		return
	}
	var pos CursorMovePayload
	if err := json.Unmarshal(env.Data, &pos); err != nil {
		logrus.WithField("session_id", client.SessionID()).Debug("Malformed cursor-move payload, dropping")
		return
	}
	client.session.LastCursor = &domain.Point{X: pos.X, Y: pos.Y}

	h.broadcastEvent(client.session.RoomID, client.SessionID(), EventCursorUpdate, CursorUpdatePayload{
		SessionID: client.SessionID(),
		Color:     client.session.CursorColor,
		X:         pos.X,
		Y:         pos.Y,
	})
}

// relayToOthers 原样转发 draw-start / draw-move (仅转发，不持久化)。
func (h *Hub) relayToOthers(client *Client, env *Envelope) {
	if !client.session.Joined() {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.broadcastRaw(client.session.RoomID, client.SessionID(), raw)
}

// handleDrawEnd 转发完成的笔画，然后异步持久化。
// 转发先于持久化：其他参与者不等待存储确认。
func (h *Hub) handleDrawEnd(client *Client, env *Envelope) {
	if !client.session.Joined() {
		return
	}
	roomID := client.session.RoomID
	h.relayToOthers(client, env)

	payload := env.Data
	go h.persistEvent(roomID, domain.EventKindStroke, payload)
}

// handleClearCanvas 向整个房间 (含发送者) 广播清空，然后异步持久化。
func (h *Hub) handleClearCanvas(client *Client) {
	if !client.session.Joined() {
		return
	}
	roomID := client.session.RoomID

	raw, err := json.Marshal(&Envelope{Event: EventClearCanvas})
	if err != nil {
		return
	}
	h.broadcastRaw(roomID, "", raw)

	go h.persistEvent(roomID, domain.EventKindClear, json.RawMessage("{}"))
}

// persistEvent 将事件入队后台持久化。失败只记录，协作不受影响。
func (h *Hub) persistEvent(roomID, kind string, payload json.RawMessage) {
	if err := h.persister.EnqueueAppend(roomID, kind, payload, time.Now().UTC()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"kind":    kind,
		}).Error("Failed to enqueue history append, event will be missing from replay")
	}
}

// --- 快照投递 ---

// fetchRoomData 在独立 goroutine 中获取房间历史，编码后交回循环投递。
// 存储调用不阻塞其他房间的事件转发。
func (h *Hub) fetchRoomData(client *Client, roomID string) {
	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": client.SessionID(),
		"room_id":    roomID,
	})

	ctx := context.Background()
	if _, err := h.history.EnsureRoom(ctx, roomID); err != nil {
		logCtx.WithError(err).Error("Failed to ensure room for snapshot")
		h.queueError(client, "Failed to load board history")
		return
	}
	events, err := h.history.Replay(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to replay room history for snapshot")
		h.queueError(client, "Failed to load board history")
		return
	}

	raw, err := encodeEnvelope(EventRoomData, domain.WireHistory(events))
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal room-data snapshot")
		return
	}
	// 经循环投递：只有 Run goroutine 向 client.send 写入
	h.queue(hubMessage{kind: "deliver", client: client, raw: raw})
	logCtx.WithField("history_len", len(events)).Debug("Room snapshot queued for delivery")
}

func (h *Hub) queueError(client *Client, message string) {
	raw, err := encodeEnvelope(EventError, message)
	if err != nil {
		return
	}
	h.queue(hubMessage{kind: "deliver", client: client, raw: raw})
}

// deliver 在循环内把已编码的消息发给仍在线的客户端。
func (h *Hub) deliver(client *Client, raw []byte) {
	if current, ok := h.clients[client.SessionID()]; !ok || current != client {
		// 客户端已在获取快照期间断开
		return
	}
	client.trySend(raw)
}

// --- 广播原语 ---

// broadcastUserCount 向房间所有成员广播当前人数。
func (h *Hub) broadcastUserCount(roomID string) {
	count := h.registry.MemberCount(roomID)
	h.broadcastEvent(roomID, "", EventUserCount, count)
}

// broadcastEvent 编码并发送事件；senderID 非空时排除该成员。
func (h *Hub) broadcastEvent(roomID, senderID, event string, data interface{}) {
	raw, err := encodeEnvelope(event, data)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal broadcast payload")
		return
	}
	h.broadcastRaw(roomID, senderID, raw)
}

// broadcastRaw 将已编码的消息发给房间内所有成员 (可排除发送者)。
// 投递是尽力而为：通道已满或已关闭的客户端被静默跳过。
func (h *Hub) broadcastRaw(roomID, excludeSessionID string, raw []byte) {
	for _, sessionID := range h.registry.Members(roomID) {
		if sessionID == excludeSessionID {
			continue
		}
		client, ok := h.clients[sessionID]
		if !ok {
			continue
		}
		client.trySend(raw)
	}
}

func (h *Hub) sendError(client *Client, message string) {
	raw, err := encodeEnvelope(EventError, message)
	if err != nil {
		return
	}
	client.trySend(raw)
}

func encodeEnvelope(event string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		rawData = encoded
	}
	return json.Marshal(&Envelope{Event: event, Data: rawData})
}
