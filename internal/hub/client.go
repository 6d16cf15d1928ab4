package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// 会话状态 (所在房间、光标颜色) 仅由 Hub 的事件循环修改；
// send 通道也只由循环写入、注销时由循环关闭。
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *domain.Session
	send    chan []byte
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		session: &domain.Session{SessionID: sessionID},
		send:    make(chan []byte, 256),
	}
}

// SessionID 返回此连接的会话标识。
func (c *Client) SessionID() string { return c.session.SessionID }

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// CloseConn 关闭底层 WebSocket 连接。
func (c *Client) CloseConn() { c.conn.Close() }

// trySend 非阻塞地把消息放入发送队列。
// 队列满视为客户端跟不上，消息被丢弃 (尽力而为投递)。
func (c *Client) trySend(raw []byte) {
	select {
	case c.send <- raw:
	default:
		logrus.WithField("session_id", c.SessionID()).Warn("Client send channel full, dropping message")
	}
}

// ReadPump 将 WebSocket 消息泵入 Hub 的处理通道。
// 连接断开时请求注销 (等价于 leave + 会话销毁)。
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.messageChan <- hubMessage{kind: "unregister", client: c}:
		case <-time.After(1 * time.Second):
			logrus.WithField("session_id", c.SessionID()).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithField("session_id", c.SessionID()).Info("readPump exited, unregister requested")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("session_id", c.SessionID())
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			logrus.WithField("session_id", c.SessionID()).Debug("Malformed envelope, dropping message")
			continue
		}

		// 非阻塞入队：Hub 过载时丢弃 (单发送者的相对顺序仍由通道保证)
		select {
		case c.hub.messageChan <- hubMessage{kind: "event", client: c, envelope: &env}:
		default:
			logrus.WithField("session_id", c.SessionID()).Warn("Hub message channel full, dropping client event")
		}
	}
}

// WritePump 将 send 通道里的消息泵到 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("session_id", c.SessionID()).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 在注销时关闭了 send 通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("session_id", c.SessionID()).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("session_id", c.SessionID()).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
