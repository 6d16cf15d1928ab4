package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/hub"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader // WebSocket 升级器
	hub      *hub.Hub           // 依赖 Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
	}
}

// HandleConnection 处理 WebSocket 连接请求 (GET /ws)。
// 连接建立时还不属于任何房间，房间加入通过 join-room 事件完成。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 方法会自动发送 HTTP 错误响应，所以这里只需要记录日志
		logrus.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	// 2. 为连接分配会话标识并创建 Client
	sessionID := uuid.NewString()
	logCtx := logrus.WithField("session_id", sessionID)
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, sessionID)

	// 3. 注册到 Hub，通道满则拒绝连接
	if !h.hub.Register(client) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	// 4. 启动客户端的读写 Goroutine，后续通信由 pump 处理
	go client.Run()
}
