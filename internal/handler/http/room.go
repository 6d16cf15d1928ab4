package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService // 依赖 RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}

// RoomPayload 定义响应中的房间信息
type RoomPayload struct {
	RoomID       string             `json:"roomId"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity time.Time          `json:"lastActivity"`
	History      []domain.WireEvent `json:"history"`
}

// JoinRoomResponse 定义加入房间成功的响应结构体
type JoinRoomResponse struct {
	Success bool        `json:"success"`
	Room    RoomPayload `json:"room"`
}

func roomPayload(room *domain.Room, history []domain.DrawEvent) RoomPayload {
	return RoomPayload{
		RoomID:       room.RoomID,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
		History:      domain.WireHistory(history),
	}
}

// JoinRoom 处理 REST 侧的加入请求：查找或创建房间并返回完整历史。
// 实时成员准入 (人数上限/颜色分配) 发生在 WebSocket 连接的 join-room 阶段。
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	// 1. 绑定请求体中的房间标识
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: roomId is required")
		return
	}
	logCtx := logrus.WithField("room_id", req.RoomID)

	// 2. 调用 Service 层查找或创建房间
	room, history, err := h.roomService.JoinOrCreate(c.Request.Context(), req.RoomID)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.JoinRoom: Failed to join room via service")
		HandleServiceError(c, err)
		return
	}

	// 3. 成功响应
	logCtx.WithField("history_len", len(history)).Info("Handler.JoinRoom: Room joined successfully")
	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Success: true,
		Room:    roomPayload(room, history),
	})
}

// GetRoom 处理查询房间信息的请求，房间不存在时返回 404。
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	logCtx := logrus.WithField("room_id", roomID)

	room, history, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.GetRoom: Failed to get room via service")
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Success: true,
		Room:    roomPayload(room, history),
	})
}
