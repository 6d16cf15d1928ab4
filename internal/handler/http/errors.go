package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/service"
)

// HandleServiceError 把 Service 层的业务错误映射为 HTTP 状态码。
func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidRoomID) {
		ErrorResponse(c, http.StatusBadRequest, "Room ID must be 6-8 characters")
	} else if errors.Is(err, service.ErrRoomNotFound) {
		ErrorResponse(c, http.StatusNotFound, "Room not found")
	} else if errors.Is(err, service.ErrStoreUnavailable) {
		ErrorResponse(c, http.StatusServiceUnavailable, "Server error")
	} else {
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
