package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/repository"
)

// 房间标识：6-8 位大写字母或数字 (校验前先统一转为大写)
var roomIDPattern = regexp.MustCompile(`^[A-Z0-9]{6,8}$`)

// RoomService 负责房间查找/创建相关的业务逻辑 (REST 侧)。
// 实时的成员准入不在这里，由 Hub 和 Registry 处理。
type RoomService struct {
	roomRepo repository.RoomRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo}
}

// NormalizeRoomID 规范化并校验房间标识。
// 前后空白被去除，小写字母统一为大写；长度不在 6-8 或包含
// 调色板外字符时返回 ErrInvalidRoomID。
func NormalizeRoomID(raw string) (string, error) {
	roomID := strings.ToUpper(strings.TrimSpace(raw))
	if !roomIDPattern.MatchString(roomID) {
		return "", ErrInvalidRoomID
	}
	return roomID, nil
}

// JoinOrCreate 处理 REST 层的 "加入" 请求：查找或创建房间记录，
// 刷新活跃时间，并返回当前的完整回放序列。
// 这里只做持久记录的 upsert，不影响在线成员集。
func (s *RoomService) JoinOrCreate(ctx context.Context, rawRoomID string) (*domain.Room, []domain.DrawEvent, error) {
	roomID, err := NormalizeRoomID(rawRoomID)
	if err != nil {
		return nil, nil, err
	}
	logCtx := logrus.WithField("room_id", roomID)

	room, err := s.roomRepo.EnsureRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to ensure room in store")
		return nil, nil, ErrStoreUnavailable
	}

	now := time.Now().UTC()
	if err := s.roomRepo.TouchActivity(ctx, roomID, now); err != nil {
		// 活跃时间刷新失败不阻塞加入
		logCtx.WithError(err).Warn("Failed to touch room activity")
	} else {
		room.LastActivity = now
	}

	history, err := s.roomRepo.Replay(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to replay room history")
		return nil, nil, ErrStoreUnavailable
	}

	logCtx.WithField("history_len", len(history)).Info("Room joined or created")
	return room, history, nil
}

// GetRoom 返回房间信息及其完整历史，房间不存在时返回 ErrRoomNotFound。
func (s *RoomService) GetRoom(ctx context.Context, rawRoomID string) (*domain.Room, []domain.DrawEvent, error) {
	roomID, err := NormalizeRoomID(rawRoomID)
	if err != nil {
		return nil, nil, err
	}

	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to find room")
		return nil, nil, ErrStoreUnavailable
	}

	history, err := s.roomRepo.Replay(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to replay room history")
		return nil, nil, ErrStoreUnavailable
	}
	return room, history, nil
}
