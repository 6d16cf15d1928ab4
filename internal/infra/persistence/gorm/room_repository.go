package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByRoomID 实现根据外部房间标识查找房间
func (r *GormRoomRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by room_id '%s': %w", roomID, err)
	}
	return &room, nil
}

// EnsureRoom 实现查找或创建房间。
// 并发的首次加入可能同时尝试创建；唯一索引冲突时回退到查找。
func (r *GormRoomRepository) EnsureRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := r.FindByRoomID(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := &domain.Room{RoomID: roomID, LastActivity: now}
	createErr := r.db.WithContext(ctx).Create(fresh).Error
	if createErr != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(createErr, &mysqlErr) && mysqlErr.Number == 1062 {
			// 另一个连接抢先创建了同名房间，查回那条记录
			return r.FindByRoomID(ctx, roomID)
		}
		return nil, fmt.Errorf("gorm: create room '%s': %w", roomID, createErr)
	}
	return fresh, nil
}

// TouchActivity 实现刷新房间的最后活跃时间
func (r *GormRoomRepository) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("room_id = ?", roomID).
		Update("last_activity", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch activity for room '%s': %w", roomID, err)
	}
	return nil
}

// AppendEvent 实现向房间历史追加事件并刷新 LastActivity。
// 事件行的自增主键即追加顺序。
func (r *GormRoomRepository) AppendEvent(ctx context.Context, roomID string, event *domain.DrawEvent) error {
	event.RoomID = roomID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Room{}).
			Where("room_id = ?", roomID).
			Update("last_activity", event.Timestamp).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: append %s event to room '%s': %w", event.Kind, roomID, err)
	}
	return nil
}

// Replay 实现按追加顺序读取房间的完整历史
func (r *GormRoomRepository) Replay(ctx context.Context, roomID string) ([]domain.DrawEvent, error) {
	var events []domain.DrawEvent
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: replay history for room '%s': %w", roomID, err)
	}
	return events, nil
}
