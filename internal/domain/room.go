// Package domain 定义了应用程序中使用的数据结构 (数据库模型与会话状态)。
package domain

import "time"

// Room 表示一个共享画板房间 (持久化实体)。
// RoomID 是对外的自然键 (6-8 位大写字母/数字)，数据库主键仅内部使用。
type Room struct {
	ID           uint      `gorm:"primaryKey"`                              // 内部主键
	RoomID       string    `gorm:"uniqueIndex:idx_room_id;size:16;not null"` // 对外房间标识
	CreatedAt    time.Time `gorm:"autoCreateTime"`                          // 房间创建时间 (GORM 自动填充)
	LastActivity time.Time `gorm:"index;not null"`                          // 最后活跃时间，每次加入/持久化事件时刷新
}
