// Package registry 维护每个房间的在线成员集合和光标颜色槽位。
package registry

import (
	"errors"
	"sync"
)

// MaxRoomMembers 单个房间允许的最大同时在线人数。
const MaxRoomMembers = 4

// CursorPalette 固定的 4 色光标调色板，按槽位下标分配。
var CursorPalette = [MaxRoomMembers]string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4"}

// ErrRoomFull 表示房间成员数已达上限。
var ErrRoomFull = errors.New("registry: room is full")

// Admission 是一次成功准入的结果。
type Admission struct {
	Color       string // 分配的光标颜色
	ColorIndex  int    // 调色板槽位下标
	MemberCount int    // 准入后的成员数
}

// roomEntry 单个房间的成员状态。成员集为空时整个条目被丢弃，
// 颜色槽位状态随之重置。
type roomEntry struct {
	members map[string]int     // sessionID -> 颜色槽位下标
	slots   [MaxRoomMembers]bool // 槽位占用标记
}

// Registry 跟踪所有房间的在线成员。
// 所有方法并发安全；Hub 事件循环之外 (HTTP 层、测试) 也可以读取计数。
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*roomEntry
}

// New 创建一个空的 Registry。
func New() *Registry {
	return &Registry{rooms: make(map[string]*roomEntry)}
}

// Admit 尝试将 sessionID 加入 roomID。
// 房间满时返回 ErrRoomFull 且不修改任何状态。
// 成功时分配下标最小的空闲颜色槽位；该颜色在成员离开前保持不变，
// 绝不根据当前成员集顺序重新推导。
func (r *Registry) Admit(roomID, sessionID string) (Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		entry = &roomEntry{members: make(map[string]int)}
		r.rooms[roomID] = entry
	}

	// 重复准入同一会话视为无操作，返回已有分配
	if idx, exists := entry.members[sessionID]; exists {
		return Admission{Color: CursorPalette[idx], ColorIndex: idx, MemberCount: len(entry.members)}, nil
	}

	if len(entry.members) >= MaxRoomMembers {
		// 新建条目不可能满；满房间必然已存在
		return Admission{}, ErrRoomFull
	}

	idx := -1
	for i, used := range entry.slots {
		if !used {
			idx = i
			break
		}
	}
	// 成员数 < MaxRoomMembers 时必有空闲槽位

	entry.slots[idx] = true
	entry.members[sessionID] = idx

	return Admission{
		Color:       CursorPalette[idx],
		ColorIndex:  idx,
		MemberCount: len(entry.members),
	}, nil
}

// Remove 将 sessionID 移出 roomID，返回移除后的成员数。
// 幂等：移除不存在的成员是无操作。成员集变空时丢弃整个房间条目，
// 下一个加入者重新从槽位 0 开始分配。
func (r *Registry) Remove(roomID, sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	idx, exists := entry.members[sessionID]
	if !exists {
		return len(entry.members)
	}
	delete(entry.members, sessionID)
	entry.slots[idx] = false
	if len(entry.members) == 0 {
		delete(r.rooms, roomID)
		return 0
	}
	return len(entry.members)
}

// MemberCount 返回房间当前成员数，房间不存在时为 0。
func (r *Registry) MemberCount(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	return len(entry.members)
}

// Members 返回房间当前成员 sessionID 的快照。
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(entry.members))
	for id := range entry.members {
		ids = append(ids, id)
	}
	return ids
}
