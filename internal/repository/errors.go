package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示插入的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrStoreUnavailable 表示后端存储不可达或操作失败
	ErrStoreUnavailable = errors.New("repository: store unavailable")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
)
