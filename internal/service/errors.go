package service

import "errors"

var (
	ErrInvalidRoomID    = errors.New("room ID must be 6-8 characters")
	ErrRoomNotFound     = errors.New("room not found")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrInternalServer   = errors.New("internal server error")
)
