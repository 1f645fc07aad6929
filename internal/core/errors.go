package core

import "errors"

var (
	ErrNotRegistered = errors.New("connection not registered")
	ErrRoomNotFound  = errors.New("room not found")
	ErrEmptyRoomName = errors.New("empty room name")
	ErrRoomNameLong  = errors.New("room name too long")
)
