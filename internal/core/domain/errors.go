package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrPeerNotFound      = errors.New("peer not found")
	ErrInvalidSessionKey = errors.New("invalid session key")
	ErrInvalidRoomID     = errors.New("invalid room id")
	ErrNotInRoom         = errors.New("peer is not in a room")
)
