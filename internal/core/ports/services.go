package ports

import (
	"context"

	"codemeet/internal/core/domain"
)

// Notifier delivers events to live connections. Send never blocks; it
// reports false when the peer is gone or its queue is full.
type Notifier interface {
	Send(to domain.PeerID, event string, payload interface{}) bool
	IsConnected(id domain.PeerID) bool
}

// TaskPoster runs fn on the dispatch loop.
type TaskPoster interface {
	Post(fn func(ctx context.Context)) bool
}

// SessionWriter runs store operations off the dispatch loop. Operations on
// the same key run in submission order.
type SessionWriter interface {
	// Load finds or creates the session and calls done from a writer
	// goroutine.
	Load(key domain.SessionKey, done func(*domain.Session, error))
	// Update persists best effort. Failures are logged, never returned.
	Update(key domain.SessionKey, update domain.SessionUpdate)
}

// VideoCoordinator handles call rooms. Every method must be called from the
// dispatch loop.
type VideoCoordinator interface {
	Join(ctx context.Context, peer domain.PeerID, room domain.RoomID, user domain.UserID) error
	Relay(ctx context.Context, from domain.PeerID, signal domain.Signal) error
	HostDisconnected(ctx context.Context, peer domain.PeerID, room domain.RoomID) error
	HostFallback(ctx context.Context, peer domain.PeerID, room domain.RoomID, newHost domain.PeerID) error
	CheckHostStatus(ctx context.Context, peer domain.PeerID, room domain.RoomID) error
	RoomUsers(ctx context.Context, peer domain.PeerID, room domain.RoomID) error
	Disconnect(ctx context.Context, peer domain.PeerID)
	Snapshot(ctx context.Context, room domain.RoomID) (domain.VideoRoom, error)
}

// CollabManager handles collaboration rooms. Every method must be called
// from the dispatch loop.
type CollabManager interface {
	Join(ctx context.Context, peer domain.PeerID, key domain.SessionKey) error
	CodeChange(ctx context.Context, peer domain.PeerID, code string) error
	WhiteboardChange(ctx context.Context, peer domain.PeerID, whiteboard domain.Whiteboard) error
	Disconnect(ctx context.Context, peer domain.PeerID)
}
