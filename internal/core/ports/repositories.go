package ports

import (
	"context"

	"codemeet/internal/core/domain"
)

// SessionStore is the durable home of collaboration sessions. It is shared
// across processes and must tolerate concurrent last-writer-wins updates to
// the same key.
type SessionStore interface {
	// FindSession returns domain.ErrSessionNotFound when the key is unknown.
	FindSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)
	// CreateSession stores an empty session. If another writer created the
	// key first, the existing session is returned.
	CreateSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)
	UpdateSession(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error
}

// RoomStore backs the room registry.
type RoomStore interface {
	LoadVideoRoom(ctx context.Context, id domain.RoomID) (domain.VideoRoom, error)
	SaveVideoRoom(ctx context.Context, room domain.VideoRoom) error
	DeleteVideoRoom(ctx context.Context, id domain.RoomID) error
	ListVideoRooms(ctx context.Context) ([]domain.VideoRoom, error)

	LoadCollabRoom(ctx context.Context, key domain.SessionKey) (domain.CollabRoom, error)
	SaveCollabRoom(ctx context.Context, room domain.CollabRoom) error
	DeleteCollabRoom(ctx context.Context, key domain.SessionKey) error
}
