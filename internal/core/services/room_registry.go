package services

import (
	"context"
	"errors"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"go.uber.org/zap"
)

// RoomRegistry holds the room and host tables of one process. It is owned by
// the dispatch loop and is not safe for concurrent use.
type RoomRegistry struct {
	store  ports.RoomStore
	logger *zap.SugaredLogger

	videoByPeer  map[domain.PeerID]domain.RoomID
	collabByPeer map[domain.PeerID]domain.SessionKey
	users        map[domain.PeerID]domain.UserID
}

func NewRoomRegistry(store ports.RoomStore, logger *zap.SugaredLogger) *RoomRegistry {
	return &RoomRegistry{
		store:        store,
		logger:       logger,
		videoByPeer:  make(map[domain.PeerID]domain.RoomID),
		collabByPeer: make(map[domain.PeerID]domain.SessionKey),
		users:        make(map[domain.PeerID]domain.UserID),
	}
}

// VideoRoom returns the room or a fresh Empty one.
func (r *RoomRegistry) VideoRoom(ctx context.Context, id domain.RoomID) domain.VideoRoom {
	room, err := r.store.LoadVideoRoom(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			r.logger.Errorw("failed to load video room", "room_id", id, "error", err)
		}
		return domain.NewVideoRoom(id)
	}
	return room
}

// SaveVideoRoom stores the room, or deletes it once it is empty.
func (r *RoomRegistry) SaveVideoRoom(ctx context.Context, room domain.VideoRoom) {
	var err error
	if room.IsEmpty() {
		err = r.store.DeleteVideoRoom(ctx, room.ID)
	} else {
		err = r.store.SaveVideoRoom(ctx, room)
	}
	if err != nil {
		r.logger.Errorw("failed to store video room", "room_id", room.ID, "error", err)
	}
}

func (r *RoomRegistry) ListVideoRooms(ctx context.Context) []domain.VideoRoom {
	rooms, err := r.store.ListVideoRooms(ctx)
	if err != nil {
		r.logger.Errorw("failed to list video rooms", "error", err)
		return nil
	}
	return rooms
}

func (r *RoomRegistry) CollabRoom(ctx context.Context, key domain.SessionKey) domain.CollabRoom {
	room, err := r.store.LoadCollabRoom(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			r.logger.Errorw("failed to load collab room", "session_key", key.String(), "error", err)
		}
		return domain.NewCollabRoom(key)
	}
	return room
}

func (r *RoomRegistry) SaveCollabRoom(ctx context.Context, room domain.CollabRoom) {
	var err error
	if room.IsEmpty() {
		err = r.store.DeleteCollabRoom(ctx, room.Key)
	} else {
		err = r.store.SaveCollabRoom(ctx, room)
	}
	if err != nil {
		r.logger.Errorw("failed to store collab room", "session_key", room.Key.String(), "error", err)
	}
}

func (r *RoomRegistry) TrackVideo(peer domain.PeerID, id domain.RoomID) {
	r.videoByPeer[peer] = id
}

// UntrackVideo forgets peer's video room if it is id.
func (r *RoomRegistry) UntrackVideo(peer domain.PeerID, id domain.RoomID) {
	if current, ok := r.videoByPeer[peer]; ok && current == id {
		delete(r.videoByPeer, peer)
	}
}

func (r *RoomRegistry) VideoRoomOf(peer domain.PeerID) (domain.RoomID, bool) {
	id, ok := r.videoByPeer[peer]
	return id, ok
}

func (r *RoomRegistry) TrackCollab(peer domain.PeerID, key domain.SessionKey) {
	r.collabByPeer[peer] = key
}

func (r *RoomRegistry) UntrackCollab(peer domain.PeerID, key domain.SessionKey) {
	if current, ok := r.collabByPeer[peer]; ok && current == key {
		delete(r.collabByPeer, peer)
	}
}

func (r *RoomRegistry) CollabRoomOf(peer domain.PeerID) (domain.SessionKey, bool) {
	key, ok := r.collabByPeer[peer]
	return key, ok
}

// SetUser tags peer with an application user id.
func (r *RoomRegistry) SetUser(peer domain.PeerID, user domain.UserID) {
	if user == "" {
		return
	}
	r.users[peer] = user
}

func (r *RoomRegistry) User(peer domain.PeerID) domain.UserID {
	return r.users[peer]
}

func (r *RoomRegistry) ForgetUser(peer domain.PeerID) {
	delete(r.users, peer)
}
