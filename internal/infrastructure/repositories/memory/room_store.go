package memory

import (
	"context"
	"sort"
	"sync"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
)

// MemoryRoomStore keeps room state in process. Rooms are stored by value so
// callers never share member slices with the store.
type MemoryRoomStore struct {
	video  map[domain.RoomID]domain.VideoRoom
	collab map[domain.SessionKey]domain.CollabRoom
	mu     sync.RWMutex
}

func NewMemoryRoomStore() ports.RoomStore {
	return &MemoryRoomStore{
		video:  make(map[domain.RoomID]domain.VideoRoom),
		collab: make(map[domain.SessionKey]domain.CollabRoom),
	}
}

func (r *MemoryRoomStore) LoadVideoRoom(ctx context.Context, id domain.RoomID) (domain.VideoRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.video[id]
	if !exists {
		return domain.VideoRoom{}, domain.ErrRoomNotFound
	}
	return copyVideoRoom(room), nil
}

func (r *MemoryRoomStore) SaveVideoRoom(ctx context.Context, room domain.VideoRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.video[room.ID] = copyVideoRoom(room)
	return nil
}

func (r *MemoryRoomStore) DeleteVideoRoom(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.video, id)
	return nil
}

func (r *MemoryRoomStore) ListVideoRooms(ctx context.Context) ([]domain.VideoRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]domain.VideoRoom, 0, len(r.video))
	for _, room := range r.video {
		rooms = append(rooms, copyVideoRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *MemoryRoomStore) LoadCollabRoom(ctx context.Context, key domain.SessionKey) (domain.CollabRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.collab[key]
	if !exists {
		return domain.CollabRoom{}, domain.ErrRoomNotFound
	}
	return domain.CollabRoom{Key: room.Key, Members: copyPeers(room.Members)}, nil
}

func (r *MemoryRoomStore) SaveCollabRoom(ctx context.Context, room domain.CollabRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collab[room.Key] = domain.CollabRoom{Key: room.Key, Members: copyPeers(room.Members)}
	return nil
}

func (r *MemoryRoomStore) DeleteCollabRoom(ctx context.Context, key domain.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.collab, key)
	return nil
}

func copyVideoRoom(room domain.VideoRoom) domain.VideoRoom {
	return domain.VideoRoom{ID: room.ID, Members: copyPeers(room.Members), Host: room.Host}
}

func copyPeers(peers []domain.PeerID) []domain.PeerID {
	out := make([]domain.PeerID, len(peers))
	copy(out, peers)
	return out
}
