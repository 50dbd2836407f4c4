package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// instancePrefix scopes room keys to one gateway process. Room membership is
// only meaningful to the hub that owns the connections.
func instancePrefix(prefix, instance string) string {
	return prefix + "gw:" + url.QueryEscape(instance) + ":"
}

func videoIndexKey(prefix string) string {
	return prefix + "video:rooms"
}

func videoRoomKey(prefix, id string) string {
	return prefix + "video:room:" + id
}

type videoRoomRecord struct {
	ID      domain.RoomID   `json:"id"`
	Members []domain.PeerID `json:"members"`
	Host    domain.PeerID   `json:"host,omitempty"`
	Hosted  bool            `json:"hosted"`
}

func toVideoRecord(room domain.VideoRoom) videoRoomRecord {
	host, hosted := room.Host.Host()
	return videoRoomRecord{ID: room.ID, Members: room.Members, Host: host, Hosted: hosted}
}

func (r videoRoomRecord) room() domain.VideoRoom {
	room := domain.VideoRoom{ID: r.ID, Members: r.Members}
	if r.Hosted {
		room.Host = domain.HostedBy(r.Host)
	}
	return room
}

type collabRoomRecord struct {
	Key     domain.SessionKey `json:"key"`
	Members []domain.PeerID   `json:"members"`
}

// RedisRoomStore keeps one gateway process's rooms in Redis, under a key
// space of their own. It does not share rooms between processes. Every save
// refreshes the room's TTL so rooms of a crashed process expire.
type RedisRoomStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRoomStore(client *redis.Client, prefix, instance string, ttl time.Duration) ports.RoomStore {
	return &RedisRoomStore{client: client, prefix: instancePrefix(prefix, instance), ttl: ttl}
}

func (r *RedisRoomStore) collabRoomKey(key domain.SessionKey) string {
	return r.prefix + "collab:room:" + sessionField(key)
}

func (r *RedisRoomStore) LoadVideoRoom(ctx context.Context, id domain.RoomID) (domain.VideoRoom, error) {
	data, err := r.client.Get(ctx, videoRoomKey(r.prefix, string(id))).Bytes()
	if err == redis.Nil {
		return domain.VideoRoom{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.VideoRoom{}, fmt.Errorf("failed to get video room from Redis: %w", err)
	}

	var record videoRoomRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.VideoRoom{}, fmt.Errorf("failed to unmarshal video room: %w", err)
	}
	return record.room(), nil
}

func (r *RedisRoomStore) SaveVideoRoom(ctx context.Context, room domain.VideoRoom) error {
	data, err := json.Marshal(toVideoRecord(room))
	if err != nil {
		return fmt.Errorf("failed to marshal video room: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, videoRoomKey(r.prefix, string(room.ID)), data, r.ttl)
		pipe.SAdd(ctx, videoIndexKey(r.prefix), string(room.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save video room in Redis: %w", err)
	}
	return nil
}

func (r *RedisRoomStore) DeleteVideoRoom(ctx context.Context, id domain.RoomID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, videoRoomKey(r.prefix, string(id)))
		pipe.SRem(ctx, videoIndexKey(r.prefix), string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete video room from Redis: %w", err)
	}
	return nil
}

// ListVideoRooms returns the indexed rooms sorted by id. Index entries whose
// document has expired are pruned.
func (r *RedisRoomStore) ListVideoRooms(ctx context.Context) ([]domain.VideoRoom, error) {
	ids, err := r.client.SMembers(ctx, videoIndexKey(r.prefix)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list video rooms from Redis: %w", err)
	}
	if len(ids) == 0 {
		return []domain.VideoRoom{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = videoRoomKey(r.prefix, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get video rooms from Redis: %w", err)
	}

	rooms := make([]domain.VideoRoom, 0, len(values))
	var stale []interface{}
	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var record videoRoomRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		rooms = append(rooms, record.room())
	}
	if len(stale) > 0 {
		r.client.SRem(ctx, videoIndexKey(r.prefix), stale...)
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *RedisRoomStore) LoadCollabRoom(ctx context.Context, key domain.SessionKey) (domain.CollabRoom, error) {
	data, err := r.client.Get(ctx, r.collabRoomKey(key)).Bytes()
	if err == redis.Nil {
		return domain.CollabRoom{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.CollabRoom{}, fmt.Errorf("failed to get collab room from Redis: %w", err)
	}

	var record collabRoomRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.CollabRoom{}, fmt.Errorf("failed to unmarshal collab room: %w", err)
	}
	return domain.CollabRoom{Key: record.Key, Members: record.Members}, nil
}

func (r *RedisRoomStore) SaveCollabRoom(ctx context.Context, room domain.CollabRoom) error {
	data, err := json.Marshal(collabRoomRecord{Key: room.Key, Members: room.Members})
	if err != nil {
		return fmt.Errorf("failed to marshal collab room: %w", err)
	}
	if err := r.client.Set(ctx, r.collabRoomKey(room.Key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save collab room in Redis: %w", err)
	}
	return nil
}

func (r *RedisRoomStore) DeleteCollabRoom(ctx context.Context, key domain.SessionKey) error {
	if err := r.client.Del(ctx, r.collabRoomKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete collab room from Redis: %w", err)
	}
	return nil
}
