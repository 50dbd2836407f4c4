package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codemeet/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() domain.SessionKey {
	return domain.SessionKey{AssessmentID: "a1", CandidateID: "c1", QuestionID: "q1"}
}

func TestMemorySessionStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	_, err := store.FindSession(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	first, err := store.CreateSession(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "", first.Code)
	assert.NotNil(t, first.Whiteboard)

	code := "print(1)"
	require.NoError(t, store.UpdateSession(ctx, testKey(), domain.SessionUpdate{Code: &code}))

	again, err := store.CreateSession(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, code, again.Code)
}

func TestMemorySessionStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	err := store.UpdateSession(ctx, testKey(), domain.CodeUpdate("x", time.Now()))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = store.CreateSession(ctx, testKey())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.UpdateSession(ctx, testKey(), domain.CodeUpdate("héllo", now)))
	wb := domain.Whiteboard{json.RawMessage(`{"t":"line"}`), json.RawMessage(`{"t":"rect"}`)}
	require.NoError(t, store.UpdateSession(ctx, testKey(), domain.WhiteboardUpdate(wb, now)))

	got, err := store.FindSession(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "héllo", got.Code)
	require.Len(t, got.CodeEvents, 1)
	assert.Equal(t, 5, got.CodeEvents[0].Length)
	require.Len(t, got.Whiteboard, 2)
	require.Len(t, got.WhiteboardEvents, 1)
	assert.Equal(t, 2, got.WhiteboardEvents[0].Count)
}

func TestMemorySessionStore_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	_, err := store.CreateSession(ctx, testKey())
	require.NoError(t, err)

	got, err := store.FindSession(ctx, testKey())
	require.NoError(t, err)
	got.Code = "mutated"

	again, err := store.FindSession(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "", again.Code)
}

func TestMemoryRoomStore_VideoRooms(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRoomStore()

	_, err := store.LoadVideoRoom(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	room, _ := domain.NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")
	require.NoError(t, store.SaveVideoRoom(ctx, room))

	other, _ := domain.NewVideoRoom("R0").Join("p3")
	require.NoError(t, store.SaveVideoRoom(ctx, other))

	got, err := store.LoadVideoRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, []domain.PeerID{"p1", "p2"}, got.Members)
	assert.True(t, got.IsHost("p1"))

	got.Members[0] = "tampered"
	again, err := store.LoadVideoRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.PeerID("p1"), again.Members[0])

	rooms, err := store.ListVideoRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, domain.RoomID("R0"), rooms[0].ID)

	require.NoError(t, store.DeleteVideoRoom(ctx, "R1"))
	_, err = store.LoadVideoRoom(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryRoomStore_CollabRooms(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRoomStore()

	room := domain.NewCollabRoom(testKey()).Add("p1").Add("p2")
	require.NoError(t, store.SaveCollabRoom(ctx, room))

	got, err := store.LoadCollabRoom(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, []domain.PeerID{"p1", "p2"}, got.Members)

	require.NoError(t, store.DeleteCollabRoom(ctx, testKey()))
	_, err = store.LoadCollabRoom(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
