package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/internal/infrastructure/middleware"
	"codemeet/internal/infrastructure/repositories/memory"
	"codemeet/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(register func(api gin.IRoutes)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	register(router.Group("/api/v1"))
	return router
}

func get(t *testing.T, router *gin.Engine, path string, v interface{}) int {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if v != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
	}
	return w.Code
}

func TestSessionHandler(t *testing.T) {
	store := memory.NewMemorySessionStore()
	key := domain.SessionKey{AssessmentID: "a1", CandidateID: "c1", QuestionID: "q1"}
	ctx := context.Background()
	_, err := store.CreateSession(ctx, key)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.UpdateSession(ctx, key, domain.CodeUpdate("print(1)", now)))
	require.NoError(t, store.UpdateSession(ctx, key, domain.WhiteboardUpdate(domain.Whiteboard{json.RawMessage(`{"t":"line"}`)}, now)))

	router := newRouter(NewSessionHandler(store).SetupRoutes)

	t.Run("snapshot", func(t *testing.T) {
		var resp sessionResponse
		require.Equal(t, http.StatusOK, get(t, router, "/api/v1/sessions/a1/c1/q1", &resp))
		assert.Equal(t, "print(1)", resp.Code)
		assert.Equal(t, 1, resp.CodeEventCount)
		assert.Equal(t, 1, resp.WhiteboardEventCount)
		require.Len(t, resp.Whiteboard, 1)
	})

	t.Run("events", func(t *testing.T) {
		var resp sessionEventsResponse
		require.Equal(t, http.StatusOK, get(t, router, "/api/v1/sessions/a1/c1/q1/events", &resp))
		require.Len(t, resp.CodeEvents, 1)
		assert.Equal(t, 8, resp.CodeEvents[0].Length)
		require.Len(t, resp.WhiteboardEvents, 1)
		assert.Equal(t, 1, resp.WhiteboardEvents[0].Count)
	})

	t.Run("unknown session", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/sessions/a1/c1/other", nil))
	})
}

type directLoop struct{ err error }

func (l directLoop) Do(ctx context.Context, fn func(ctx context.Context)) error {
	if l.err != nil {
		return l.err
	}
	fn(ctx)
	return nil
}

type snapshotCoordinator struct {
	ports.VideoCoordinator
	rooms map[domain.RoomID]domain.VideoRoom
}

func (s snapshotCoordinator) Snapshot(_ context.Context, id domain.RoomID) (domain.VideoRoom, error) {
	room, ok := s.rooms[id]
	if !ok {
		return domain.NewVideoRoom(id), domain.ErrRoomNotFound
	}
	return room, nil
}

type staticDirectory struct {
	rooms []domain.VideoRoom
	users map[domain.PeerID]domain.UserID
}

func (d staticDirectory) ListVideoRooms(context.Context) []domain.VideoRoom { return d.rooms }

func (d staticDirectory) User(peer domain.PeerID) domain.UserID { return d.users[peer] }

func TestRoomHandler(t *testing.T) {
	room := domain.VideoRoom{ID: "r1", Members: []domain.PeerID{"p1", "p2"}, Host: domain.HostedBy("p1")}
	video := snapshotCoordinator{rooms: map[domain.RoomID]domain.VideoRoom{"r1": room}}
	users := staticDirectory{
		rooms: []domain.VideoRoom{room},
		users: map[domain.PeerID]domain.UserID{"p1": "alice"},
	}

	router := newRouter(NewRoomHandler(directLoop{}, video, users).SetupRoutes)

	var resp roomResponse
	require.Equal(t, http.StatusOK, get(t, router, "/api/v1/rooms/r1", &resp))
	assert.Equal(t, domain.PeerID("p1"), resp.HostID)
	require.Len(t, resp.Members, 2)
	assert.Equal(t, domain.UserID("alice"), resp.Members[0].UserID)
	assert.True(t, resp.Members[0].IsHost)
	assert.False(t, resp.Members[1].IsHost)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/rooms/empty", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/rooms/bad$id", nil))

	var list struct {
		Rooms []roomResponse `json:"rooms"`
		Count int            `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, router, "/api/v1/rooms", &list))
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, domain.RoomID("r1"), list.Rooms[0].RoomID)

	require.Equal(t, http.StatusOK, get(t, newRouter(NewRoomHandler(directLoop{}, video, staticDirectory{}).SetupRoutes), "/api/v1/rooms", &list))
	assert.Zero(t, list.Count)
	assert.NotNil(t, list.Rooms)

	stopped := newRouter(NewRoomHandler(directLoop{err: context.Canceled}, video, users).SetupRoutes)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, stopped, "/api/v1/rooms/r1", nil))
}

func TestICEHandler(t *testing.T) {
	router := newRouter(NewICEHandler([]config.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "p"},
	}).SetupRoutes)

	var resp struct {
		ICEServers []struct {
			URLs       []string `json:"urls"`
			Username   string   `json:"username"`
			Credential string   `json:"credential"`
		} `json:"iceServers"`
	}
	require.Equal(t, http.StatusOK, get(t, router, "/api/v1/ice-servers", &resp))
	require.Len(t, resp.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, resp.ICEServers[0].URLs)
	assert.Empty(t, resp.ICEServers[0].Username)
	assert.Equal(t, "u", resp.ICEServers[1].Username)
	assert.Equal(t, "p", resp.ICEServers[1].Credential)
}
