package services

import (
	"context"
	"testing"
	"time"

	"codemeet/internal/core/domain"
	redisrepo "codemeet/internal/infrastructure/repositories/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Two gateway processes on one Redis keep separate rooms, so neither prunes
// the other's peers as stale.
func TestRoomRegistry_RedisRoomsStayWithTheirProcess(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zap.NewNop().Sugar()
	ctx := context.Background()

	gateway := func(instance string, peers ...domain.PeerID) (*fakeNotifier, *RoomRegistry, *videoFixture) {
		notifier := newFakeNotifier(peers...)
		registry := NewRoomRegistry(redisrepo.NewRedisRoomStore(client, "test:", instance, time.Minute), logger)
		return notifier, registry, &videoFixture{
			notifier: notifier,
			registry: registry,
			metrics:  newCountingMetrics(),
			video:    NewVideoCoordinator(registry, notifier, newCountingMetrics(), logger),
		}
	}
	notifierA, registryA, a := gateway("gw-a", "P1")
	notifierB, registryB, b := gateway("gw-b", "P2")

	a.join(t, "P1", "R1")
	b.join(t, "P2", "R1")

	roomA := registryA.VideoRoom(ctx, "R1")
	assert.Equal(t, []domain.PeerID{"P1"}, roomA.Members)
	assert.True(t, roomA.IsHost("P1"))

	roomB := registryB.VideoRoom(ctx, "R1")
	assert.Equal(t, []domain.PeerID{"P2"}, roomB.Members)
	assert.True(t, roomB.IsHost("P2"))

	assert.NotContains(t, notifierA.events("P1"), domain.EventUserDisconnected)
	assert.NotContains(t, notifierA.events("P1"), domain.EventNewHostAssigned)
	assert.Equal(t, []string{domain.EventHostAssigned, domain.EventExistingUsers}, notifierB.events("P2"))

	rooms := registryA.ListVideoRooms(ctx)
	require.Len(t, rooms, 1)
	assert.Equal(t, []domain.PeerID{"P1"}, rooms[0].Members)
}
