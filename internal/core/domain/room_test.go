package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allLive(PeerID) bool { return true }

func TestHostState_ZeroValueIsEmpty(t *testing.T) {
	var s HostState
	assert.True(t, s.IsEmpty())
	_, ok := s.Host()
	assert.False(t, ok)
	assert.Equal(t, "empty", s.String())

	h := HostedBy("p1")
	id, ok := h.Host()
	assert.True(t, ok)
	assert.Equal(t, PeerID("p1"), id)
	assert.Equal(t, "hosted(p1)", h.String())
}

func TestVideoRoom_FirstJoinerBecomesHost(t *testing.T) {
	room := NewVideoRoom("R1")

	room, res := room.Join("p1")
	assert.True(t, res.BecameHost)
	assert.Equal(t, PeerID("p1"), res.Host)

	room, res = room.Join("p2")
	assert.False(t, res.BecameHost)
	assert.Equal(t, PeerID("p1"), res.Host)

	assert.Equal(t, []PeerID{"p1", "p2"}, room.Members)
	assert.True(t, room.IsHost("p1"))
	assert.True(t, room.Valid())
}

func TestVideoRoom_JoinIsIdempotent(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")

	again, res := room.Join("p2")
	assert.True(t, res.AlreadyMember)
	assert.False(t, res.BecameHost)
	assert.Equal(t, room.Members, again.Members)
}

func TestVideoRoom_JoinDoesNotMutateReceiver(t *testing.T) {
	base, _ := NewVideoRoom("R1").Join("p1")
	_, _ = base.Join("p2")
	assert.Equal(t, []PeerID{"p1"}, base.Members)
}

func TestVideoRoom_RemoveLastMemberEmptiesRoom(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")

	room, removed := room.Remove("p1")
	require.True(t, removed)
	assert.True(t, room.IsEmpty())
	assert.True(t, room.Host.IsEmpty())
	assert.True(t, room.Valid())

	_, removed = room.Remove("p1")
	assert.False(t, removed)
}

func TestVideoRoom_ReassignAfterHostLeaves(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")
	room, _ = room.Join("p3")

	room, _ = room.Remove("p1")
	assert.False(t, room.Valid(), "host left, invariant must be restored by Reassign")

	room, el := room.Reassign(allLive, "")
	assert.True(t, el.Changed)
	assert.Equal(t, PeerID("p1"), el.Previous)
	assert.Equal(t, PeerID("p2"), el.Host, "first in enumeration order wins")
	assert.True(t, room.Valid())
}

func TestVideoRoom_ReassignKeepsLiveHost(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")

	next, el := room.Reassign(allLive, "")
	assert.False(t, el.Changed)
	assert.Equal(t, PeerID("p1"), el.Host)
	assert.Equal(t, room.Members, next.Members)
}

func TestVideoRoom_ReassignPrefersRequestedMember(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")
	room, _ = room.Join("p3")

	room, el := room.Reassign(allLive, "p3")
	assert.True(t, el.Changed)
	assert.Equal(t, PeerID("p3"), room.HostID())

	// a preferred id that is not a member falls back to the normal rule
	room, el = room.Reassign(allLive, "stranger")
	assert.False(t, el.Changed)
	assert.Equal(t, PeerID("p3"), room.HostID())
}

func TestVideoRoom_ReassignPrunesStaleMembers(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")
	room, _ = room.Join("p3")

	live := func(id PeerID) bool { return id != "p1" }
	room, el := room.Reassign(live, "")
	assert.Equal(t, []PeerID{"p1"}, el.Pruned)
	assert.Equal(t, PeerID("p2"), el.Host)
	assert.Equal(t, []PeerID{"p2", "p3"}, room.Members)
	assert.True(t, room.Valid())
}

func TestVideoRoom_ReassignEmptiesWhenNobodyIsLive(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")

	room, el := room.Reassign(func(PeerID) bool { return false }, "")
	assert.True(t, el.Changed)
	assert.True(t, room.IsEmpty())
	assert.True(t, room.Host.IsEmpty())

	// fresh election on the next join
	room, res := room.Join("p9")
	assert.True(t, res.BecameHost)
}

func TestVideoRoom_HostInvariantUnderChurn(t *testing.T) {
	room := NewVideoRoom("R1")
	ops := []struct {
		join bool
		id   PeerID
	}{
		{true, "a"}, {true, "b"}, {true, "c"}, {false, "a"}, {true, "d"},
		{false, "b"}, {false, "c"}, {false, "d"}, {true, "e"}, {false, "e"},
	}

	for _, op := range ops {
		if op.join {
			room, _ = room.Join(op.id)
		} else {
			room, _ = room.Remove(op.id)
			room, _ = room.Reassign(allLive, "")
		}
		assert.True(t, room.Valid(), "after %+v: %+v", op, room)
	}
	assert.True(t, room.IsEmpty())
}

func TestVideoRoom_Others(t *testing.T) {
	room, _ := NewVideoRoom("R1").Join("p1")
	room, _ = room.Join("p2")
	room, _ = room.Join("p3")

	assert.Equal(t, []PeerID{"p1", "p3"}, room.Others("p2"))
	assert.Equal(t, []PeerID{"p1", "p2", "p3"}, room.Others("nobody"))
}
