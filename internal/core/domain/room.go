package domain

import "fmt"

type RoomID string

// HostState is the per-room host state machine: Empty or Hosted(id).
// The zero value is Empty.
type HostState struct {
	hosted bool
	host   PeerID
}

func EmptyHost() HostState {
	return HostState{}
}

func HostedBy(id PeerID) HostState {
	return HostState{hosted: true, host: id}
}

func (s HostState) IsEmpty() bool {
	return !s.hosted
}

// Host returns the host id and whether the state is Hosted.
func (s HostState) Host() (PeerID, bool) {
	return s.host, s.hosted
}

func (s HostState) String() string {
	if !s.hosted {
		return "empty"
	}
	return fmt.Sprintf("hosted(%s)", s.host)
}

// VideoRoom is a call room. Members are kept in join order; that order is the
// enumeration order used for host election.
//
// Invariant: len(Members) == 0 iff Host is Empty, and when Hosted the host is
// a member.
type VideoRoom struct {
	ID      RoomID
	Members []PeerID
	Host    HostState
}

func NewVideoRoom(id RoomID) VideoRoom {
	return VideoRoom{ID: id}
}

func (r VideoRoom) IsEmpty() bool {
	return len(r.Members) == 0
}

func (r VideoRoom) Has(id PeerID) bool {
	return containsPeer(r.Members, id)
}

// HostID returns the current host or "" when the room is Empty.
func (r VideoRoom) HostID() PeerID {
	id, _ := r.Host.Host()
	return id
}

func (r VideoRoom) IsHost(id PeerID) bool {
	host, ok := r.Host.Host()
	return ok && host == id
}

// Others returns every member except id, in join order.
func (r VideoRoom) Others(id PeerID) []PeerID {
	return withoutPeer(r.Members, id)
}

// JoinResult describes what a join did to the room.
type JoinResult struct {
	BecameHost    bool
	AlreadyMember bool
	Host          PeerID
}

// Join adds id to the room. Joining an Empty room makes id the host.
func (r VideoRoom) Join(id PeerID) (VideoRoom, JoinResult) {
	if r.Has(id) {
		return r, JoinResult{AlreadyMember: true, BecameHost: r.IsHost(id), Host: r.HostID()}
	}

	next := r.clone()
	next.Members = append(next.Members, id)
	if next.Host.IsEmpty() {
		next.Host = HostedBy(id)
		return next, JoinResult{BecameHost: true, Host: id}
	}
	return next, JoinResult{Host: next.HostID()}
}

// Remove drops id from the membership. The host state is left untouched
// unless the room becomes empty; callers run Reassign to restore the host
// invariant.
func (r VideoRoom) Remove(id PeerID) (VideoRoom, bool) {
	if !r.Has(id) {
		return r, false
	}
	next := r.clone()
	next.Members = withoutPeer(next.Members, id)
	if len(next.Members) == 0 {
		next.Host = EmptyHost()
	}
	return next, true
}

// Election is the outcome of Reassign.
type Election struct {
	Previous PeerID
	HadHost  bool
	Host     PeerID
	Changed  bool
	Pruned   []PeerID
}

// Reassign restores the host invariant. Members for which live returns false
// are pruned. The host is preferred if it is a live member, else the current
// host if it is still a live member, else the first remaining member. An
// emptied room returns to Empty.
func (r VideoRoom) Reassign(live func(PeerID) bool, preferred PeerID) (VideoRoom, Election) {
	prev, hadHost := r.Host.Host()
	el := Election{Previous: prev, HadHost: hadHost}

	next := r.clone()
	next.Members = next.Members[:0]
	for _, m := range r.Members {
		if live == nil || live(m) {
			next.Members = append(next.Members, m)
		} else {
			el.Pruned = append(el.Pruned, m)
		}
	}

	if len(next.Members) == 0 {
		next.Host = EmptyHost()
		el.Changed = hadHost
		return next, el
	}

	var chosen PeerID
	switch {
	case preferred != "" && containsPeer(next.Members, preferred):
		chosen = preferred
	case hadHost && containsPeer(next.Members, prev):
		chosen = prev
	default:
		chosen = next.Members[0]
	}

	next.Host = HostedBy(chosen)
	el.Host = chosen
	el.Changed = !hadHost || chosen != prev
	return next, el
}

// Valid reports whether the host invariant holds.
func (r VideoRoom) Valid() bool {
	host, ok := r.Host.Host()
	if len(r.Members) == 0 {
		return !ok
	}
	return ok && containsPeer(r.Members, host)
}

func (r VideoRoom) clone() VideoRoom {
	members := make([]PeerID, len(r.Members), len(r.Members)+1)
	copy(members, r.Members)
	return VideoRoom{ID: r.ID, Members: members, Host: r.Host}
}

// ElectionReason labels why a host election ran.
type ElectionReason string

const (
	ReasonFirstJoin      ElectionReason = "first_join"
	ReasonHostLeft       ElectionReason = "host_left"
	ReasonStaleHost      ElectionReason = "stale_host"
	ReasonClientReport   ElectionReason = "client_report"
	ReasonClientFallback ElectionReason = "client_fallback"
	ReasonStatusCheck    ElectionReason = "status_check"
)
