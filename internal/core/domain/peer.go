package domain

import "time"

type PeerID string

type UserID string

// Peer is one live real-time connection. It exists only while the
// connection is open.
type Peer struct {
	ID          PeerID
	UserID      UserID
	RemoteAddr  string
	ConnectedAt time.Time
}

// Namespace selects which coordinator a connection talks to.
type Namespace string

const (
	NamespaceUnbound Namespace = ""
	NamespaceVideo   Namespace = "video"
	NamespaceCollab  Namespace = "collab"
)

// containsPeer reports whether id is in peers.
func containsPeer(peers []PeerID, id PeerID) bool {
	for _, p := range peers {
		if p == id {
			return true
		}
	}
	return false
}

// withoutPeer returns a copy of peers with id removed.
func withoutPeer(peers []PeerID, id PeerID) []PeerID {
	out := make([]PeerID, 0, len(peers))
	for _, p := range peers {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}
