package domain

import "encoding/json"

// Event names on the real-time channel.
const (
	EventConnected = "connected"
	EventJoinRoom  = "join-room"

	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"

	EventHostDisconnected = "host-disconnected"
	EventHostFallback     = "host-fallback"
	EventCheckHostStatus  = "check-host-status"
	EventGetRoomUsers     = "get-room-users"

	EventHostAssigned     = "host-assigned"
	EventHostInfo         = "host-info"
	EventExistingUsers    = "existing-users"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventNewHostAssigned  = "new-host-assigned"
	EventRoomUsers        = "room-users"

	EventCodeChange       = "code-change"
	EventCodeUpdate       = "code-update"
	EventWhiteboardChange = "whiteboard-change"
	EventWhiteboardUpdate = "whiteboard-update"
	EventLoadInitialState = "load-initial-state"
)

// IsRelayEvent reports whether event is forwarded peer to peer untouched.
func IsRelayEvent(event string) bool {
	return event == EventOffer || event == EventAnswer || event == EventICECandidate
}

// Signal is an opaque handshake payload addressed to one peer.
type Signal struct {
	Kind      string
	To        PeerID
	SDP       json.RawMessage
	Candidate json.RawMessage
}

type ConnectedPayload struct {
	PeerID PeerID `json:"peerId"`
}

type RelayPayload struct {
	From      PeerID          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type HostAssignedPayload struct {
	IsHost bool `json:"isHost"`
}

type HostInfoPayload struct {
	HostID PeerID `json:"hostId"`
}

type PeerPayload struct {
	PeerID PeerID `json:"peerId"`
}

type NewHostPayload struct {
	NewHostID PeerID `json:"newHostId"`
}

type UsersPayload struct {
	Users []PeerID `json:"users"`
}

type CodePayload struct {
	Code string `json:"code"`
}

type WhiteboardPayload struct {
	Whiteboard Whiteboard `json:"whiteboard"`
}

type InitialStatePayload struct {
	Code       string     `json:"code"`
	Whiteboard Whiteboard `json:"whiteboard"`
}
