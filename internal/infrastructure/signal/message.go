package signal

import (
	"encoding/json"

	"codemeet/internal/core/domain"
)

// Envelope is one frame on the wire: {"event": name, "data": payload}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// joinPayload covers both namespaces. A collab join carries the session key
// fields; a video join carries roomId.
type joinPayload struct {
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	AssessmentID string `json:"assessmentId"`
	CandidateID  string `json:"candidateId"`
	QuestionID   string `json:"questionId"`
}

func (p joinPayload) namespace() (domain.Namespace, bool) {
	switch {
	case p.AssessmentID != "":
		return domain.NamespaceCollab, true
	case p.RoomID != "":
		return domain.NamespaceVideo, true
	default:
		return "", false
	}
}

func (p joinPayload) sessionKey() domain.SessionKey {
	return domain.SessionKey{
		AssessmentID: p.AssessmentID,
		CandidateID:  p.CandidateID,
		QuestionID:   p.QuestionID,
	}
}

type videoJoinRequest struct {
	RoomID string `json:"roomId" validate:"required,max=256"`
	UserID string `json:"userId" validate:"omitempty,max=128"`
}

type relayRequest struct {
	To        string          `json:"to" validate:"required,max=128"`
	SDP       json.RawMessage `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

type roomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=256"`
}

type fallbackRequest struct {
	RoomID    string `json:"roomId" validate:"required,max=256"`
	NewHostID string `json:"newHostId" validate:"omitempty,max=128"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type whiteboardRequest struct {
	Whiteboard domain.Whiteboard `json:"whiteboard"`
}

// decodeData unmarshals a frame payload. A missing or null payload decodes
// as an empty object.
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	return json.Unmarshal(data, v)
}
