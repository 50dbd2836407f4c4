package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SessionKey identifies one collaboration session: a candidate working on a
// question of an assessment.
type SessionKey struct {
	AssessmentID string `json:"assessmentId" validate:"required,max=128"`
	CandidateID  string `json:"candidateId" validate:"required,max=128"`
	QuestionID   string `json:"questionId" validate:"required,max=128"`
}

// String is the room key "<assessment>_<candidate>_<question>".
func (k SessionKey) String() string {
	return k.AssessmentID + "_" + k.CandidateID + "_" + k.QuestionID
}

func (k SessionKey) Validate() error {
	if strings.TrimSpace(k.AssessmentID) == "" ||
		strings.TrimSpace(k.CandidateID) == "" ||
		strings.TrimSpace(k.QuestionID) == "" {
		return fmt.Errorf("%w: assessment, candidate and question ids are required", ErrInvalidSessionKey)
	}
	return nil
}

// Whiteboard is an ordered sequence of drawing elements. Elements are opaque
// JSON values owned by the client.
type Whiteboard []json.RawMessage

// Clone returns a deep copy so that no element aliases the source buffers.
func (w Whiteboard) Clone() Whiteboard {
	out := make(Whiteboard, len(w))
	for i, el := range w {
		cp := make(json.RawMessage, len(el))
		copy(cp, el)
		out[i] = cp
	}
	return out
}

type CodeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Length    int       `json:"length"`
}

type WhiteboardEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// Session is the durable state of a collaboration room.
type Session struct {
	Key              SessionKey        `json:"key"`
	Code             string            `json:"code"`
	Whiteboard       Whiteboard        `json:"whiteboard"`
	CodeEvents       []CodeEvent       `json:"codeEvents"`
	WhiteboardEvents []WhiteboardEvent `json:"whiteboardEvents"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func NewSession(key SessionKey, now time.Time) *Session {
	return &Session{
		Key:              key,
		Code:             "",
		Whiteboard:       Whiteboard{},
		CodeEvents:       []CodeEvent{},
		WhiteboardEvents: []WhiteboardEvent{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SessionUpdate is a partial update. Nil fields are left unchanged.
type SessionUpdate struct {
	Code                  *string
	Whiteboard            *Whiteboard
	AppendCodeEvent       *CodeEvent
	AppendWhiteboardEvent *WhiteboardEvent
}

func (u SessionUpdate) IsEmpty() bool {
	return u.Code == nil && u.Whiteboard == nil && u.AppendCodeEvent == nil && u.AppendWhiteboardEvent == nil
}

// CodeUpdate replaces the code and logs its length.
func CodeUpdate(code string, now time.Time) SessionUpdate {
	return SessionUpdate{
		Code:            &code,
		AppendCodeEvent: &CodeEvent{Timestamp: now, Length: utf8.RuneCountInString(code)},
	}
}

// WhiteboardUpdate replaces the snapshot and logs the element count.
func WhiteboardUpdate(wb Whiteboard, now time.Time) SessionUpdate {
	snapshot := wb.Clone()
	return SessionUpdate{
		Whiteboard:            &snapshot,
		AppendWhiteboardEvent: &WhiteboardEvent{Timestamp: now, Count: len(wb)},
	}
}

// Apply mutates s in place. Stores that keep whole documents use it so the
// merge rules live in one place.
func (s *Session) Apply(u SessionUpdate, now time.Time) {
	if u.Code != nil {
		s.Code = *u.Code
	}
	if u.Whiteboard != nil {
		s.Whiteboard = u.Whiteboard.Clone()
	}
	if u.AppendCodeEvent != nil {
		s.CodeEvents = append(s.CodeEvents, *u.AppendCodeEvent)
	}
	if u.AppendWhiteboardEvent != nil {
		s.WhiteboardEvents = append(s.WhiteboardEvents, *u.AppendWhiteboardEvent)
	}
	s.UpdatedAt = now
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Whiteboard = s.Whiteboard.Clone()
	cp.CodeEvents = append([]CodeEvent(nil), s.CodeEvents...)
	cp.WhiteboardEvents = append([]WhiteboardEvent(nil), s.WhiteboardEvents...)
	if cp.CodeEvents == nil {
		cp.CodeEvents = []CodeEvent{}
	}
	if cp.WhiteboardEvents == nil {
		cp.WhiteboardEvents = []WhiteboardEvent{}
	}
	return &cp
}

// CollabRoom is the membership of a collaboration session. It has no host.
type CollabRoom struct {
	Key     SessionKey
	Members []PeerID
}

func NewCollabRoom(key SessionKey) CollabRoom {
	return CollabRoom{Key: key}
}

func (r CollabRoom) IsEmpty() bool {
	return len(r.Members) == 0
}

func (r CollabRoom) Has(id PeerID) bool {
	return containsPeer(r.Members, id)
}

func (r CollabRoom) Add(id PeerID) CollabRoom {
	if r.Has(id) {
		return r
	}
	members := make([]PeerID, len(r.Members), len(r.Members)+1)
	copy(members, r.Members)
	return CollabRoom{Key: r.Key, Members: append(members, id)}
}

func (r CollabRoom) Remove(id PeerID) CollabRoom {
	return CollabRoom{Key: r.Key, Members: withoutPeer(r.Members, id)}
}

func (r CollabRoom) Others(id PeerID) []PeerID {
	return withoutPeer(r.Members, id)
}
