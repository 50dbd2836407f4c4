package http

import (
	"context"
	"net/http"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/pkg/errors"
	"codemeet/pkg/validation"

	"github.com/gin-gonic/gin"
)

// SessionReader is the read side of the session store.
type SessionReader interface {
	FindSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)
}

type SessionHandler struct {
	sessions  SessionReader
	validator *validation.Validator
}

func NewSessionHandler(sessions SessionReader) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		validator: validation.New(),
	}
}

func (h *SessionHandler) SetupRoutes(api gin.IRoutes) {
	api.GET("/sessions/:assessmentId/:candidateId/:questionId", h.GetSession)
	api.GET("/sessions/:assessmentId/:candidateId/:questionId/events", h.GetSessionEvents)
}

type sessionResponse struct {
	AssessmentID         string            `json:"assessmentId"`
	CandidateID          string            `json:"candidateId"`
	QuestionID           string            `json:"questionId"`
	Code                 string            `json:"code"`
	Whiteboard           domain.Whiteboard `json:"whiteboard"`
	CodeEventCount       int               `json:"codeEventCount"`
	WhiteboardEventCount int               `json:"whiteboardEventCount"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

type sessionEventsResponse struct {
	CodeEvents       []domain.CodeEvent       `json:"code_events"`
	WhiteboardEvents []domain.WhiteboardEvent `json:"whiteboard_events"`
}

func (h *SessionHandler) find(c *gin.Context) (*domain.Session, bool) {
	key := domain.SessionKey{
		AssessmentID: c.Param("assessmentId"),
		CandidateID:  c.Param("candidateId"),
		QuestionID:   c.Param("questionId"),
	}
	if err := h.validator.Struct(key); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return nil, false
	}

	session, err := h.sessions.FindSession(c.Request.Context(), key)
	if err != nil {
		c.Error(errors.FromDomain(err).WithContext("session_key", key.String()))
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.find(c)
	if !ok {
		return
	}

	whiteboard := session.Whiteboard
	if whiteboard == nil {
		whiteboard = domain.Whiteboard{}
	}
	c.JSON(http.StatusOK, sessionResponse{
		AssessmentID:         session.Key.AssessmentID,
		CandidateID:          session.Key.CandidateID,
		QuestionID:           session.Key.QuestionID,
		Code:                 session.Code,
		Whiteboard:           whiteboard,
		CodeEventCount:       len(session.CodeEvents),
		WhiteboardEventCount: len(session.WhiteboardEvents),
		CreatedAt:            session.CreatedAt,
		UpdatedAt:            session.UpdatedAt,
	})
}

// GetSessionEvents returns the playback logs.
func (h *SessionHandler) GetSessionEvents(c *gin.Context) {
	session, ok := h.find(c)
	if !ok {
		return
	}

	resp := sessionEventsResponse{
		CodeEvents:       session.CodeEvents,
		WhiteboardEvents: session.WhiteboardEvents,
	}
	if resp.CodeEvents == nil {
		resp.CodeEvents = []domain.CodeEvent{}
	}
	if resp.WhiteboardEvents == nil {
		resp.WhiteboardEvents = []domain.WhiteboardEvent{}
	}
	c.JSON(http.StatusOK, resp)
}
