package http

import (
	"context"
	"net/http"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/pkg/errors"
	"codemeet/pkg/validation"

	"github.com/gin-gonic/gin"
)

// LoopRunner runs fn on the dispatch loop and waits for it.
type LoopRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context)) error
}

// RoomDirectory is the loop-owned view of rooms and peer identities.
type RoomDirectory interface {
	ListVideoRooms(ctx context.Context) []domain.VideoRoom
	User(peer domain.PeerID) domain.UserID
}

type RoomHandler struct {
	loop  LoopRunner
	video ports.VideoCoordinator
	rooms RoomDirectory
}

func NewRoomHandler(loop LoopRunner, video ports.VideoCoordinator, rooms RoomDirectory) *RoomHandler {
	return &RoomHandler{
		loop:  loop,
		video: video,
		rooms: rooms,
	}
}

func (h *RoomHandler) SetupRoutes(api gin.IRoutes) {
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:roomId", h.GetRoom)
}

type roomMember struct {
	PeerID domain.PeerID `json:"peerId"`
	UserID domain.UserID `json:"userId,omitempty"`
	IsHost bool          `json:"isHost"`
}

type roomResponse struct {
	RoomID  domain.RoomID `json:"roomId"`
	HostID  domain.PeerID `json:"hostId"`
	Members []roomMember  `json:"members"`
}

func (h *RoomHandler) describe(room domain.VideoRoom) roomResponse {
	resp := roomResponse{RoomID: room.ID, HostID: room.HostID(), Members: make([]roomMember, 0, len(room.Members))}
	for _, peer := range room.Members {
		resp.Members = append(resp.Members, roomMember{
			PeerID: peer,
			UserID: h.rooms.User(peer),
			IsHost: room.IsHost(peer),
		})
	}
	return resp
}

func loopUnavailable(err error) error {
	return errors.WrapError(err, errors.ErrCodeServiceUnavailable, "gateway unavailable", http.StatusServiceUnavailable)
}

// ListRooms returns every live video room.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	var rooms []roomResponse
	err := h.loop.Do(c.Request.Context(), func(ctx context.Context) {
		for _, room := range h.rooms.ListVideoRooms(ctx) {
			rooms = append(rooms, h.describe(room))
		}
	})
	if err != nil {
		c.Error(loopUnavailable(err))
		return
	}
	if rooms == nil {
		rooms = []roomResponse{}
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	if err := validation.ValidateRoomID(c.Param("roomId")); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	roomID := domain.RoomID(c.Param("roomId"))

	var (
		resp    roomResponse
		findErr error
	)
	err := h.loop.Do(c.Request.Context(), func(ctx context.Context) {
		room, err := h.video.Snapshot(ctx, roomID)
		if err != nil {
			findErr = err
			return
		}
		resp = h.describe(room)
	})
	if err != nil {
		c.Error(loopUnavailable(err))
		return
	}
	if findErr != nil {
		c.Error(errors.FromDomain(findErr).WithContext("room_id", string(roomID)))
		return
	}

	c.JSON(http.StatusOK, resp)
}
