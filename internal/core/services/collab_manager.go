package services

import (
	"context"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"go.uber.org/zap"
)

type collabManager struct {
	registry *RoomRegistry
	writer   ports.SessionWriter
	poster   ports.TaskPoster
	notifier ports.Notifier
	metrics  ports.CoordinatorMetrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewCollabManager(
	registry *RoomRegistry,
	writer ports.SessionWriter,
	poster ports.TaskPoster,
	notifier ports.Notifier,
	metrics ports.CoordinatorMetrics,
	logger *zap.SugaredLogger,
) ports.CollabManager {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &collabManager{
		registry: registry,
		writer:   writer,
		poster:   poster,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *collabManager) Join(ctx context.Context, peer domain.PeerID, key domain.SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if prev, ok := m.registry.CollabRoomOf(peer); ok && prev != key {
		m.leave(ctx, peer, prev)
	}

	room := m.registry.CollabRoom(ctx, key)
	if !room.Has(peer) {
		if room.IsEmpty() {
			m.metrics.RoomOpened(domain.NamespaceCollab)
		}
		room = room.Add(peer)
		m.registry.SaveCollabRoom(ctx, room)
		m.metrics.PeerJoined(domain.NamespaceCollab)
	}
	m.registry.TrackCollab(peer, key)
	m.logger.Infow("peer joined session", "peer_id", peer, "session_key", key.String(), "members", len(room.Members))

	m.writer.Load(key, func(session *domain.Session, err error) {
		if err != nil {
			m.logger.Errorw("failed to load session", "peer_id", peer, "session_key", key.String(), "error", err)
			return
		}
		state := domain.InitialStatePayload{Code: session.Code, Whiteboard: session.Whiteboard.Clone()}
		posted := m.poster.Post(func(ctx context.Context) {
			if current, ok := m.registry.CollabRoomOf(peer); !ok || current != key {
				m.logger.Debugw("joiner left before session loaded", "peer_id", peer, "session_key", key.String())
				return
			}
			m.notifier.Send(peer, domain.EventLoadInitialState, state)
		})
		if !posted {
			m.logger.Warnw("dropping initial state, dispatch loop unavailable", "peer_id", peer, "session_key", key.String())
		}
	})
	return nil
}

func (m *collabManager) CodeChange(ctx context.Context, peer domain.PeerID, code string) error {
	room, err := m.memberRoom(ctx, peer)
	if err != nil {
		return err
	}
	m.broadcast(room.Others(peer), domain.EventCodeUpdate, domain.CodePayload{Code: code})
	m.writer.Update(room.Key, domain.CodeUpdate(code, m.now()))
	return nil
}

func (m *collabManager) WhiteboardChange(ctx context.Context, peer domain.PeerID, whiteboard domain.Whiteboard) error {
	room, err := m.memberRoom(ctx, peer)
	if err != nil {
		return err
	}
	if whiteboard == nil {
		whiteboard = domain.Whiteboard{}
	}
	snapshot := whiteboard.Clone()
	m.broadcast(room.Others(peer), domain.EventWhiteboardUpdate, domain.WhiteboardPayload{Whiteboard: snapshot})
	m.writer.Update(room.Key, domain.WhiteboardUpdate(snapshot, m.now()))
	return nil
}

func (m *collabManager) Disconnect(ctx context.Context, peer domain.PeerID) {
	if key, ok := m.registry.CollabRoomOf(peer); ok {
		m.leave(ctx, peer, key)
	}
}

func (m *collabManager) memberRoom(ctx context.Context, peer domain.PeerID) (domain.CollabRoom, error) {
	key, ok := m.registry.CollabRoomOf(peer)
	if !ok {
		return domain.CollabRoom{}, domain.ErrNotInRoom
	}
	room := m.registry.CollabRoom(ctx, key)
	if !room.Has(peer) {
		return room, domain.ErrNotInRoom
	}
	return room, nil
}

func (m *collabManager) leave(ctx context.Context, peer domain.PeerID, key domain.SessionKey) {
	m.registry.UntrackCollab(peer, key)

	room := m.registry.CollabRoom(ctx, key)
	if !room.Has(peer) {
		return
	}
	room = room.Remove(peer)
	m.registry.SaveCollabRoom(ctx, room)
	m.metrics.PeerLeft(domain.NamespaceCollab)
	if room.IsEmpty() {
		m.metrics.RoomClosed(domain.NamespaceCollab)
	}
	m.logger.Infow("peer left session", "peer_id", peer, "session_key", key.String(), "members", len(room.Members))
}

func (m *collabManager) broadcast(to []domain.PeerID, event string, payload interface{}) {
	if len(to) == 0 {
		return
	}
	for _, id := range to {
		m.notifier.Send(id, event, payload)
	}
	m.metrics.Broadcast(event, len(to))
}
