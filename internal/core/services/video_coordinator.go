package services

import (
	"context"
	"fmt"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"go.uber.org/zap"
)

type videoCoordinator struct {
	registry *RoomRegistry
	notifier ports.Notifier
	metrics  ports.CoordinatorMetrics
	logger   *zap.SugaredLogger
}

func NewVideoCoordinator(
	registry *RoomRegistry,
	notifier ports.Notifier,
	metrics ports.CoordinatorMetrics,
	logger *zap.SugaredLogger,
) ports.VideoCoordinator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &videoCoordinator{
		registry: registry,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

func (v *videoCoordinator) Join(ctx context.Context, peer domain.PeerID, roomID domain.RoomID, user domain.UserID) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	v.registry.SetUser(peer, user)

	if prev, ok := v.registry.VideoRoomOf(peer); ok && prev != roomID {
		v.leave(ctx, peer, prev)
	}

	room := v.registry.VideoRoom(ctx, roomID)
	if host, ok := room.Host.Host(); ok && host != peer && !v.notifier.IsConnected(host) {
		room = v.reassignHost(ctx, room, domain.ReasonStaleHost, "", "")
	}

	opened := room.IsEmpty()
	next, res := room.Join(peer)
	v.registry.TrackVideo(peer, roomID)

	if res.AlreadyMember {
		v.tellRole(peer, next)
		return nil
	}

	v.registry.SaveVideoRoom(ctx, next)
	v.metrics.PeerJoined(domain.NamespaceVideo)
	if opened {
		v.metrics.RoomOpened(domain.NamespaceVideo)
	}

	if res.BecameHost {
		v.metrics.HostElected(domain.ReasonFirstJoin)
		v.logger.Infow("peer hosts room", "peer_id", peer, "room_id", roomID)
	} else {
		v.notifier.Send(res.Host, domain.EventUserConnected, domain.PeerPayload{PeerID: peer})
		v.logger.Infow("peer joined room", "peer_id", peer, "room_id", roomID, "host_id", res.Host)
	}
	v.tellRole(peer, next)
	return nil
}

// tellRole sends peer its role in room and the peers it should call.
func (v *videoCoordinator) tellRole(peer domain.PeerID, room domain.VideoRoom) {
	if room.IsHost(peer) {
		v.notifier.Send(peer, domain.EventHostAssigned, domain.HostAssignedPayload{IsHost: true})
		v.notifier.Send(peer, domain.EventExistingUsers, domain.UsersPayload{Users: []domain.PeerID{}})
		return
	}
	host := room.HostID()
	v.notifier.Send(peer, domain.EventHostInfo, domain.HostInfoPayload{HostID: host})
	v.notifier.Send(peer, domain.EventExistingUsers, domain.UsersPayload{Users: []domain.PeerID{host}})
}

func (v *videoCoordinator) Relay(ctx context.Context, from domain.PeerID, signal domain.Signal) error {
	if !domain.IsRelayEvent(signal.Kind) {
		return fmt.Errorf("unsupported relay event %q", signal.Kind)
	}
	if signal.To == "" || !v.notifier.IsConnected(signal.To) {
		v.logger.Debugw("dropping signal for unknown peer", "peer_id", from, "to", signal.To, "event", signal.Kind)
		v.metrics.SignalRelayed(signal.Kind, false)
		return nil
	}

	delivered := v.notifier.Send(signal.To, signal.Kind, domain.RelayPayload{
		From:      from,
		SDP:       signal.SDP,
		Candidate: signal.Candidate,
	})
	v.metrics.SignalRelayed(signal.Kind, delivered)
	return nil
}

func (v *videoCoordinator) HostDisconnected(ctx context.Context, peer domain.PeerID, roomID domain.RoomID) error {
	room, err := v.memberRoom(ctx, peer, roomID)
	if err != nil {
		return err
	}
	v.reassignHost(ctx, room, domain.ReasonClientReport, "", peer)
	return nil
}

func (v *videoCoordinator) HostFallback(ctx context.Context, peer domain.PeerID, roomID domain.RoomID, newHost domain.PeerID) error {
	room, err := v.memberRoom(ctx, peer, roomID)
	if err != nil {
		return err
	}
	v.reassignHost(ctx, room, domain.ReasonClientFallback, newHost, peer)
	return nil
}

func (v *videoCoordinator) CheckHostStatus(ctx context.Context, peer domain.PeerID, roomID domain.RoomID) error {
	room, err := v.memberRoom(ctx, peer, roomID)
	if err != nil {
		return err
	}
	v.reassignHost(ctx, room, domain.ReasonStatusCheck, "", peer)
	return nil
}

func (v *videoCoordinator) RoomUsers(ctx context.Context, peer domain.PeerID, roomID domain.RoomID) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	room := v.registry.VideoRoom(ctx, roomID)
	v.notifier.Send(peer, domain.EventRoomUsers, domain.UsersPayload{Users: room.Others(peer)})
	return nil
}

func (v *videoCoordinator) Disconnect(ctx context.Context, peer domain.PeerID) {
	if roomID, ok := v.registry.VideoRoomOf(peer); ok {
		v.leave(ctx, peer, roomID)
	}
	v.registry.ForgetUser(peer)
}

func (v *videoCoordinator) Snapshot(ctx context.Context, roomID domain.RoomID) (domain.VideoRoom, error) {
	room := v.registry.VideoRoom(ctx, roomID)
	if room.IsEmpty() {
		return room, domain.ErrRoomNotFound
	}
	return room, nil
}

func (v *videoCoordinator) memberRoom(ctx context.Context, peer domain.PeerID, roomID domain.RoomID) (domain.VideoRoom, error) {
	if roomID == "" {
		return domain.VideoRoom{}, domain.ErrInvalidRoomID
	}
	room := v.registry.VideoRoom(ctx, roomID)
	if !room.Has(peer) {
		return room, domain.ErrNotInRoom
	}
	return room, nil
}

func (v *videoCoordinator) leave(ctx context.Context, peer domain.PeerID, roomID domain.RoomID) {
	v.registry.UntrackVideo(peer, roomID)

	room := v.registry.VideoRoom(ctx, roomID)
	next, removed := room.Remove(peer)
	if !removed {
		return
	}
	wasHost := room.IsHost(peer)
	v.metrics.PeerLeft(domain.NamespaceVideo)
	v.logger.Infow("peer left room", "peer_id", peer, "room_id", roomID, "was_host", wasHost)
	v.broadcast(next.Members, domain.EventUserDisconnected, domain.PeerPayload{PeerID: peer})

	if next.IsEmpty() {
		v.registry.SaveVideoRoom(ctx, next)
		v.metrics.RoomClosed(domain.NamespaceVideo)
		return
	}
	v.reassignHost(ctx, next, domain.ReasonHostLeft, "", "")
}

// reassignHost is the only place a host changes after the first join. It
// prunes dead members, elects, stores the result and notifies the room.
// requester is the peer whose hint triggered the call, if any.
func (v *videoCoordinator) reassignHost(
	ctx context.Context,
	room domain.VideoRoom,
	reason domain.ElectionReason,
	preferred domain.PeerID,
	requester domain.PeerID,
) domain.VideoRoom {
	next, el := room.Reassign(v.notifier.IsConnected, preferred)

	for _, gone := range el.Pruned {
		v.registry.UntrackVideo(gone, room.ID)
		v.metrics.PeerLeft(domain.NamespaceVideo)
		v.broadcast(next.Members, domain.EventUserDisconnected, domain.PeerPayload{PeerID: gone})
	}
	v.registry.SaveVideoRoom(ctx, next)

	if next.IsEmpty() {
		if !room.IsEmpty() {
			v.metrics.RoomClosed(domain.NamespaceVideo)
		}
		v.logger.Infow("room emptied during host election", "room_id", room.ID, "reason", reason)
		return next
	}

	switch {
	case el.Changed:
		v.metrics.HostElected(reason)
		v.logger.Infow("host elected",
			"room_id", room.ID,
			"host_id", el.Host,
			"previous_host", el.Previous,
			"reason", reason,
			"pruned", len(el.Pruned),
		)
		v.notifier.Send(el.Host, domain.EventHostAssigned, domain.HostAssignedPayload{IsHost: true})
		v.broadcast(next.Members, domain.EventNewHostAssigned, domain.NewHostPayload{NewHostID: el.Host})
	case reason == domain.ReasonClientReport || reason == domain.ReasonClientFallback:
		v.broadcast(next.Members, domain.EventNewHostAssigned, domain.NewHostPayload{NewHostID: el.Host})
	case reason == domain.ReasonStatusCheck && requester != "":
		v.notifier.Send(requester, domain.EventHostInfo, domain.HostInfoPayload{HostID: el.Host})
	}
	return next
}

func (v *videoCoordinator) broadcast(to []domain.PeerID, event string, payload interface{}) {
	if len(to) == 0 {
		return
	}
	for _, id := range to {
		v.notifier.Send(id, event, payload)
	}
	v.metrics.Broadcast(event, len(to))
}
