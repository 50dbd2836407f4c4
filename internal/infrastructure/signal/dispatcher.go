package signal

import (
	"context"
	"errors"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/pkg/validation"

	"go.uber.org/zap"
)

// Dispatcher decodes frames and routes them to the coordinators. Failures
// are logged and never answered over the socket.
type Dispatcher struct {
	video     ports.VideoCoordinator
	collab    ports.CollabManager
	validator *validation.Validator
	metrics   ports.GatewayMetrics
	logger    *zap.SugaredLogger
}

var _ Handler = (*Dispatcher)(nil)

var errWrongNamespace = errors.New("event not served on this endpoint")

func NewDispatcher(video ports.VideoCoordinator, collab ports.CollabManager, metrics ports.GatewayMetrics, logger *zap.SugaredLogger) *Dispatcher {
	if metrics == nil {
		metrics = nopGatewayMetrics{}
	}
	return &Dispatcher{
		video:     video,
		collab:    collab,
		validator: validation.New(),
		metrics:   metrics,
		logger:    logger,
	}
}

func (d *Dispatcher) HandleDisconnect(ctx context.Context, c *Client) {
	d.video.Disconnect(ctx, c.id)
	d.collab.Disconnect(ctx, c.id)
	c.logger.Infow("peer disconnected")
}

func (d *Dispatcher) HandleMessage(ctx context.Context, c *Client, env Envelope) {
	var err error
	switch env.Event {
	case domain.EventJoinRoom:
		err = d.join(ctx, c, env)
	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		err = d.relay(ctx, c, env)
	case domain.EventHostDisconnected, domain.EventCheckHostStatus, domain.EventGetRoomUsers:
		err = d.roomHint(ctx, c, env)
	case domain.EventHostFallback:
		err = d.hostFallback(ctx, c, env)
	case domain.EventCodeChange:
		err = d.codeChange(ctx, c, env)
	case domain.EventWhiteboardChange:
		err = d.whiteboardChange(ctx, c, env)
	default:
		d.metrics.MessageReceived("unknown")
		c.logger.Debugw("ignoring unknown event", "event", env.Event)
		return
	}

	d.metrics.MessageReceived(env.Event)
	if err != nil {
		c.logger.Warnw("message rejected", "event", env.Event, "error", err)
	}
}

// accepts reports whether an event of namespace ns may be handled on c.
func accepts(c *Client, ns domain.Namespace) bool {
	return !c.pinned || c.namespace == ns
}

func (d *Dispatcher) decode(env Envelope, v interface{}) error {
	if err := decodeData(env.Data, v); err != nil {
		return err
	}
	return d.validator.Struct(v)
}

func (d *Dispatcher) join(ctx context.Context, c *Client, env Envelope) error {
	var p joinPayload
	if err := decodeData(env.Data, &p); err != nil {
		return err
	}

	ns := c.namespace
	if !c.pinned {
		detected, ok := p.namespace()
		if !ok {
			return domain.ErrInvalidRoomID
		}
		ns = detected
	}

	switch ns {
	case domain.NamespaceCollab:
		key := p.sessionKey()
		if err := d.validator.Struct(key); err != nil {
			return domain.ErrInvalidSessionKey
		}
		c.namespace = ns
		return d.collab.Join(ctx, c.id, key)

	default:
		req := videoJoinRequest{RoomID: p.RoomID, UserID: p.UserID}
		if err := d.validator.Struct(req); err != nil {
			return domain.ErrInvalidRoomID
		}
		user := domain.UserID(req.UserID)
		if user == "" {
			user = c.user
		}
		c.namespace = domain.NamespaceVideo
		return d.video.Join(ctx, c.id, domain.RoomID(req.RoomID), user)
	}
}

func (d *Dispatcher) relay(ctx context.Context, c *Client, env Envelope) error {
	if !accepts(c, domain.NamespaceVideo) {
		return errWrongNamespace
	}
	var req relayRequest
	if err := d.decode(env, &req); err != nil {
		return err
	}
	return d.video.Relay(ctx, c.id, domain.Signal{
		Kind:      env.Event,
		To:        domain.PeerID(req.To),
		SDP:       req.SDP,
		Candidate: req.Candidate,
	})
}

func (d *Dispatcher) roomHint(ctx context.Context, c *Client, env Envelope) error {
	if !accepts(c, domain.NamespaceVideo) {
		return errWrongNamespace
	}
	var req roomRequest
	if err := d.decode(env, &req); err != nil {
		return err
	}

	room := domain.RoomID(req.RoomID)
	switch env.Event {
	case domain.EventHostDisconnected:
		return d.video.HostDisconnected(ctx, c.id, room)
	case domain.EventCheckHostStatus:
		return d.video.CheckHostStatus(ctx, c.id, room)
	default:
		return d.video.RoomUsers(ctx, c.id, room)
	}
}

func (d *Dispatcher) hostFallback(ctx context.Context, c *Client, env Envelope) error {
	if !accepts(c, domain.NamespaceVideo) {
		return errWrongNamespace
	}
	var req fallbackRequest
	if err := d.decode(env, &req); err != nil {
		return err
	}
	return d.video.HostFallback(ctx, c.id, domain.RoomID(req.RoomID), domain.PeerID(req.NewHostID))
}

func (d *Dispatcher) codeChange(ctx context.Context, c *Client, env Envelope) error {
	if !accepts(c, domain.NamespaceCollab) {
		return errWrongNamespace
	}
	var req codeRequest
	if err := decodeData(env.Data, &req); err != nil {
		return err
	}
	return d.collab.CodeChange(ctx, c.id, req.Code)
}

func (d *Dispatcher) whiteboardChange(ctx context.Context, c *Client, env Envelope) error {
	if !accepts(c, domain.NamespaceCollab) {
		return errWrongNamespace
	}
	var req whiteboardRequest
	if err := decodeData(env.Data, &req); err != nil {
		return err
	}
	return d.collab.WhiteboardChange(ctx, c.id, req.Whiteboard)
}
