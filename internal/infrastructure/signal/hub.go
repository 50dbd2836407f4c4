package signal

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"sync/atomic"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/pkg/tracing"

	"go.uber.org/zap"
)

var ErrHubStopped = errors.New("hub stopped")

// Handler receives the messages and disconnects of every client. It is only
// ever called from the dispatch loop.
type Handler interface {
	HandleMessage(ctx context.Context, c *Client, env Envelope)
	HandleDisconnect(ctx context.Context, c *Client)
}

type inboundMessage struct {
	client *Client
	env    Envelope
}

// Hub is the dispatch loop. One goroutine owns the client table and runs
// every coordinator operation, so room state needs no locks.
type Hub struct {
	clients map[domain.PeerID]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	tasks      chan func(ctx context.Context)
	done       chan struct{}

	connected atomic.Int64
	metrics   ports.GatewayMetrics
	logger    *zap.SugaredLogger
}

var (
	_ ports.Notifier   = (*Hub)(nil)
	_ ports.TaskPoster = (*Hub)(nil)
)

func NewHub(queueSize int, metrics ports.GatewayMetrics, logger *zap.SugaredLogger) *Hub {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if metrics == nil {
		metrics = nopGatewayMetrics{}
	}
	return &Hub{
		clients:    make(map[domain.PeerID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage, queueSize),
		tasks:      make(chan func(ctx context.Context), queueSize),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     logger,
	}
}

// Run processes registrations, messages and posted tasks until ctx is done.
// On return every client's send queue is closed, which closes its socket.
func (h *Hub) Run(ctx context.Context, handler Handler) {
	defer func() {
		close(h.done)
		for id, c := range h.clients {
			delete(h.clients, id)
			close(c.send)
		}
		h.connected.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.connected.Store(int64(len(h.clients)))
			h.logger.Debugw("client registered", "peer_id", c.id, "endpoint", c.endpoint)
			h.Send(c.id, domain.EventConnected, domain.ConnectedPayload{PeerID: c.id})

		case c := <-h.unregister:
			if h.clients[c.id] != c {
				continue
			}
			delete(h.clients, c.id)
			h.connected.Store(int64(len(h.clients)))
			h.safely(ctx, "disconnect", c, func(ctx context.Context) {
				handler.HandleDisconnect(ctx, c)
			})
			close(c.send)
			h.logger.Debugw("client unregistered", "peer_id", c.id)

		case msg := <-h.inbound:
			if h.clients[msg.client.id] != msg.client {
				continue
			}
			h.safely(ctx, msg.env.Event, msg.client, func(ctx context.Context) {
				handler.HandleMessage(ctx, msg.client, msg.env)
			})

		case fn := <-h.tasks:
			h.safely(ctx, "task", nil, fn)
		}
	}
}

// safely runs fn inside a span and recovers a panic so that one bad
// message cannot take down the loop.
func (h *Hub) safely(ctx context.Context, name string, c *Client, fn func(ctx context.Context)) {
	var peer, ns string
	if c != nil {
		peer, ns = string(c.id), string(c.namespace)
	}
	ctx, span := tracing.TraceWebSocketMessage(ctx, name, ns, peer)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("panic in dispatch loop",
				"event", name,
				"peer_id", peer,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			h.metrics.MessageDropped("panic")
			tracing.AddSpanAttributes(ctx, tracing.ReasonKey.String("panic"))
		}
	}()
	fn(ctx)
}

// Send queues an event for a connected peer. It never blocks: a full send
// queue drops the frame.
func (h *Hub) Send(to domain.PeerID, event string, payload interface{}) bool {
	c, ok := h.clients[to]
	if !ok {
		return false
	}

	frame, err := json.Marshal(outboundFrame{Event: event, Data: payload})
	if err != nil {
		h.logger.Errorw("failed to encode frame", "event", event, "error", err)
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		h.metrics.MessageDropped("send_queue_full")
		h.logger.Warnw("send queue full, dropping frame", "peer_id", to, "event", event)
		return false
	}
}

func (h *Hub) IsConnected(id domain.PeerID) bool {
	_, ok := h.clients[id]
	return ok
}

// Post queues fn to run on the loop. It reports false if the loop has
// stopped or the task queue is full.
func (h *Hub) Post(fn func(ctx context.Context)) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.tasks <- fn:
		return true
	default:
		h.metrics.MessageDropped("task_queue_full")
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. It is how code outside
// the loop reads room state.
func (h *Hub) Do(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	task := func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}

	select {
	case h.tasks <- task:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping round-trips an empty task through the loop.
func (h *Hub) Ping(ctx context.Context) error {
	return h.Do(ctx, func(context.Context) {})
}

// ConnectionCount is safe to call from any goroutine.
func (h *Hub) ConnectionCount() int {
	return int(h.connected.Load())
}

func (h *Hub) enqueue(c *Client, env Envelope) bool {
	select {
	case h.inbound <- inboundMessage{client: c, env: env}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) join(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
