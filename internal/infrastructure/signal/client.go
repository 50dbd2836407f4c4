package signal

import (
	"encoding/json"
	"time"

	"codemeet/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GatewayConfig holds the per-connection limits.
type GatewayConfig struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int64
	SendQueueSize  int

	MessagesPerSecond float64
	MessageBurst      int
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendQueueSize:  256,
	}
}

// Client is one WebSocket connection. Its namespace and user are owned by
// the dispatch loop.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	cfg  GatewayConfig

	id       domain.PeerID
	endpoint string
	opened   time.Time

	// pinned is set for /ws/video and /ws/collab. namespace is the pinned
	// one or the namespace of the last join on /ws.
	pinned    bool
	namespace domain.Namespace
	user      domain.UserID

	send    chan []byte
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

func newClient(hub *Hub, conn *websocket.Conn, cfg GatewayConfig, id domain.PeerID, endpoint string, ns domain.Namespace, user domain.UserID, logger *zap.SugaredLogger) *Client {
	limit := rate.Inf
	burst := cfg.MessageBurst
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Client{
		hub:       hub,
		conn:      conn,
		cfg:       cfg,
		id:        id,
		endpoint:  endpoint,
		opened:    time.Now(),
		pinned:    ns != "",
		namespace: ns,
		user:      user,
		send:      make(chan []byte, cfg.SendQueueSize),
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.With("peer_id", id),
	}
}

func (c *Client) ID() domain.PeerID {
	return c.id
}

// readPump pumps messages from the websocket connection to the hub.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Infow("websocket read error", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.logger.Warnw("dropping malformed frame", "error", err, "size", len(data))
			c.hub.metrics.MessageDropped("malformed")
			continue
		}
		if !c.limiter.Allow() {
			c.hub.metrics.MessageDropped("rate_limited")
			continue
		}
		if !c.hub.enqueue(c, env) {
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debugw("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
