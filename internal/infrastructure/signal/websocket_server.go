package signal

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Endpoint labels used in logs and metrics.
const (
	EndpointAuto   = "/ws"
	EndpointVideo  = "/ws/video"
	EndpointCollab = "/ws/collab"
)

// WebSocketServer upgrades requests and attaches the connections to a hub.
type WebSocketServer struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      GatewayConfig
	metrics  ports.GatewayMetrics
	logger   *zap.SugaredLogger
}

func NewWebSocketServer(hub *Hub, cfg GatewayConfig, allowedOrigins []string, metrics ports.GatewayMetrics, logger *zap.SugaredLogger) *WebSocketServer {
	if metrics == nil {
		metrics = nopGatewayMetrics{}
	}
	return &WebSocketServer{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// originChecker accepts requests without an Origin header and those whose
// origin is in the allow-list. An empty list or "*" accepts everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[normalizeOrigin(origin)] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[normalizeOrigin(origin)]
		return ok
	}
}

func normalizeOrigin(origin string) string {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(origin, "/"))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// Handler serves one WebSocket endpoint. ns pins the namespace; an empty ns
// lets each join-room pick it. The handler returns when the socket closes.
func (s *WebSocketServer) Handler(endpoint string, ns domain.Namespace) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			s.logger.Debugw("websocket upgrade failed", "endpoint", endpoint, "error", err)
			return
		}

		user, _ := middleware.UserID(c)
		id := domain.PeerID(uuid.NewString())
		client := newClient(s.hub, conn, s.cfg, id, endpoint, ns, user, s.logger)

		if err := s.hub.join(c.Request.Context(), client); err != nil {
			s.logger.Warnw("rejecting connection", "endpoint", endpoint, "error", err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
				time.Now().Add(s.cfg.WriteWait))
			conn.Close()
			return
		}

		s.metrics.ConnectionOpened(endpoint)
		client.logger.Infow("peer connected", "endpoint", endpoint, "user_id", user)

		go client.writePump()
		client.readPump()

		s.metrics.ConnectionClosed(endpoint, time.Since(client.opened))
	}
}

// RegisterRoutes mounts the three endpoints behind the given middleware.
func (s *WebSocketServer) RegisterRoutes(r gin.IRoutes, handlers ...gin.HandlerFunc) {
	route := func(endpoint string, ns domain.Namespace) {
		chain := make([]gin.HandlerFunc, 0, len(handlers)+1)
		chain = append(chain, handlers...)
		r.GET(endpoint, append(chain, s.Handler(endpoint, ns))...)
	}
	route(EndpointAuto, domain.NamespaceUnbound)
	route(EndpointVideo, domain.NamespaceVideo)
	route(EndpointCollab, domain.NamespaceCollab)
}
