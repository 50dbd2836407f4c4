package ports

import (
	"time"

	"codemeet/internal/core/domain"
)

// CoordinatorMetrics receives counters from the coordinators.
type CoordinatorMetrics interface {
	PeerJoined(ns domain.Namespace)
	PeerLeft(ns domain.Namespace)
	RoomOpened(ns domain.Namespace)
	RoomClosed(ns domain.Namespace)
	HostElected(reason domain.ElectionReason)
	SignalRelayed(kind string, delivered bool)
	Broadcast(event string, recipients int)
}

// WriterMetrics receives observations from the session writer.
type WriterMetrics interface {
	SessionOp(op, outcome string, elapsed time.Duration)
	SessionQueueDepth(shard, depth int)
	BreakerState(name string, state int)
}

// GatewayMetrics receives connection and message counters from the
// WebSocket gateway.
type GatewayMetrics interface {
	ConnectionOpened(endpoint string)
	ConnectionClosed(endpoint string, lifetime time.Duration)
	MessageReceived(event string)
	MessageDropped(reason string)
}
