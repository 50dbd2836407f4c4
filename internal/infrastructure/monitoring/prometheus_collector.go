package monitoring

import (
	"strconv"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	connectionsActive *prometheus.GaugeVec
	peersActive       *prometheus.GaugeVec
	roomsActive       *prometheus.GaugeVec
	sessionQueueDepth *prometheus.GaugeVec
	breakerState      *prometheus.GaugeVec

	// Counters
	connectionsTotal *prometheus.CounterVec
	messagesTotal    *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	hostElections    *prometheus.CounterVec
	signalsRelayed   *prometheus.CounterVec
	broadcastSends   *prometheus.CounterVec
	sessionOps       *prometheus.CounterVec

	// Histograms
	connectionDuration prometheus.Histogram
	sessionOpDuration  *prometheus.HistogramVec
}

var (
	_ ports.CoordinatorMetrics = (*PrometheusCollector)(nil)
	_ ports.WriterMetrics      = (*PrometheusCollector)(nil)
	_ ports.GatewayMetrics     = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the gateway metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codemeet_connections_active",
			Help: "Number of open WebSocket connections",
		}, []string{"endpoint"}),

		peersActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codemeet_peers_active",
			Help: "Number of peers currently in a room",
		}, []string{"namespace"}),

		roomsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codemeet_rooms_active",
			Help: "Number of non-empty rooms",
		}, []string{"namespace"}),

		sessionQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codemeet_session_queue_depth",
			Help: "Pending session store operations per writer shard",
		}, []string{"shard"}),

		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codemeet_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"breaker"}),

		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_connections_total",
			Help: "Total number of accepted WebSocket connections",
		}, []string{"endpoint"}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_messages_received_total",
			Help: "Inbound WebSocket messages by event",
		}, []string{"event"}),

		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_messages_dropped_total",
			Help: "Messages dropped by the gateway",
		}, []string{"reason"}),

		hostElections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_host_elections_total",
			Help: "Host elections by trigger",
		}, []string{"reason"}),

		signalsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_signals_relayed_total",
			Help: "Relayed offer, answer and ICE candidate messages",
		}, []string{"kind", "delivered"}),

		broadcastSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_broadcast_sends_total",
			Help: "Frames sent by room broadcasts",
		}, []string{"event"}),

		sessionOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemeet_session_ops_total",
			Help: "Session store operations by outcome",
		}, []string{"op", "outcome"}),

		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codemeet_connection_duration_seconds",
			Help:    "Lifetime of WebSocket connections",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),

		sessionOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codemeet_session_op_duration_seconds",
			Help:    "Latency of session store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
	}
}

func (p *PrometheusCollector) PeerJoined(ns domain.Namespace) {
	p.peersActive.WithLabelValues(string(ns)).Inc()
}

func (p *PrometheusCollector) PeerLeft(ns domain.Namespace) {
	p.peersActive.WithLabelValues(string(ns)).Dec()
}

func (p *PrometheusCollector) RoomOpened(ns domain.Namespace) {
	p.roomsActive.WithLabelValues(string(ns)).Inc()
}

func (p *PrometheusCollector) RoomClosed(ns domain.Namespace) {
	p.roomsActive.WithLabelValues(string(ns)).Dec()
}

func (p *PrometheusCollector) HostElected(reason domain.ElectionReason) {
	p.hostElections.WithLabelValues(string(reason)).Inc()
}

func (p *PrometheusCollector) SignalRelayed(kind string, delivered bool) {
	p.signalsRelayed.WithLabelValues(kind, strconv.FormatBool(delivered)).Inc()
}

func (p *PrometheusCollector) Broadcast(event string, recipients int) {
	p.broadcastSends.WithLabelValues(event).Add(float64(recipients))
}

func (p *PrometheusCollector) SessionOp(op, outcome string, elapsed time.Duration) {
	p.sessionOps.WithLabelValues(op, outcome).Inc()
	if outcome == "ok" || outcome == "error" {
		p.sessionOpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

func (p *PrometheusCollector) SessionQueueDepth(shard, depth int) {
	p.sessionQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(depth))
}

func (p *PrometheusCollector) BreakerState(name string, state int) {
	p.breakerState.WithLabelValues(name).Set(float64(state))
}

func (p *PrometheusCollector) ConnectionOpened(endpoint string) {
	p.connectionsTotal.WithLabelValues(endpoint).Inc()
	p.connectionsActive.WithLabelValues(endpoint).Inc()
}

func (p *PrometheusCollector) ConnectionClosed(endpoint string, lifetime time.Duration) {
	p.connectionsActive.WithLabelValues(endpoint).Dec()
	p.connectionDuration.Observe(lifetime.Seconds())
}

func (p *PrometheusCollector) MessageReceived(event string) {
	p.messagesTotal.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) MessageDropped(reason string) {
	p.messagesDropped.WithLabelValues(reason).Inc()
}
