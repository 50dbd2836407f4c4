package signal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"codemeet/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu           sync.Mutex
	messages     []string
	disconnected []domain.PeerID
	panicOn      string
}

func (h *recordingHandler) HandleMessage(_ context.Context, _ *Client, env Envelope) {
	if env.Event == h.panicOn {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, env.Event)
}

func (h *recordingHandler) HandleDisconnect(_ context.Context, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, c.id)
}

func (h *recordingHandler) snapshot() ([]string, []domain.PeerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...), append([]domain.PeerID(nil), h.disconnected...)
}

func startHub(t *testing.T, handler Handler) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(16, nil, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx, handler)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub, cancel
}

func testClient(hub *Hub, id domain.PeerID, queue int) *Client {
	cfg := DefaultGatewayConfig()
	cfg.SendQueueSize = queue
	return newClient(hub, nil, cfg, id, EndpointAuto, domain.NamespaceUnbound, "", zap.NewNop().Sugar())
}

func nextFrame(t *testing.T, c *Client) outboundFrameJSON {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var f outboundFrameJSON
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return outboundFrameJSON{}
	}
}

type outboundFrameJSON struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func TestHub_RegisterSendsConnected(t *testing.T) {
	hub, _ := startHub(t, &recordingHandler{})
	c := testClient(hub, "p1", 4)

	require.NoError(t, hub.join(context.Background(), c))

	f := nextFrame(t, c)
	assert.Equal(t, domain.EventConnected, f.Event)
	assert.JSONEq(t, `{"peerId":"p1"}`, string(f.Data))
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_DispatchesMessagesInOrder(t *testing.T) {
	handler := &recordingHandler{}
	hub, _ := startHub(t, handler)
	c := testClient(hub, "p1", 4)
	require.NoError(t, hub.join(context.Background(), c))

	for _, event := range []string{"a", "b", "c"} {
		require.True(t, hub.enqueue(c, Envelope{Event: event}))
	}
	require.NoError(t, hub.Ping(context.Background()))

	messages, _ := handler.snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, messages)
}

func TestHub_LeaveRunsDisconnectAndClosesQueue(t *testing.T) {
	handler := &recordingHandler{}
	hub, _ := startHub(t, handler)
	c := testClient(hub, "p1", 4)
	require.NoError(t, hub.join(context.Background(), c))
	nextFrame(t, c)

	hub.leave(c)
	require.NoError(t, hub.Ping(context.Background()))

	_, ok := <-c.send
	assert.False(t, ok)
	_, disconnected := handler.snapshot()
	assert.Equal(t, []domain.PeerID{"p1"}, disconnected)
	assert.Equal(t, 0, hub.ConnectionCount())

	// Messages from a client that already left are ignored.
	require.True(t, hub.enqueue(c, Envelope{Event: "late"}))
	require.NoError(t, hub.Ping(context.Background()))
	messages, _ := handler.snapshot()
	assert.Empty(t, messages)
}

func TestHub_SendNeverBlocks(t *testing.T) {
	hub, _ := startHub(t, &recordingHandler{})
	c := testClient(hub, "p1", 1)
	require.NoError(t, hub.join(context.Background(), c))

	// The connected frame fills the queue.
	var delivered, unknown, connected bool
	require.NoError(t, hub.Do(context.Background(), func(context.Context) {
		delivered = hub.Send("p1", "x", nil)
		unknown = hub.Send("nobody", "x", nil)
		connected = hub.IsConnected("p1")
	}))

	assert.False(t, delivered)
	assert.False(t, unknown)
	assert.True(t, connected)
}

func TestHub_RecoversFromHandlerPanic(t *testing.T) {
	handler := &recordingHandler{panicOn: "bad"}
	hub, _ := startHub(t, handler)
	c := testClient(hub, "p1", 4)
	require.NoError(t, hub.join(context.Background(), c))

	require.True(t, hub.enqueue(c, Envelope{Event: "bad"}))
	require.True(t, hub.enqueue(c, Envelope{Event: "good"}))
	require.NoError(t, hub.Ping(context.Background()))

	messages, _ := handler.snapshot()
	assert.Equal(t, []string{"good"}, messages)
}

func TestHub_PostRunsOnLoop(t *testing.T) {
	hub, _ := startHub(t, &recordingHandler{})

	ran := make(chan struct{})
	require.True(t, hub.Post(func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("posted task did not run")
	}
}

func TestHub_StoppedHubRejectsWork(t *testing.T) {
	hub, cancel := startHub(t, &recordingHandler{})
	c := testClient(hub, "p1", 4)
	require.NoError(t, hub.join(context.Background(), c))
	nextFrame(t, c)

	cancel()
	<-hub.done

	_, ok := <-c.send
	assert.False(t, ok, "send queues are closed on shutdown")
	assert.False(t, hub.Post(func(context.Context) {}))
	assert.ErrorIs(t, hub.Do(context.Background(), func(context.Context) {}), ErrHubStopped)
	assert.ErrorIs(t, hub.join(context.Background(), testClient(hub, "p2", 4)), ErrHubStopped)
}
