package services

import (
	"context"
	"sync"

	"codemeet/internal/core/domain"
	"codemeet/internal/infrastructure/repositories/memory"
)

type sentMessage struct {
	To      domain.PeerID
	Event   string
	Payload interface{}
}

// fakeNotifier records every send. Only connected peers receive messages.
type fakeNotifier struct {
	mu        sync.Mutex
	connected map[domain.PeerID]bool
	sent      []sentMessage
}

func newFakeNotifier(peers ...domain.PeerID) *fakeNotifier {
	n := &fakeNotifier{connected: make(map[domain.PeerID]bool)}
	for _, p := range peers {
		n.connected[p] = true
	}
	return n
}

func (n *fakeNotifier) Send(to domain.PeerID, event string, payload interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.connected[to] {
		return false
	}
	n.sent = append(n.sent, sentMessage{To: to, Event: event, Payload: payload})
	return true
}

func (n *fakeNotifier) IsConnected(id domain.PeerID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected[id]
}

func (n *fakeNotifier) connect(id domain.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected[id] = true
}

func (n *fakeNotifier) drop(id domain.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.connected, id)
}

// to returns the messages sent to id, in order.
func (n *fakeNotifier) to(id domain.PeerID) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.To == id {
			out = append(out, m)
		}
	}
	return out
}

func (n *fakeNotifier) events(id domain.PeerID) []string {
	var out []string
	for _, m := range n.to(id) {
		out = append(out, m.Event)
	}
	return out
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// fakePoster queues tasks until run is called. A rejecting poster refuses
// every task, like a stopped or saturated loop.
type fakePoster struct {
	tasks     []func(ctx context.Context)
	rejecting bool
}

func (p *fakePoster) Post(fn func(ctx context.Context)) bool {
	if p.rejecting {
		return false
	}
	p.tasks = append(p.tasks, fn)
	return true
}

func (p *fakePoster) run() {
	tasks := p.tasks
	p.tasks = nil
	for _, fn := range tasks {
		fn(context.Background())
	}
}

// syncWriter runs store calls inline on the caller's goroutine.
type syncWriter struct {
	store   *memory.MemorySessionStore
	failing bool
	updates []domain.SessionUpdate
}

func newSyncWriter() *syncWriter {
	return &syncWriter{store: memory.NewMemorySessionStore().(*memory.MemorySessionStore)}
}

func (w *syncWriter) Load(key domain.SessionKey, done func(*domain.Session, error)) {
	if w.failing {
		done(nil, context.DeadlineExceeded)
		return
	}
	session, err := w.store.CreateSession(context.Background(), key)
	done(session, err)
}

func (w *syncWriter) Update(key domain.SessionKey, update domain.SessionUpdate) {
	w.updates = append(w.updates, update)
	_ = w.store.UpdateSession(context.Background(), key, update)
}

type countingMetrics struct {
	NopMetrics
	elections map[domain.ElectionReason]int
	closed    map[domain.Namespace]int
	relayed   map[bool]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		elections: make(map[domain.ElectionReason]int),
		closed:    make(map[domain.Namespace]int),
		relayed:   make(map[bool]int),
	}
}

func (m *countingMetrics) HostElected(reason domain.ElectionReason) {
	m.elections[reason]++
}

func (m *countingMetrics) RoomClosed(ns domain.Namespace) {
	m.closed[ns]++
}

func (m *countingMetrics) SignalRelayed(kind string, delivered bool) {
	m.relayed[delivered]++
}
