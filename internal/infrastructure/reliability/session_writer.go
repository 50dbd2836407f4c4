package reliability

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/pkg/tracing"

	"go.uber.org/zap"
)

var (
	ErrWriterClosed = errors.New("session writer closed")
	ErrQueueFull    = errors.New("session writer queue full")
)

const (
	opLoad   = "load"
	opUpdate = "update"
)

type WriterConfig struct {
	Shards    int
	QueueSize int
	OpTimeout time.Duration
}

type writeOp struct {
	name string
	key  domain.SessionKey
	run  func(ctx context.Context) error
}

// SessionWriter runs session store operations off the dispatch loop. Keys are
// hashed onto a fixed set of worker goroutines, so operations on one key run
// one at a time in submission order.
type SessionWriter struct {
	store   *SessionStoreWrapper
	cfg     WriterConfig
	metrics ports.WriterMetrics
	logger  *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	shards []chan writeOp
	wg     sync.WaitGroup
}

var _ ports.SessionWriter = (*SessionWriter)(nil)

func NewSessionWriter(store *SessionStoreWrapper, cfg WriterConfig, metrics ports.WriterMetrics, logger *zap.SugaredLogger) *SessionWriter {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}

	w := &SessionWriter{
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		shards:  make([]chan writeOp, cfg.Shards),
	}
	for i := range w.shards {
		w.shards[i] = make(chan writeOp, cfg.QueueSize)
		w.wg.Add(1)
		go w.work(i, w.shards[i])
	}
	return w
}

// Load finds or creates the session. done runs on a writer goroutine, or
// inline with an error if the operation could not be queued.
func (w *SessionWriter) Load(key domain.SessionKey, done func(*domain.Session, error)) {
	err := w.submit(writeOp{
		name: opLoad,
		key:  key,
		run: func(ctx context.Context) error {
			session, err := w.store.FindOrCreate(ctx, key)
			done(session, err)
			return err
		},
	})
	if err != nil {
		done(nil, err)
	}
}

// Update persists update best effort.
func (w *SessionWriter) Update(key domain.SessionKey, update domain.SessionUpdate) {
	if update.IsEmpty() {
		return
	}
	err := w.submit(writeOp{
		name: opUpdate,
		key:  key,
		run: func(ctx context.Context) error {
			return w.store.UpdateOrCreate(ctx, key, update)
		},
	})
	if err != nil {
		w.logger.Errorw("session update dropped", "session_key", key.String(), "error", err)
	}
}

func (w *SessionWriter) submit(op writeOp) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.observe(op.name, "closed", 0)
		return ErrWriterClosed
	}

	shard := w.shardFor(op.key)
	select {
	case w.shards[shard] <- op:
		if w.metrics != nil {
			w.metrics.SessionQueueDepth(shard, len(w.shards[shard]))
		}
		return nil
	default:
		w.observe(op.name, "dropped", 0)
		return ErrQueueFull
	}
}

func (w *SessionWriter) shardFor(key domain.SessionKey) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return int(h.Sum32() % uint32(len(w.shards)))
}

func (w *SessionWriter) work(shard int, ops <-chan writeOp) {
	defer w.wg.Done()

	for op := range ops {
		w.execute(op)
		if w.metrics != nil {
			w.metrics.SessionQueueDepth(shard, len(ops))
		}
	}
}

func (w *SessionWriter) execute(op writeOp) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorw("panic in session writer", "op", op.name, "session_key", op.key.String(), "panic", r)
			w.observe(op.name, "panic", 0)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.OpTimeout)
	defer cancel()
	ctx, span := tracing.TraceSessionWrite(ctx, op.name, op.key.String())
	defer span.End()

	start := time.Now()
	err := op.run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		tracing.RecordError(ctx, err)
		w.logger.Errorw("session store operation failed",
			"op", op.name,
			"session_key", op.key.String(),
			"elapsed", elapsed,
			"error", err,
		)
		w.observe(op.name, "error", elapsed)
		return
	}
	w.observe(op.name, "ok", elapsed)
}

func (w *SessionWriter) observe(op, outcome string, elapsed time.Duration) {
	if w.metrics != nil {
		w.metrics.SessionOp(op, outcome, elapsed)
	}
}

// Close stops accepting work and waits for queued operations to finish or
// for ctx to expire.
func (w *SessionWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, ch := range w.shards {
		close(ch)
	}
	w.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
