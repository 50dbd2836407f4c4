package reliability

import (
	"context"
	"errors"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
	"codemeet/pkg/circuitbreaker"
	"codemeet/pkg/retry"

	"go.uber.org/zap"
)

// SessionStoreWrapper wraps a SessionStore with retry logic and a circuit
// breaker. Lookups of unknown sessions are answers, not outages, so they never
// trip the breaker and are never retried.
type SessionStoreWrapper struct {
	store  ports.SessionStore
	logger *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func isStoreFailure(err error) bool {
	return !errors.Is(err, domain.ErrSessionNotFound) &&
		!errors.Is(err, domain.ErrInvalidSessionKey) &&
		!errors.Is(err, context.Canceled)
}

func NewSessionStoreWrapper(
	store ports.SessionStore,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	metrics ports.WriterMetrics,
	logger *zap.SugaredLogger,
) *SessionStoreWrapper {
	cbConfig.IsFailure = isStoreFailure
	retryConfig.NonRetryableErrors = append(retryConfig.NonRetryableErrors,
		domain.ErrSessionNotFound,
		domain.ErrInvalidSessionKey,
		circuitbreaker.ErrOpen,
		context.Canceled,
	)

	wrapper := &SessionStoreWrapper{
		store:          store,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New("session_store", cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warnw("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
		if metrics != nil {
			metrics.BreakerState(name, int(to))
		}
	})

	return wrapper
}

var _ ports.SessionStore = (*SessionStoreWrapper)(nil)

func (w *SessionStoreWrapper) FindSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	return retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.Session, error) {
		return circuitbreaker.Run(ctx, w.circuitBreaker, func() (*domain.Session, error) {
			return w.store.FindSession(ctx, key)
		})
	})
}

func (w *SessionStoreWrapper) CreateSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	return retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.Session, error) {
		return circuitbreaker.Run(ctx, w.circuitBreaker, func() (*domain.Session, error) {
			return w.store.CreateSession(ctx, key)
		})
	})
}

func (w *SessionStoreWrapper) UpdateSession(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	return retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			return w.store.UpdateSession(ctx, key, update)
		})
	})
}

// FindOrCreate returns the stored session, creating an empty one if the key
// is unknown.
func (w *SessionStoreWrapper) FindOrCreate(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	session, err := w.FindSession(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return w.CreateSession(ctx, key)
	}
	return session, err
}

// UpdateOrCreate applies update, creating the session first if no join ever
// managed to.
func (w *SessionStoreWrapper) UpdateOrCreate(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	err := w.UpdateSession(ctx, key, update)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if _, err := w.CreateSession(ctx, key); err != nil {
		return err
	}
	return w.UpdateSession(ctx, key, update)
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (w *SessionStoreWrapper) GetCircuitBreakerStats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}
