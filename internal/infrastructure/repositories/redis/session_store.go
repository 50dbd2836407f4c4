package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const maxTxAttempts = 5

// sessionField query-escapes each id, turning ":" into "%3A", so ids that
// contain the separator cannot collide.
func sessionField(key domain.SessionKey) string {
	return url.QueryEscape(key.AssessmentID) + ":" +
		url.QueryEscape(key.CandidateID) + ":" +
		url.QueryEscape(key.QuestionID)
}

// RedisSessionStore keeps each session as one JSON document. Updates are
// optimistic WATCH/MULTI/EXEC transactions, retried when another writer
// touches the key first.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisSessionStore(client *redis.Client, prefix string) ports.SessionStore {
	return &RedisSessionStore{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisSessionStore) sessionKey(key domain.SessionKey) string {
	return r.prefix + "session:" + sessionField(key)
}

func (r *RedisSessionStore) FindSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	return r.get(ctx, r.client, r.sessionKey(key))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisSessionStore) get(ctx context.Context, c getter, redisKey string) (*domain.Session, error) {
	data, err := c.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Whiteboard == nil {
		session.Whiteboard = domain.Whiteboard{}
	}
	if session.CodeEvents == nil {
		session.CodeEvents = []domain.CodeEvent{}
	}
	if session.WhiteboardEvents == nil {
		session.WhiteboardEvents = []domain.WhiteboardEvent{}
	}
	return &session, nil
}

func (r *RedisSessionStore) CreateSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	session := domain.NewSession(key, r.now())
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.sessionKey(key), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session in Redis: %w", err)
	}
	if !created {
		return r.FindSession(ctx, key)
	}
	return session, nil
}

func (r *RedisSessionStore) UpdateSession(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	redisKey := r.sessionKey(key)

	txf := func(tx *redis.Tx) error {
		session, err := r.get(ctx, tx, redisKey)
		if err != nil {
			return err
		}
		session.Apply(update, r.now())

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("session %s: %w", key, redis.TxFailedErr)
}
