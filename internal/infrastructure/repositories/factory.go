package repositories

import (
	"context"
	"errors"

	"codemeet/internal/core/ports"
	"codemeet/internal/infrastructure/repositories/memory"
	mongorepo "codemeet/internal/infrastructure/repositories/mongo"
	redisrepo "codemeet/internal/infrastructure/repositories/redis"
	"codemeet/pkg/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// RepositoryFactory builds the room and session stores named in the config.
// A backend that cannot be reached at startup falls back to memory.
type RepositoryFactory struct {
	roomsBackend    string
	sessionsBackend string
	redisPrefix     string
	instanceID      string

	redisClient *redis.Client
	mongoClient *mongo.Client
	mongoColl   *mongo.Collection

	cfg    *config.Config
	logger *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		roomsBackend:    cfg.Rooms.Backend,
		sessionsBackend: cfg.Sessions.Backend,
		redisPrefix:     cfg.Redis.KeyPrefix,
		instanceID:      cfg.Rooms.InstanceID,
		cfg:             cfg,
		logger:          logger,
	}
	if factory.redisPrefix == "" {
		factory.redisPrefix = redisrepo.DefaultKeyPrefix
	}
	if factory.instanceID == "" {
		factory.instanceID = uuid.NewString()
	}

	if cfg.UsesRedis() {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			factory.redisPrefix,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.fallback(config.BackendRedis)
		} else {
			factory.redisClient = client
		}
	}

	if factory.sessionsBackend == config.BackendMongo {
		client, err := mongorepo.NewMongoClient(cfg.Mongo.URI, cfg.Mongo.ConnectTimeout, logger)
		if err != nil {
			logger.Warnw("failed to connect to MongoDB, falling back to memory session store",
				"error", err,
			)
			factory.fallback(config.BackendMongo)
		} else {
			factory.mongoClient = client
			factory.mongoColl = client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
			if err := mongorepo.EnsureIndexes(ctx, factory.mongoColl); err != nil {
				logger.Warnw("failed to ensure attempt indexes", "error", err)
			}
			cancel()
		}
	}

	logger.Infow("repositories configured",
		"rooms_backend", factory.roomsBackend,
		"sessions_backend", factory.sessionsBackend,
	)
	return factory, nil
}

func (f *RepositoryFactory) fallback(backend string) {
	if f.roomsBackend == backend {
		f.roomsBackend = config.BackendMemory
	}
	if f.sessionsBackend == backend {
		f.sessionsBackend = config.BackendMemory
	}
}

// InstanceID names this process's room key space in Redis.
func (f *RepositoryFactory) InstanceID() string { return f.instanceID }

// RoomsBackend and SessionsBackend report the backends actually in use.
func (f *RepositoryFactory) RoomsBackend() string    { return f.roomsBackend }
func (f *RepositoryFactory) SessionsBackend() string { return f.sessionsBackend }

func (f *RepositoryFactory) CreateRoomStore() ports.RoomStore {
	if f.roomsBackend == config.BackendRedis && f.redisClient != nil {
		return redisrepo.NewRedisRoomStore(f.redisClient, f.redisPrefix, f.instanceID, f.cfg.Rooms.TTL)
	}
	return memory.NewMemoryRoomStore()
}

func (f *RepositoryFactory) CreateSessionStore() ports.SessionStore {
	switch {
	case f.sessionsBackend == config.BackendRedis && f.redisClient != nil:
		return redisrepo.NewRedisSessionStore(f.redisClient, f.redisPrefix)
	case f.sessionsBackend == config.BackendMongo && f.mongoColl != nil:
		return mongorepo.NewMongoSessionStore(f.mongoColl)
	default:
		return memory.NewMemorySessionStore()
	}
}

// RedisClient is nil unless a Redis backend is in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// MongoClient is nil unless the Mongo session store is in use.
func (f *RepositoryFactory) MongoClient() *mongo.Client {
	return f.mongoClient
}

func (f *RepositoryFactory) Close() error {
	var errs []error
	if f.redisClient != nil {
		errs = append(errs, redisrepo.CloseRedisClient(f.redisClient))
	}
	if f.mongoClient != nil {
		errs = append(errs, mongorepo.CloseMongoClient(f.mongoClient))
	}
	return errors.Join(errs...)
}

// HealthCheck pings every connected backend.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	if f.mongoClient != nil {
		if err := f.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			return err
		}
	}
	return nil
}
