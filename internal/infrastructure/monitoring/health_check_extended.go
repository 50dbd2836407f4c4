package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

func (h *HealthChecker) AddMongoCheck(client *mongo.Client, interval, timeout time.Duration) {
	h.AddCheck("mongo", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddGatewayCheck reports unhealthy when the dispatch loop stops answering.
func (h *HealthChecker) AddGatewayCheck(ping func(ctx context.Context) error, interval, timeout time.Duration) {
	h.AddCheck("gateway", func(ctx context.Context) (bool, error) {
		if err := ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
