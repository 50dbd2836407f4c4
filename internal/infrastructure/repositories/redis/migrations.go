package redis

import (
	"context"
	"fmt"
	"time"

	"codemeet/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 2

// Migration moves the key schema under a prefix from Version-1 to Version.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, prefix string) error
}

func schemaVersionKey(prefix string) string {
	return prefix + "schema:version"
}

func schemaLockKey(prefix string) string {
	return prefix + "schema:lock"
}

const (
	migrationLockTTL  = 30 * time.Second
	migrationLockWait = 10 * time.Second
)

// Migrate runs all pending migrations. Instances sharing a prefix take a
// lock first so only one of them migrates.
func Migrate(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) error {
	lock := distributed.NewLock(client, schemaLockKey(prefix), migrationLockTTL)
	if err := lock.Acquire(ctx, migrationLockWait); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && logger != nil {
			logger.Warnw("failed to release migration lock", "error", err)
		}
	}()

	currentVersion, err := getSchemaVersion(ctx, client, prefix)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("redis schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running redis migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client, prefix); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, prefix, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("redis migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey(prefix)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, prefix string, version int) error {
	return client.Set(ctx, schemaVersionKey(prefix), version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// 1: the video room index is a set of room ids.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, prefix string) error {
				index := videoIndexKey(prefix)
				kind, err := client.Type(ctx, index).Result()
				if err != nil {
					return err
				}
				if kind != "none" && kind != "set" {
					return client.Del(ctx, index).Err()
				}
				return nil
			},
		},
		{
			// 2: drop index entries whose room document is gone.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client, prefix string) error {
				index := videoIndexKey(prefix)
				ids, err := client.SMembers(ctx, index).Result()
				if err != nil {
					return err
				}
				for _, id := range ids {
					n, err := client.Exists(ctx, videoRoomKey(prefix, id)).Result()
					if err != nil {
						return err
					}
					if n == 0 {
						if err := client.SRem(ctx, index, id).Err(); err != nil {
							return err
						}
					}
				}
				return nil
			},
		},
	}
}
