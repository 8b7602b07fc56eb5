package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/touripk/support-desk/internal/config"
)

// ErrRedisUnavailable is returned when no client was configured.
var ErrRedisUnavailable = errors.New("redis client not configured")

// releaseScript deletes a lock only while it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisUnavailable
	}
	return r.Client.Ping(ctx).Err()
}

// TryLock acquires key for ttl when nobody else holds it. token identifies the holder.
func (r *Redis) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return false, ErrRedisUnavailable
	}
	return r.Client.SetNX(ctx, key, token, ttl).Result()
}

// Unlock releases key if token still owns it. An expired or foreign lock is left alone.
func (r *Redis) Unlock(ctx context.Context, key, token string) error {
	if r == nil || r.Client == nil {
		return ErrRedisUnavailable
	}
	err := releaseScript.Run(ctx, r.Client, []string{key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
