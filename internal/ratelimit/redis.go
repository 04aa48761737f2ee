package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type redisLimiter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisLimiter creates a limiter shared by every gateway instance pointing at the
// same Redis. It fails open when Redis errors after start-up.
func NewRedisLimiter(addr, password string, db int) (Limiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return newRedisLimiter(client), nil
}

func newRedisLimiter(client *redis.Client) *redisLimiter {
	return &redisLimiter{
		client:  client,
		prefix:  "gateway:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (rl *redisLimiter) Allow(key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	var incr *redis.IntCmd
	var ttlCmd *redis.DurationCmd
	// The key and its expiry are created together so a crash cannot leave a counter without a TTL.
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		incr = pipe.Incr(ctx, redisKey)
		ttlCmd = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("op", "incr").Msg("Redis rate limiter error")
		return Decision{Allowed: true}
	}
	counter := incr.Val()
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		ttl = window
	}
	return Decision{
		Allowed:   int(counter) <= limit,
		Count:     int(counter),
		WindowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}
