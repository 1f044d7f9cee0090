package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets how long a held lock survives a crashed holder.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithRetryDelay sets the pause between acquisition attempts.
func WithRetryDelay(d time.Duration) RedisOption {
	return func(r *Redis) { r.retryDelay = d }
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithLogger sets the logger for release failures.
func WithLogger(log *zap.Logger) RedisOption {
	return func(r *Redis) { r.log = log }
}

// Redis is a Locker backed by SET NX PX, for engines running in more than
// one process against the same store.
type Redis struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
	log        *zap.Logger
}

// NewRedis returns a Redis locker using client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:     client,
		ttl:        30 * time.Second,
		retryDelay: 50 * time.Millisecond,
		prefix:     "adaptest:lock:",
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Lock acquires key, retrying until ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(r.retryDelay):
		}
	}

	return func() {
		// Release even if the caller's context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := unlockScript.Run(ctx, r.client, []string{name}, token).Int64()
		if err != nil {
			r.log.Warn("release lock", zap.String("key", name), zap.Error(err))
			return
		}
		if n == 0 {
			r.log.Warn("lock expired before release", zap.String("key", name))
		}
	}, nil
}
