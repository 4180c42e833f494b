package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/redisflight/config"
)

// compareAndDelete deletes KEYS[1] only if it still holds ARGV[1].
var compareAndDelete = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const scanCount = 256

// Redis is a Handle backed by a single go-redis connection.
type Redis struct {
	rdb    *goredis.Client
	addr   string
	closed atomic.Bool
}

var _ Handle = (*Redis)(nil)

// Options maps a connection config onto go-redis options. The resulting client
// holds at most one connection; pooling is done by the caller.
func Options(cfg config.Config) (*goredis.Options, error) {
	cfg = cfg.WithDefaults()
	o := &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.ConnectTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     1,
		MinIdleConns: 0,
		// reconnect attempts belong to Dial; commands are not replayed
		MaxRetries: -1,
	}
	if cfg.RetryInterval > 0 {
		o.MinRetryBackoff = cfg.RetryInterval
		o.MaxRetryBackoff = cfg.RetryInterval
	}
	if err := ApplyOptions(o, cfg.Options); err != nil {
		return nil, err
	}
	return o, nil
}

// Dial opens a handle and verifies it with PING, retrying up to RetryCount
// additional times with RetryInterval between attempts.
func Dial(ctx context.Context, cfg config.Config) (*Redis, error) {
	cfg = cfg.WithDefaults()
	opts, err := Options(cfg)
	if err != nil {
		return nil, &ConnectionError{Addr: cfg.Addr(), Attempts: 0, Err: err}
	}

	attempts := 0
	h, err := retry.NewWithData[*Redis](
		retry.Context(ctx),
		retry.Attempts(uint(cfg.RetryCount)+1),
		retry.Delay(cfg.RetryInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() (*Redis, error) {
		attempts++
		rdb := goredis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return &Redis{rdb: rdb, addr: opts.Addr}, nil
	})
	if err != nil {
		return nil, &ConnectionError{Addr: opts.Addr, Attempts: attempts, Err: err}
	}
	return h, nil
}

// NewDialer binds cfg into a Dialer for the pool.
func NewDialer(cfg config.Config) Dialer {
	return func(ctx context.Context) (Handle, error) {
		h, err := Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// Addr returns the server address this handle talks to.
func (r *Redis) Addr() string { return r.addr }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.Expire(ctx, key, ttl).Result()
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	switch {
	case d == -2 || d == -2*time.Second:
		return 0, false, nil
	case d < 0:
		return 0, true, nil
	default:
		return d, true, nil
	}
}

func (r *Redis) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.rdb.Exists(ctx, keys...).Result()
}

func (r *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return r.rdb.Del(ctx, keys...).Result()
}

func (r *Redis) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	n, err := compareAndDelete.Run(ctx, r.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) Scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close is safe to call more than once.
func (r *Redis) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
