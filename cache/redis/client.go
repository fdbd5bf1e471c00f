package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds Redis connection settings. Prefix is prepended to every key
// and channel so several deployments can share one Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Dial opens a client and pings it.
func Dial(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RedisCache is the Redis-backed cache.
type RedisCache struct {
	client *goredis.Client
	prefix string
}

// NewCache wraps an open client.
func NewCache(client *goredis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) k(key string) string { return r.prefix + key }

func (r *RedisCache) ks(keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = r.prefix + key
	}
	return out
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// Close closes the underlying client.
func (r *RedisCache) Close() error { return r.client.Close() }

// ---- KV ----

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.k(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.k(key), value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, r.ks(keys)...).Err()
}

func (r *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.k(key), value, ttl).Result()
}

func (r *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, r.k(key)).Result()
}

// Rename returns ErrNotFound when src does not exist.
func (r *RedisCache) Rename(ctx context.Context, src, dst string) error {
	n, err := r.client.Exists(ctx, r.k(src)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.client.Rename(ctx, r.k(src), r.k(dst)).Err()
}

// ---- ZSet ----

func (r *RedisCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, r.k(key), goredis.Z{Score: score, Member: member}).Err()
}

func (r *RedisCache) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRevRange(ctx, r.k(key), start, stop).Result()
}

func (r *RedisCache) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := r.client.ZScore(ctx, r.k(key), member).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, ErrNotFound
	}
	return v, err
}

// ---- List ----

func (r *RedisCache) LPush(ctx context.Context, key string, values ...string) error {
	return r.client.LPush(ctx, r.k(key), toArgs(values)...).Err()
}

func (r *RedisCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, r.k(key), start, stop).Result()
}

func (r *RedisCache) LTrim(ctx context.Context, key string, start, stop int64) error {
	return r.client.LTrim(ctx, r.k(key), start, stop).Err()
}

// ---- PubSub ----

// RedisMessage is the message type returned by RedisPubSub.Subscribe.
// Channel has the prefix removed.
type RedisMessage struct {
	Channel string
	Payload string
}

// RedisPubSub publishes and subscribes on prefixed Redis channels.
type RedisPubSub struct {
	client *goredis.Client
	prefix string
}

// NewPubSub wraps an open client.
func NewPubSub(client *goredis.Client, prefix string) *RedisPubSub {
	return &RedisPubSub{client: client, prefix: prefix}
}

func (r *RedisPubSub) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, r.prefix+channel, message).Err()
}

func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *RedisMessage, func(), error) {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = r.prefix + c
	}
	ps := r.client.Subscribe(ctx, names...)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	ch := make(chan *RedisMessage, 256)

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			ch <- &RedisMessage{Channel: msg.Channel[len(r.prefix):], Payload: msg.Payload}
		}
	}()

	cancel := func() {
		_ = ps.Close()
	}
	return ch, cancel, nil
}
