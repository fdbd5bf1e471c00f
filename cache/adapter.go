package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kasuganosora/questfolio/cache/local"
	cacheredis "github.com/kasuganosora/questfolio/cache/redis"
	"github.com/kasuganosora/questfolio/config"
)

// Cache holds sessions and the view-cache generation (KV), the tag ranking
// (ZSet) and the admin activity feed (List).
type Cache interface {
	// KV
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	// Rename moves src over dst, replacing dst whatever its type.
	Rename(ctx context.Context, src, dst string) error

	// ZSet
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)

	// List
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	Close() error
}

var (
	_ Cache = (*local.LocalCache)(nil)
	_ Cache = (*cacheredis.RedisCache)(nil)
)

// IsNotFound reports whether err is a missing-key error from either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

func redisConfig(cfg config.CacheConfig) cacheredis.Config {
	return cacheredis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.KeyPrefix,
	}
}

// NewCache returns a Cache backed by Redis if RedisAddr is set,
// otherwise an in-process LocalCache.
func NewCache(cfg config.CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		client, err := cacheredis.Dial(redisConfig(cfg))
		if err != nil {
			return nil, err
		}
		return cacheredis.NewCache(client, cfg.KeyPrefix), nil
	}
	return local.NewCache(local.Config{
		GCInterval: cfg.LocalGCInterval,
	})
}

// NewPubSub returns a PubSub backed by Redis if RedisAddr is set,
// otherwise an in-process LocalPubSub.
func NewPubSub(cfg config.CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		client, err := cacheredis.Dial(redisConfig(cfg))
		if err != nil {
			return nil, err
		}
		return &redisPubSubAdapter{ps: cacheredis.NewPubSub(client, cfg.KeyPrefix)}, nil
	}
	return &localPubSubAdapter{ps: local.NewPubSub(cfg.LocalPubSubBuf)}, nil
}

// ---- adapters to bridge sub-package message types to cache.Message ----

type localPubSubAdapter struct {
	ps *local.LocalPubSub
}

func (a *localPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *localPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	ch, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return relay(ch, func(m *local.LocalMessage) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}

type redisPubSubAdapter struct {
	ps *cacheredis.RedisPubSub
}

func (a *redisPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *redisPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	ch, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return relay(ch, func(m *cacheredis.RedisMessage) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}

func relay[T any](in <-chan T, conv func(T) *Message) <-chan *Message {
	out := make(chan *Message, cap(in))
	go func() {
		defer close(out)
		for msg := range in {
			out <- conv(msg)
		}
	}()
	return out
}
