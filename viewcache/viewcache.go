// Package viewcache caches assembled public views and drops them whenever
// content changes on any instance.
package viewcache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/content"
	"go.uber.org/zap"
)

const (
	// ChangesChannel carries content.Change events as JSON.
	ChangesChannel = "content.changed"

	genKey    = "views:gen"
	keyPrefix = "view:"

	defaultTTL = 5 * time.Minute
)

// Views is a TTL cache of JSON-encoded views. Every stored key carries the
// generation it was loaded at; Invalidate moves to the next generation and
// older entries are left to expire.
type Views struct {
	c      cache.Cache
	ps     cache.PubSub
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a view cache. ttl <= 0 uses five minutes.
func New(c cache.Cache, ps cache.PubSub, ttl time.Duration, logger *zap.Logger) *Views {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Views{c: c, ps: ps, ttl: ttl, logger: logger}
}

// Gen returns the current generation. Read it before loading a view and
// hand it to Put.
func (v *Views) Gen(ctx context.Context) (int64, error) {
	raw, err := v.c.Get(ctx, genKey)
	if cache.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func entryKey(gen int64, key string) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + key
}

// Lookup decodes the current view for key into dst. It returns the
// generation it read, or -1 when the cache is unreachable.
func (v *Views) Lookup(ctx context.Context, key string, dst interface{}) (gen int64, found bool) {
	gen, err := v.Gen(ctx)
	if err != nil {
		v.logger.Warn("view cache generation read failed", zap.Error(err))
		return -1, false
	}
	raw, err := v.c.Get(ctx, entryKey(gen, key))
	if err != nil {
		if !cache.IsNotFound(err) {
			v.logger.Warn("view cache read failed", zap.String("key", key), zap.Error(err))
		}
		return gen, false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		v.logger.Warn("view cache entry corrupt", zap.String("key", key), zap.Error(err))
		_ = v.c.Del(ctx, entryKey(gen, key))
		return gen, false
	}
	return gen, true
}

// Put stores view under key for generation gen. Nothing is written when the
// cache has moved past gen since the view was loaded. Failures are logged,
// not returned.
func (v *Views) Put(ctx context.Context, gen int64, key string, view interface{}) {
	if gen < 0 {
		return
	}
	cur, err := v.Gen(ctx)
	if err != nil {
		v.logger.Warn("view cache generation read failed", zap.Error(err))
		return
	}
	if cur != gen {
		v.logger.Debug("stale view not cached", zap.String("key", key),
			zap.Int64("gen", gen), zap.Int64("current", cur))
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		v.logger.Warn("view cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	// A concurrent Invalidate leaves this entry under an unread generation.
	if err := v.c.Set(ctx, entryKey(gen, key), string(raw), v.ttl); err != nil {
		v.logger.Warn("view cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached view.
func (v *Views) Invalidate(ctx context.Context) error {
	_, err := v.c.Incr(ctx, genKey)
	return err
}

// Notify publishes ch so every instance drops its views. It has the
// content.Notifier signature.
func (v *Views) Notify(ctx context.Context, ch content.Change) {
	raw, _ := json.Marshal(ch)
	if err := v.ps.Publish(ctx, ChangesChannel, string(raw)); err != nil {
		v.logger.Warn("publish content change failed", zap.Error(err))
		// Still drop the local views.
		if err := v.Invalidate(ctx); err != nil {
			v.logger.Warn("view cache invalidate failed", zap.Error(err))
		}
	}
}

// Run invalidates the cache for every published change until ctx is done.
// The subscription is live when Run returns.
func (v *Views) Run(ctx context.Context) error {
	msgs, cancel, err := v.ps.Subscribe(ctx, ChangesChannel)
	if err != nil {
		return err
	}
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ch content.Change
				if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
					v.logger.Warn("bad content change message", zap.String("payload", msg.Payload))
				}
				if err := v.Invalidate(context.WithoutCancel(ctx)); err != nil {
					v.logger.Warn("view cache invalidate failed", zap.Error(err))
					continue
				}
				v.logger.Debug("view cache invalidated",
					zap.String("kind", ch.Kind), zap.String("id", ch.ID), zap.String("action", ch.Action))
			}
		}
	}()
	return nil
}
