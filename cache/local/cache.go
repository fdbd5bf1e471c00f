package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

// entry holds a cached string value with an optional expiry.
type entry struct {
	data     string
	expireAt time.Time
}

func newEntry(value string, ttl time.Duration) *entry {
	e := &entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	return e
}

func (e *entry) expired() bool {
	return !e.expireAt.IsZero() && time.Now().After(e.expireAt)
}

// LocalCache is an in-process cache for single-node deployments and tests.
type LocalCache struct {
	mu     sync.Mutex // serializes SetNX, Incr and Rename
	kv     sync.Map   // key → *entry
	zsets  sync.Map   // key → *zset
	lists  sync.Map   // key → *lockedList
	stopGC chan struct{}
	once   sync.Once
}

// NewCache creates a LocalCache and starts the background GC goroutine.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{stopGC: make(chan struct{})}
	go c.runGC(interval)
	return c, nil
}

// Close stops the background GC goroutine. It is safe to call twice.
func (c *LocalCache) Close() error {
	c.once.Do(func() { close(c.stopGC) })
	return nil
}

func (c *LocalCache) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.kv.Range(func(k, v interface{}) bool {
				if v.(*entry).expired() {
					c.kv.Delete(k)
				}
				return true
			})
		case <-c.stopGC:
			return
		}
	}
}

// ---- KV ----

func (c *LocalCache) load(key string) (*entry, bool) {
	v, ok := c.kv.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if e.expired() {
		c.kv.Delete(key)
		return nil, false
	}
	return e, true
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	e, ok := c.load(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.kv.Store(key, newEntry(value, ttl))
	return nil
}

// Del removes keys of every type.
func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.kv.Delete(k)
		c.zsets.Delete(k)
		c.lists.Delete(k)
	}
	return nil
}

func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.load(key); ok {
		return false, nil
	}
	c.kv.Store(key, newEntry(value, ttl))
	return true, nil
}

// Incr adds one to the integer at key, starting from zero. An existing
// expiry is kept.
func (c *LocalCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := &entry{data: "1"}
	if e, ok := c.load(key); ok {
		n, err := strconv.ParseInt(e.data, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: value at %q is not an integer", key)
		}
		next = &entry{data: strconv.FormatInt(n+1, 10), expireAt: e.expireAt}
	}
	c.kv.Store(key, next)
	return strconv.ParseInt(next.data, 10, 64)
}

// Rename moves src over dst, dropping whatever dst held. It returns
// ErrNotFound when src does not exist.
func (c *LocalCache) Rename(_ context.Context, src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src == dst {
		if _, ok := c.load(src); ok {
			return nil
		}
		_, zok := c.zsets.Load(src)
		_, lok := c.lists.Load(src)
		if zok || lok {
			return nil
		}
		return ErrNotFound
	}
	var (
		store *sync.Map
		val   interface{}
	)
	if e, ok := c.load(src); ok {
		store, val = &c.kv, e
	} else if v, ok := c.zsets.Load(src); ok {
		store, val = &c.zsets, v
	} else if v, ok := c.lists.Load(src); ok {
		store, val = &c.lists, v
	} else {
		return ErrNotFound
	}
	c.kv.Delete(dst)
	c.zsets.Delete(dst)
	c.lists.Delete(dst)
	store.Store(dst, val)
	store.Delete(src)
	return nil
}

// ---- ZSet ----

type zset struct {
	mu     sync.Mutex
	scores map[string]float64
}

func (c *LocalCache) getOrCreateZSet(key string) *zset {
	v, _ := c.zsets.LoadOrStore(key, &zset{scores: make(map[string]float64)})
	return v.(*zset)
}

func (c *LocalCache) ZAdd(_ context.Context, key string, score float64, member string) error {
	z := c.getOrCreateZSet(key)
	z.mu.Lock()
	z.scores[member] = score
	z.mu.Unlock()
	return nil
}

// ZRevRange returns members by descending score; ties order by member
// descending, matching Redis.
func (c *LocalCache) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	v, ok := c.zsets.Load(key)
	if !ok {
		return []string{}, nil
	}
	z := v.(*zset)
	z.mu.Lock()
	members := make([]string, 0, len(z.scores))
	for m := range z.scores {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z.scores[members[i]], z.scores[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})
	z.mu.Unlock()
	return sliceRange(members, start, stop), nil
}

func (c *LocalCache) ZScore(_ context.Context, key, member string) (float64, error) {
	v, ok := c.zsets.Load(key)
	if !ok {
		return 0, ErrNotFound
	}
	z := v.(*zset)
	z.mu.Lock()
	defer z.mu.Unlock()
	score, ok := z.scores[member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

// ---- List ----

type lockedList struct {
	mu   sync.Mutex
	data []string
}

func (c *LocalCache) getOrCreateList(key string) *lockedList {
	v, _ := c.lists.LoadOrStore(key, &lockedList{})
	return v.(*lockedList)
}

// LPush prepends values one by one, so the last value ends up at index 0.
func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	l := c.getOrCreateList(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	head := make([]string, len(values), len(values)+len(l.data))
	for i, v := range values {
		head[len(values)-1-i] = v
	}
	l.data = append(head, l.data...)
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	v, ok := c.lists.Load(key)
	if !ok {
		return []string{}, nil
	}
	l := v.(*lockedList)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := sliceRange(l.data, start, stop)
	return append([]string(nil), out...), nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	v, ok := c.lists.Load(key)
	if !ok {
		return nil
	}
	l := v.(*lockedList)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = append([]string(nil), sliceRange(l.data, start, stop)...)
	return nil
}

// sliceRange applies Redis-style inclusive indexes; negative values count
// from the end.
func sliceRange(s []string, start, stop int64) []string {
	n := int64(len(s))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []string{}
	}
	return s[start : stop+1]
}
