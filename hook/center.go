// Package hook fans committed content changes out to registered handlers.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kasuganosora/questfolio/content"
	"go.uber.org/zap"
)

// ErrInterrupt stops the remaining handlers for a change.
var ErrInterrupt = errors.New("hook interrupted")

// Fn handles one change. Other errors are logged and do not stop the chain.
type Fn func(ctx context.Context, ch content.Change) error

// Names of the handlers main registers.
const (
	ViewCache  = "view_cache"
	Activity   = "activity"
	TagRanking = "tag_ranking"
)

type entry struct {
	priority int
	name     string
	kinds    map[string]bool // nil matches every kind
	fn       Fn
}

// Center keeps handlers ordered by priority, lower first.
type Center struct {
	mu      sync.RWMutex
	entries []*entry
	logger  *zap.Logger
}

// NewCenter creates an empty Center.
func NewCenter(logger *zap.Logger) *Center {
	return &Center{logger: logger}
}

// On registers fn under name. When kinds is non-empty fn only sees changes
// of those kinds. Handlers with equal priority run in registration order.
func (hc *Center) On(name string, priority int, fn Fn, kinds ...string) {
	e := &entry{priority: priority, name: name, fn: fn}
	if len(kinds) > 0 {
		e.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			e.kinds[k] = true
		}
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.entries = append(hc.entries, e)
	sort.SliceStable(hc.entries, func(i, j int) bool {
		return hc.entries[i].priority < hc.entries[j].priority
	})
}

// Names lists registered handler names in run order. The ops metrics
// endpoint reports them.
func (hc *Center) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	out := make([]string, len(hc.entries))
	for i, e := range hc.entries {
		out[i] = e.name
	}
	return out
}

// Notify runs the matching handlers for ch. It has the content.Notifier
// signature.
func (hc *Center) Notify(ctx context.Context, ch content.Change) {
	hc.mu.RLock()
	entries := make([]*entry, len(hc.entries))
	copy(entries, hc.entries)
	hc.mu.RUnlock()

	for _, e := range entries {
		if e.kinds != nil && !e.kinds[ch.Kind] {
			continue
		}
		err := e.fn(ctx, ch)
		if errors.Is(err, ErrInterrupt) {
			return
		}
		if err != nil {
			hc.logger.Warn("change hook failed",
				zap.String("hook", e.name), zap.String("kind", ch.Kind),
				zap.String("id", ch.ID), zap.Error(err))
		}
	}
}
