// Package activity keeps a short feed of recent content changes for the
// admin dashboard.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/content"
	"go.uber.org/zap"
)

const (
	feedKey = "activity:feed"
	// MaxEntries is how many changes the feed retains.
	MaxEntries = 100
)

// Entry is one recorded change.
type Entry struct {
	content.Change
	AccountID int64     `json:"account_id,omitempty"`
	At        time.Time `json:"at"`
}

// Feed stores entries newest first in a capped cache list.
type Feed struct {
	c      cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewFeed creates a Feed.
func NewFeed(c cache.Cache, logger *zap.Logger) *Feed {
	return &Feed{c: c, logger: logger, now: time.Now}
}

// Record appends ch. It has the content.Notifier signature; failures are
// logged because the mutation has already committed.
func (f *Feed) Record(ctx context.Context, ch content.Change) {
	e := Entry{Change: ch, AccountID: content.ViewerFrom(ctx).AccountID, At: f.now().UTC()}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := f.c.LPush(ctx, feedKey, string(raw)); err != nil {
		f.logger.Warn("activity record failed", zap.Error(err))
		return
	}
	if err := f.c.LTrim(ctx, feedKey, 0, MaxEntries-1); err != nil {
		f.logger.Warn("activity trim failed", zap.Error(err))
	}
}

// Recent returns up to n entries, newest first.
func (f *Feed) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 || n > MaxEntries {
		n = MaxEntries
	}
	raw, err := f.c.LRange(ctx, feedKey, 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			f.logger.Warn("skipping bad activity entry", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
