package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/viewcache"
	"go.uber.org/zap"
)

const (
	tagRankingKey   = "ranking:tags"
	tagRankingNext  = "ranking:tags:next"
	tagRankingLock  = "lock:ranking:tags"
	questLogLock    = "lock:questlog"
	rankingTop      = 100
	refreshLockTime = time.Minute
)

// ErrRefreshBusy is returned when another instance holds the refresh lock.
var ErrRefreshBusy = errors.New("refresh already running elsewhere")

// RankingHandler serves the tag popularity ranking and owns the scheduled
// refreshes of the ranking and the cached quest log.
type RankingHandler struct {
	svc    *content.Service
	cache  cache.Cache
	views  *viewcache.Views
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(svc *content.Service, c cache.Cache, views *viewcache.Views, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{svc: svc, cache: c, views: views, logger: logger}
}

// RankEntry is one row in the tag ranking.
type RankEntry struct {
	Rank  int    `json:"rank"`
	TagID string `json:"tag_id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Uses  int64  `json:"uses"`
}

// PopularTags returns the most used public tags.
// GET /api/public/tags/popular?limit=20
func (h *RankingHandler) PopularTags(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}
	ctx := c.Request.Context()

	// Try cached ranking from sorted set.
	members, err := h.cache.ZRevRange(ctx, tagRankingKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries, err := h.fromRanking(ctx, members)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"ranking": entries})
			return
		}
		h.logger.Warn("tag ranking enrich failed", zap.Error(err))
	}

	// Fall back to DB query.
	usage, err := h.svc.TagUsage(ctx, limit)
	if err != nil {
		fail(c, err)
		return
	}
	entries := make([]RankEntry, len(usage))
	for i, u := range usage {
		entries[i] = RankEntry{Rank: i + 1, TagID: u.ID, Name: u.Name, Color: u.Color, Uses: u.Uses}
		_ = h.cache.ZAdd(ctx, tagRankingKey, float64(u.Uses), u.ID)
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

func (h *RankingHandler) fromRanking(ctx context.Context, members []string) ([]RankEntry, error) {
	tags, err := h.svc.TagsByID(ctx, members)
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, 0, len(members))
	for _, id := range members {
		tag, found := tags[id]
		if !found {
			continue // deleted since the last refresh
		}
		score, _ := h.cache.ZScore(ctx, tagRankingKey, id)
		entries = append(entries, RankEntry{
			Rank:  len(entries) + 1,
			TagID: id,
			Name:  tag.Name,
			Color: tag.Color,
			Uses:  int64(score),
		})
	}
	return entries, nil
}

// RefreshTagRanking rebuilds the ranking sorted set from the DB. The new
// set is built aside and renamed over the old one, so readers never see a
// partial ranking. Only one instance refreshes at a time.
func (h *RankingHandler) RefreshTagRanking(ctx context.Context) error {
	return h.locked(ctx, tagRankingLock, func(ctx context.Context) error {
		usage, err := h.svc.TagUsage(ctx, rankingTop)
		if err != nil {
			return err
		}
		if len(usage) == 0 {
			return h.cache.Del(ctx, tagRankingKey)
		}
		if err := h.cache.Del(ctx, tagRankingNext); err != nil {
			return err
		}
		for _, u := range usage {
			if err := h.cache.ZAdd(ctx, tagRankingNext, float64(u.Uses), u.ID); err != nil {
				return err
			}
		}
		if err := h.cache.Rename(ctx, tagRankingNext, tagRankingKey); err != nil {
			return err
		}
		h.logger.Debug("tag ranking refreshed", zap.Int("tags", len(usage)))
		return nil
	})
}

// RefreshQuestLog recomputes the public quest log and stores it where
// PublicHandler.QuestLog reads it.
func (h *RankingHandler) RefreshQuestLog(ctx context.Context) error {
	return h.locked(ctx, questLogLock, func(ctx context.Context) error {
		gen, err := h.views.Gen(ctx)
		if err != nil {
			return err
		}
		// Always the anonymous view, whatever the caller.
		log, err := h.svc.QuestLogSummary(content.WithViewer(ctx, content.Viewer{}))
		if err != nil {
			return err
		}
		h.views.Put(ctx, gen, QuestLogCacheKey, log)
		return nil
	})
}

func (h *RankingHandler) locked(ctx context.Context, lock string, fn func(ctx context.Context) error) error {
	got, err := h.cache.SetNX(ctx, lock, "1", refreshLockTime)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", lock, err)
	}
	if !got {
		return ErrRefreshBusy
	}
	defer func() { _ = h.cache.Del(context.WithoutCancel(ctx), lock) }()
	return fn(ctx)
}
