package rest

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/hook"
	"github.com/kasuganosora/questfolio/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler task names shared by main and the ops endpoints.
const (
	TaskQuestLogRefresh = "questlog_refresh"
	TaskTagRanking      = "tag_ranking_refresh"
)

// OpsHandler serves operator endpoints guarded by AdminAuth.
type OpsHandler struct {
	db      *gorm.DB
	sched   *scheduler.Scheduler
	hooks   *hook.Center
	started time.Time
	logger  *zap.Logger
}

// NewOpsHandler creates an OpsHandler. hooks may be nil.
func NewOpsHandler(db *gorm.DB, sched *scheduler.Scheduler, hooks *hook.Center, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{db: db, sched: sched, hooks: hooks, started: time.Now(), logger: logger}
}

// Metrics returns server health metrics.
// GET /api/ops/metrics
func (h *OpsHandler) Metrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	out := gin.H{
		"uptime_s":        int64(time.Since(h.started).Seconds()),
		"goroutines":      runtime.NumGoroutine(),
		"heap_alloc":      mem.HeapAlloc,
		"scheduler_tasks": h.sched.ListTickers(),
	}
	if h.hooks != nil {
		out["change_hooks"] = h.hooks.Names()
	}
	if sqlDB, err := h.db.DB(); err == nil {
		st := sqlDB.Stats()
		out["db"] = gin.H{
			"open":          st.OpenConnections,
			"in_use":        st.InUse,
			"idle":          st.Idle,
			"wait_count":    st.WaitCount,
			"wait_duration": st.WaitDuration.String(),
		}
	}
	c.JSON(http.StatusOK, out)
}

// ListSchedulerTasks returns run statistics of all registered ticker tasks.
// GET /api/ops/scheduler
func (h *OpsHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// RunTask runs a named scheduler task now.
// POST /api/ops/scheduler/:name/run
func (h *OpsHandler) RunTask(c *gin.Context) {
	h.run(c, c.Param("name"))
}

// RefreshQuestLog rebuilds the cached public quest log.
// POST /api/ops/questlog/refresh
func (h *OpsHandler) RefreshQuestLog(c *gin.Context) {
	h.run(c, TaskQuestLogRefresh)
}

func (h *OpsHandler) run(c *gin.Context, name string) {
	err := h.sched.RunNow(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownTask):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Warn("manual task run failed", zap.String("task", name), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "task": name})
	}
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all ops endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable them.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "ops endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
