package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/activity"
	"github.com/kasuganosora/questfolio/api/sse"
	"github.com/kasuganosora/questfolio/api/ws"
	"github.com/kasuganosora/questfolio/audit"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/hook"
	mw "github.com/kasuganosora/questfolio/middleware"
	"github.com/kasuganosora/questfolio/scheduler"
	"github.com/kasuganosora/questfolio/viewcache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Content *content.Service
	Auth    *auth.Service
	Cache   cache.Cache
	PubSub  cache.PubSub
	Views   *viewcache.Views
	Audit   *audit.Service
	Feed    *activity.Feed
	Avatars AvatarUploader
	Sched   *scheduler.Scheduler
	Hooks   *hook.Center
	Ranking *RankingHandler
	Logger  *zap.Logger
}

const adminPrefix = "/api/admin"

// Register mounts every route on r.
func Register(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.Use(mw.TraceID(), mw.Logger(d.Logger), mw.Recovery(d.Logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := NewAuthHandler(d.Auth, cfg.Auth.AdminEmail, d.Logger)
	pubH := NewPublicHandler(d.Content, d.Views, cfg.Content.IncludeQuestIssues)
	adminH := NewAdminHandler(d.Content, d.Audit, d.Feed, d.Avatars, d.Logger)
	opsH := NewOpsHandler(d.DB, d.Sched, d.Hooks, d.Logger)
	requireAuth := mw.Auth(cfg.Security, d.Cache)

	api := r.Group("/api")

	authG := api.Group("/auth")
	// Password guessing gets a bucket of its own.
	authG.POST("/login",
		mw.RateLimitBy(rate.Limit(0.2), 5, func(c *gin.Context) string { return c.ClientIP() }),
		authH.Login)
	authG.POST("/logout", requireAuth, authH.Logout)
	authG.POST("/refresh", requireAuth, authH.Refresh)
	authG.GET("/session", authH.Session)

	if d.PubSub != nil {
		api.GET("/events", sse.NewHandler(d.PubSub, d.Auth, d.Logger).ServeSSE)
		api.GET("/ws", ws.NewHandler(d.PubSub, d.Auth, cfg.Security.AllowedOrigins, d.Logger).ServeWS)
	}

	pub := api.Group("/public", mw.OptionalAuth(cfg.Security, d.Cache))
	pub.GET("/home", pubH.Home)
	pub.GET("/character", pubH.Character)
	pub.GET("/inventory", pubH.Inventory)
	pub.GET("/questlog", pubH.QuestLog)
	pub.GET("/quests", pubH.Quests)
	pub.GET("/quests/:id", pubH.Quest)
	pub.GET("/projects", pubH.Projects)
	pub.GET("/projects/:id", pubH.Project)
	pub.GET("/pages", pubH.Pages)
	pub.GET("/pages/:id", pubH.Page)
	pub.GET("/tags", pubH.Tags)
	pub.GET("/tags/popular", d.Ranking.PopularTags)

	adm := r.Group(adminPrefix,
		mw.IPWhitelist(cfg.Security.AdminIPs),
		requireAuth,
		mw.Audit(d.Audit, adminPrefix))

	adm.GET("/tags", adminH.ListTags)
	adm.POST("/tags", adminH.CreateTag)
	adm.PATCH("/tags/:id", adminH.UpdateTag)
	adm.DELETE("/tags/:id", adminH.DeleteTag)

	adm.GET("/projects", adminH.ListProjects)
	adm.POST("/projects", adminH.CreateProject)
	adm.GET("/projects/:id", adminH.GetProject)
	adm.PATCH("/projects/:id", adminH.UpdateProject)
	adm.DELETE("/projects/:id", adminH.DeleteProject)

	adm.GET("/quests", adminH.ListQuests)
	adm.POST("/quests", adminH.CreateQuest)
	adm.GET("/quests/:id", adminH.GetQuest)
	adm.PATCH("/quests/:id", adminH.UpdateQuest)
	adm.DELETE("/quests/:id", adminH.DeleteQuest)
	adm.PUT("/quests/:id/tags", adminH.ReplaceQuestTags)
	adm.GET("/quests/:id/subquests", adminH.ListSubQuests)
	adm.POST("/quests/:id/subquests", adminH.CreateSubQuest)
	adm.PUT("/quests/:id/subquests/reorder", adminH.ReorderSubQuests)

	adm.PATCH("/subquests/:id", adminH.UpdateSubQuest)
	adm.POST("/subquests/:id/toggle", adminH.ToggleSubQuest)
	adm.DELETE("/subquests/:id", adminH.DeleteSubQuest)

	adm.GET("/issues", adminH.ListIssues)
	adm.POST("/issues", adminH.CreateIssue)
	adm.GET("/issues/:id", adminH.GetIssue)
	adm.PATCH("/issues/:id", adminH.UpdateIssue)
	adm.DELETE("/issues/:id", adminH.DeleteIssue)

	adm.GET("/pages", adminH.ListPages)
	adm.POST("/pages", adminH.CreatePage)
	adm.GET("/pages/:id", adminH.GetPage)
	adm.PATCH("/pages/:id", adminH.UpdatePage)
	adm.DELETE("/pages/:id", adminH.DeletePage)
	adm.PUT("/pages/:id/tags", adminH.ReplacePageTags)
	adm.PUT("/pages/:id/connections", adminH.ReplacePageConnections)

	adm.GET("/inventory", adminH.ListItems)
	adm.POST("/inventory", adminH.CreateItem)
	adm.GET("/inventory/:id", adminH.GetItem)
	adm.PATCH("/inventory/:id", adminH.UpdateItem)
	adm.DELETE("/inventory/:id", adminH.DeleteItem)

	adm.GET("/character", adminH.GetCharacter)
	adm.PATCH("/character", adminH.UpdateCharacter)
	adm.POST("/character/avatar", adminH.UploadAvatar)

	adm.GET("/audit", adminH.ListAudit)
	adm.GET("/activity", adminH.Activity)

	ops := api.Group("/ops", AdminAuth(cfg.Server.AdminKey))
	ops.GET("/metrics", opsH.Metrics)
	ops.GET("/scheduler", opsH.ListSchedulerTasks)
	ops.POST("/scheduler/:name/run", opsH.RunTask)
	ops.POST("/questlog/refresh", opsH.RefreshQuestLog)
}
