package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/activity"
	apirest "github.com/kasuganosora/questfolio/api/rest"
	"github.com/kasuganosora/questfolio/audit"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	dbadapter "github.com/kasuganosora/questfolio/db"
	"github.com/kasuganosora/questfolio/hook"
	"github.com/kasuganosora/questfolio/model"
	"github.com/kasuganosora/questfolio/render"
	"github.com/kasuganosora/questfolio/scheduler"
	"github.com/kasuganosora/questfolio/storage"
	"github.com/kasuganosora/questfolio/viewcache"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; ops endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("security.jwt_secret must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		auditSvc.Stop(sctx)
	}()

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	defer c.Close()
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	views := viewcache.New(c, pubsub, cfg.Cache.ViewTTL, logger)
	if err := views.Run(ctx); err != nil {
		logger.Fatal("view cache subscribe", zap.Error(err))
	}
	feed := activity.NewFeed(c, logger)

	// ---- Services ----
	contentSvc := content.NewService(db, cfg.Content, logger)
	contentSvc.SetRenderer(render.NewMarkdown(logger))

	authSvc := auth.NewService(db, c, cfg.Security, logger)
	if err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash); err != nil {
		logger.Fatal("admin account", zap.Error(err))
	}

	var avatars apirest.AvatarUploader
	if a, err := storage.NewAvatars(cfg.Storage, logger); err != nil {
		logger.Fatal("object storage", zap.Error(err))
	} else if a != nil {
		avatars = a
	} else {
		logger.Warn("storage.endpoint is not set; avatar uploads are disabled")
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	ranking := apirest.NewRankingHandler(contentSvc, c, views, logger)
	questLogEvery := cfg.Content.QuestLogRefresh
	if questLogEvery <= 0 {
		questLogEvery = 10 * time.Minute
	}
	sched.AddTicker(apirest.TaskQuestLogRefresh, questLogEvery, skipBusy(ranking.RefreshQuestLog))
	sched.AddTicker(apirest.TaskTagRanking, time.Hour, skipBusy(ranking.RefreshTagRanking))

	hooks := hook.NewCenter(logger)
	hooks.On(hook.ViewCache, 0, func(ctx context.Context, ch content.Change) error {
		views.Notify(ctx, ch)
		return nil
	})
	hooks.On(hook.Activity, 10, func(ctx context.Context, ch content.Change) error {
		feed.Record(ctx, ch)
		return nil
	})
	// Coalesce bursts of edits into one ranking rebuild.
	hooks.On(hook.TagRanking, 20, func(context.Context, content.Change) error {
		sched.AddDelay("tag_ranking_debounce", 2*time.Second, skipBusy(ranking.RefreshTagRanking))
		return nil
	}, content.KindTag, content.KindPage, content.KindQuest)
	contentSvc.SetNotifier(hooks.Notify)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	apirest.Register(r, apirest.Deps{
		Config:  cfg,
		DB:      db,
		Content: contentSvc,
		Auth:    authSvc,
		Cache:   c,
		PubSub:  pubsub,
		Views:   views,
		Audit:   auditSvc,
		Feed:    feed,
		Avatars: avatars,
		Sched:   sched,
		Hooks:   hooks,
		Ranking: ranking,
		Logger:  logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

// skipBusy treats a refresh held by another instance as success.
func skipBusy(fn scheduler.TaskFn) scheduler.TaskFn {
	return func(ctx context.Context) error {
		if err := fn(ctx); !errors.Is(err, apirest.ErrRefreshBusy) {
			return err
		}
		return nil
	}
}
