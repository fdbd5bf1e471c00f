package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/activity"
	"github.com/kasuganosora/questfolio/api/rest"
	"github.com/kasuganosora/questfolio/audit"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/render"
	"github.com/kasuganosora/questfolio/scheduler"
	"github.com/kasuganosora/questfolio/testutil"
	"github.com/kasuganosora/questfolio/viewcache"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminEmail    = "owner@example.com"
	adminPassword = "correct horse"
	adminKey      = "ops-key"
)

type server struct {
	r       *gin.Engine
	db      *gorm.DB
	svc     *content.Service
	cache   cache.Cache
	audit   *audit.Service
	sched   *scheduler.Scheduler
	ranking *rest.RankingHandler
}

type fakeAvatars struct{ url string }

func (f *fakeAvatars) Upload(_ context.Context, filename, _ string, _ int64, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return f.url + filename, nil
}

func newServer(t *testing.T, opts ...func(*rest.Deps)) *server {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := testutil.Logger()

	cfg := &config.Config{
		Server:   config.ServerConfig{AdminKey: adminKey},
		Content:  config.ContentConfig{CallTimeout: 5 * time.Second, HomeRecentPages: 5, IncludeQuestIssues: true},
		Auth:     config.AuthConfig{AdminEmail: adminEmail},
		Security: config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour, RateLimitRPS: 1000, RateLimitBurst: 1000},
	}

	svc := content.NewService(db, cfg.Content, logger)
	svc.SetRenderer(render.NewMarkdown(logger))
	views := viewcache.New(c, ps, time.Minute, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, views.Run(ctx))
	feed := activity.NewFeed(c, logger)
	svc.SetNotifier(func(ctx context.Context, ch content.Change) {
		// Drop views synchronously so tests need not wait for pub/sub.
		_ = views.Invalidate(ctx)
		feed.Record(ctx, ch)
	})

	authSvc := auth.NewService(db, c, cfg.Security, logger)
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), adminEmail, string(hash)))

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	ranking := rest.NewRankingHandler(svc, c, views, logger)
	sched.AddTicker(rest.TaskQuestLogRefresh, time.Hour, ranking.RefreshQuestLog)
	sched.AddTicker(rest.TaskTagRanking, time.Hour, ranking.RefreshTagRanking)

	deps := rest.Deps{
		Config:  cfg,
		DB:      db,
		Content: svc,
		Auth:    authSvc,
		Cache:   c,
		PubSub:  ps,
		Views:   views,
		Audit:   auditSvc,
		Feed:    feed,
		Avatars: &fakeAvatars{url: "https://cdn.example.com/"},
		Sched:   sched,
		Ranking: ranking,
		Logger:  logger,
	}
	for _, o := range opts {
		o(&deps)
	}
	r := gin.New()
	rest.Register(r, deps)
	return &server{r: r, db: db, svc: svc, cache: c, audit: auditSvc, sched: sched, ranking: ranking}
}

func (s *server) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *server) login(t *testing.T) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// admin sends an authenticated admin request.
func (s *server) admin(token, method, path string, body interface{}) *httptest.ResponseRecorder {
	return s.do(method, path, body, "Authorization", "Bearer "+token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type idResp struct {
	ID string `json:"id"`
}

func (s *server) create(t *testing.T, token, path string, body interface{}) string {
	t.Helper()
	w := s.admin(token, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idResp](t, w).ID
}
