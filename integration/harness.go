// Package integration drives a fully wired server over real HTTP and
// WebSocket connections.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/questfolio/activity"
	apirest "github.com/kasuganosora/questfolio/api/rest"
	"github.com/kasuganosora/questfolio/audit"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	"github.com/kasuganosora/questfolio/hook"
	"github.com/kasuganosora/questfolio/render"
	"github.com/kasuganosora/questfolio/scheduler"
	"github.com/kasuganosora/questfolio/testutil"
	"github.com/kasuganosora/questfolio/viewcache"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminEmail    = "owner@example.com"
	AdminPassword = "integration-pass"
	AdminKey      = "integration-ops"
)

// TestServer wraps a real HTTP server wired the way main wires it.
type TestServer struct {
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/api/ws
	Hooks  *hook.Center
}

// NewTestServer creates a fully wired server for integration testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	cfg := &config.Config{
		Server:  config.ServerConfig{AdminKey: AdminKey},
		Content: config.ContentConfig{CallTimeout: 5 * time.Second, HomeRecentPages: 5, IncludeQuestIssues: true},
		Auth:    config.AuthConfig{AdminEmail: AdminEmail},
		Security: config.SecurityConfig{
			JWTSecret:      "integration-test-secret",
			JWTTTLH:        72 * time.Hour,
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	views := viewcache.New(c, pubsub, time.Minute, logger)
	require.NoError(t, views.Run(ctx))
	feed := activity.NewFeed(c, logger)

	// ---- Services ----
	contentSvc := content.NewService(db, cfg.Content, logger)
	contentSvc.SetRenderer(render.NewMarkdown(logger))

	authSvc := auth.NewService(db, c, cfg.Security, logger)
	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, authSvc.EnsureAdmin(ctx, AdminEmail, string(hash)))

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	ranking := apirest.NewRankingHandler(contentSvc, c, views, logger)
	sched.AddTicker(apirest.TaskQuestLogRefresh, time.Hour, ranking.RefreshQuestLog)
	sched.AddTicker(apirest.TaskTagRanking, time.Hour, ranking.RefreshTagRanking)

	hooks := hook.NewCenter(logger)
	hooks.On(hook.ViewCache, 0, func(ctx context.Context, ch content.Change) error {
		views.Notify(ctx, ch)
		return nil
	})
	hooks.On(hook.Activity, 10, func(ctx context.Context, ch content.Change) error {
		feed.Record(ctx, ch)
		return nil
	})
	contentSvc.SetNotifier(hooks.Notify)

	// ---- Gin HTTP Server ----
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
		Sched:   sched,
		Hooks:   hooks,
		Ranking: ranking,
		Logger:  logger,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &TestServer{
		Server: srv,
		URL:    srv.URL,
		WSURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws",
		Hooks:  hooks,
	}
}

// Do sends a request with an optional JSON body and bearer token.
func (ts *TestServer) Do(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request.
func (ts *TestServer) Get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token)
}

// PostJSON sends a POST request with a JSON body.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token)
}

// Login signs in as the admin and returns the token and account id.
func (ts *TestServer) Login(t *testing.T) (string, int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{"password": AdminPassword}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess auth.Session
	ReadJSON(t, resp, &sess)
	require.NotEmpty(t, sess.Token)
	return sess.Token, sess.AccountID
}

// Create POSTs body to an admin collection and returns the new id.
func (ts *TestServer) Create(t *testing.T, token, path string, body interface{}) string {
	t.Helper()
	resp := ts.PostJSON(t, path, body, token)
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("POST %s: status %d: %s", path, resp.StatusCode, b)
	}
	var out struct {
		ID string `json:"id"`
	}
	ReadJSON(t, resp, &out)
	return out.ID
}

// DialWS opens the change stream for token.
func (ts *TestServer) DialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", ts.WSURL, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ReadJSON decodes and closes the response body.
func ReadJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// Packet mirrors the WebSocket envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RecvType reads packets until one of type typ arrives.
func RecvType(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) Packet {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var pkt Packet
		require.NoError(t, conn.ReadJSON(&pkt), "waiting for %q", typ)
		if pkt.Type == typ {
			return pkt
		}
	}
}
