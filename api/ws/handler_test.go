package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/testutil"
	"github.com/kasuganosora/questfolio/viewcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T, origins ...string) (string, cache.PubSub, *auth.Session) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := testutil.Logger()
	svc := auth.NewService(db, c, config.SecurityConfig{JWTSecret: "secret", JWTTTLH: time.Hour}, logger)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw-pw-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "me@example.com", string(hash)))
	sess, err := svc.SignInWithPassword(context.Background(), "me@example.com", "pw-pw-pw", "127.0.0.1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/ws", NewHandler(ps, svc, origins, logger).ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws", ps, sess
}

func readPacket(t *testing.T, conn *websocket.Conn) Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var pkt Packet
	require.NoError(t, conn.ReadJSON(&pkt))
	return pkt
}

func TestServeWS_RejectsBadToken(t *testing.T) {
	url, _, _ := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_HelloPingAndChanges(t *testing.T) {
	url, ps, sess := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+sess.Token, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readPacket(t, conn)
	assert.Equal(t, "hello", hello.Type)
	assert.EqualValues(t, 1, hello.Seq)
	var who struct {
		AccountID int64 `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(hello.Payload, &who))
	assert.Equal(t, sess.AccountID, who.AccountID)

	require.NoError(t, conn.WriteJSON(Packet{Type: "ping"}))
	assert.Equal(t, "pong", readPacket(t, conn).Type)

	payload := `{"kind":"page","id":"p1","action":"delete"}`
	require.NoError(t, ps.Publish(context.Background(), viewcache.ChangesChannel, payload))
	changed := readPacket(t, conn)
	assert.Equal(t, "changed", changed.Type)
	assert.JSONEq(t, payload, string(changed.Payload))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "error", readPacket(t, conn).Type)
}

func TestServeWS_CheckOrigin(t *testing.T) {
	url, _, sess := setup(t, "https://me.example.com")

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+sess.Token,
		http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+sess.Token,
		http.Header{"Origin": {"https://me.example.com"}})
	require.NoError(t, err)
	conn.Close()
}
