// Package ws pushes content changes to editors over a WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/viewcache"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /api/ws.
type Handler struct {
	pubsub   cache.PubSub
	auth     *auth.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler. An empty allowedOrigins
// permits every origin.
func NewHandler(pubsub cache.PubSub, authSvc *auth.Service, allowedOrigins []string, logger *zap.Logger) *Handler {
	h := &Handler{pubsub: pubsub, auth: authSvc, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /api/ws?token=<jwt>. The server sends "hello" once,
// then a "changed" packet per committed change; a client "ping" is answered
// with "pong".
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	sess, err := h.auth.GetSession(ctx, token)
	cancel()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, viewcache.ChangesChannel)
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "change stream unavailable"})
		return
	}
	defer unsub()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	cl := newClient(sess.AccountID, conn, h.logger)
	defer cl.close()

	hello, _ := json.Marshal(gin.H{"account_id": sess.AccountID})
	cl.push("hello", hello)

	go func() {
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				cl.push("changed", json.RawMessage(msg.Payload))
			case <-cl.done:
				return
			}
		}
	}()

	h.readPump(cl)
}

// readPump blocks until the peer goes away.
func (h *Handler) readPump(cl *client) {
	cl.setReadDeadline()
	cl.conn.SetPongHandler(func(string) error {
		cl.setReadDeadline()
		return nil
	})
	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.Int64("account_id", cl.accountID), zap.Error(err))
			}
			return
		}
		cl.setReadDeadline()

		var pkt Packet
		if err := json.Unmarshal(raw, &pkt); err != nil {
			cl.push("error", json.RawMessage(`{"error":"malformed packet"}`))
			continue
		}
		switch pkt.Type {
		case "ping":
			cl.push("pong", nil)
		default:
			cl.push("error", json.RawMessage(`{"error":"unknown packet type"}`))
		}
	}
}
