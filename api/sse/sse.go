// Package sse streams content changes to signed-in editors so open admin
// screens can refetch.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/auth"
	"github.com/kasuganosora/questfolio/cache"
	mw "github.com/kasuganosora/questfolio/middleware"
	"github.com/kasuganosora/questfolio/viewcache"
	"go.uber.org/zap"
)

const keepAliveEvery = 30 * time.Second

// Handler handles the change stream endpoint.
type Handler struct {
	pubsub cache.PubSub
	auth   *auth.Service
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, authSvc *auth.Service, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, auth: authSvc, logger: logger}
}

// ServeSSE handles GET /api/events?token=<jwt>. EventSource cannot set
// headers, so the token may come from the query as well as the
// Authorization header. Each committed change is sent as a "changed" event
// whose data is the change JSON.
func (h *Handler) ServeSSE(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = mw.BearerToken(c)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	_, err := h.auth.GetSession(ctx, token)
	cancel()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, viewcache.ChangesChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveEvery)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: changed\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
