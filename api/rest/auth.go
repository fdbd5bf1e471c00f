package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/auth"
	mw "github.com/kasuganosora/questfolio/middleware"
	"go.uber.org/zap"
)

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	auth       *auth.Service
	adminEmail string
	logger     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. Logins are checked against the
// account with adminEmail.
func NewAuthHandler(svc *auth.Service, adminEmail string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, adminEmail: adminEmail, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	email := req.Email
	if email == "" {
		email = h.adminEmail
	}
	sess, err := h.auth.SignInWithPassword(c.Request.Context(), email, req.Password, c.ClientIP())
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case errors.Is(err, auth.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	case err != nil:
		h.logger.Error("login failed", zap.Error(err), zap.String("trace_id", mw.GetTraceID(c)))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "login unavailable, please retry"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
		h.logger.Warn("logout failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	sess, err := h.auth.RefreshSession(c.Request.Context(), mw.BearerToken(c))
	if errors.Is(err, auth.ErrSessionExpired) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}
	if err != nil {
		h.logger.Error("refresh failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh unavailable, please retry"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Session handles GET /api/auth/session. Anonymous callers get
// {"authenticated": false} rather than an error.
func (h *AuthHandler) Session(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	sess, err := h.auth.GetSession(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"account_id":    sess.AccountID,
		"expires_at":    sess.ExpiresAt,
	})
}
