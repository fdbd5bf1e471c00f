package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
)

const AccountIDKey = "account_id"

// SessionKey is the cache key holding the account id for a live token.
func SessionKey(token string) string { return "session:" + token }

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// resolve returns the account id for a valid token with a live session.
func resolve(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (int64, string) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return 0, "invalid token"
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := c.Get(cacheCtx, SessionKey(token))
	if err != nil || v != strconv.FormatInt(claims.AccountID, 10) {
		return 0, "session expired"
	}
	return claims.AccountID, ""
}

func signIn(ctx *gin.Context, accountID int64) {
	ctx.Set(AccountIDKey, accountID)
	viewer := content.Viewer{AccountID: accountID, Admin: true}
	ctx.Request = ctx.Request.WithContext(content.WithViewer(ctx.Request.Context(), viewer))
}

// Auth validates the Bearer JWT token and checks the session cache. On
// success the request context carries an admin content.Viewer.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		accountID, reason := resolve(ctx.Request.Context(), sec, c, token)
		if reason != "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
			return
		}
		signIn(ctx, accountID)
		ctx.Next()
	}
}

// OptionalAuth is Auth for public routes: a missing or stale token leaves
// the request as an anonymous public viewer instead of rejecting it.
func OptionalAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token := BearerToken(ctx); token != "" {
			if accountID, reason := resolve(ctx.Request.Context(), sec, c, token); reason == "" {
				signIn(ctx, accountID)
			}
		}
		ctx.Next()
	}
}

// GetAccountID retrieves the authenticated account ID from the Gin context.
func GetAccountID(c *gin.Context) int64 {
	if v, exists := c.Get(AccountIDKey); exists {
		return v.(int64)
	}
	return 0
}
