package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/content"
)

// statusFor maps the content error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, content.ErrNetwork):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": msg} with the mapped status and attaches err to the
// context so the logger and audit trail see it. Messages of unknown errors
// are not exposed.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		var nerr *content.NetworkError
		if errors.As(err, &nerr) && nerr.Retryable {
			c.Header("Retry-After", "1")
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindJSON decodes the body into dst, answering 400 on malformed JSON.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// bindQuery decodes query parameters into dst.
func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return false
	}
	return true
}
