package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questfolio/audit"
)

// maxAuditBody caps how much of a request body is copied into the audit log.
const maxAuditBody = 64 << 10

// AuditLogger is the sink the Audit middleware writes to.
type AuditLogger interface {
	Log(e audit.Entry)
}

// Audit records every mutating request on the group. The entity kind is the
// first path segment after prefix and the entity id the :id parameter.
func Audit(sink AuditLogger, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		start := time.Now()
		body := captureBody(c)
		c.Next()

		entry := audit.Entry{
			TraceID:    GetTraceID(c),
			Action:     c.Request.Method + " " + c.FullPath(),
			EntityKind: entityKind(c.FullPath(), prefix),
			EntityID:   c.Param("id"),
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		}
		if body != nil {
			entry.Request = body
		}
		if id := GetAccountID(c); id != 0 {
			entry.AccountID = &id
		}
		if last := c.Errors.Last(); last != nil {
			entry.Error = last.Error()
		} else if c.Writer.Status() >= http.StatusBadRequest {
			entry.Error = http.StatusText(c.Writer.Status())
		}
		sink.Log(entry)
	}
}

// captureBody copies a JSON body and restores it for the handler. Other
// content types, such as multipart uploads, are not recorded.
func captureBody(c *gin.Context) []byte {
	if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody+1))
	rest := c.Request.Body
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), rest))
	if err != nil || len(raw) == 0 || len(raw) > maxAuditBody {
		return nil
	}
	return raw
}

func entityKind(fullPath, prefix string) string {
	rest := strings.TrimPrefix(fullPath, prefix)
	rest = strings.TrimPrefix(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSuffix(rest, "s")
}
