package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"provenance-audit/internal/shared/metrics"
	"provenance-audit/internal/shared/server/respond"
	"provenance-audit/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500. A panic during an audit request also
// counts as an audit error.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/audits" {
			metrics.IncAuditError()
		}
		telemetry.Error("request.panic", map[string]any{
			"request_id": RequestIDFromContext(c),
			"error":      rec,
			"stack":      string(debug.Stack()),
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
		})
		respond.Error(c, http.StatusInternalServerError, "internal", "audit server error", nil)
	})
}
