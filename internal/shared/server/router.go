package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provenance-audit/internal/audit"
	"provenance-audit/internal/history"
	"provenance-audit/internal/services/health"
	"provenance-audit/internal/shared/metrics"
	"provenance-audit/internal/shared/server/middleware"
	"provenance-audit/internal/shared/server/respond"
)

// Deps are the services the router exposes.
type Deps struct {
	History *history.Service
	Health  *health.Service
	Plan    audit.Plan
	// AuditRule limits on-demand audits per client; the zero rule disables limiting.
	AuditRule middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		st := deps.Health.Check(c.Request.Context())
		code := http.StatusOK
		if !st.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, st)
	})
	api.GET("/plan", func(c *gin.Context) {
		respond.OK(c, deps.Plan)
	})

	limiter := middleware.NewRateLimiter(nil)
	history.NewHandler(deps.History).RegisterRoutes(api, middleware.RateLimit(limiter, deps.AuditRule))
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
