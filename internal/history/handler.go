package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"provenance-audit/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the history service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches audit routes to the router group. Extra handlers run
// before the on-demand audit, for rate limiting.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, runGuards ...gin.HandlerFunc) {
	rg.POST("/audits", append(runGuards, h.runAudit)...)
	rg.GET("/audits", h.listRuns)
	rg.GET("/audits/latest", h.latestRun)
	rg.GET("/audits/latest/report", h.latestReport)
	rg.GET("/audits/:id", h.getRun)
}

func (h *Handler) runAudit(c *gin.Context) {
	out, err := h.Svc.RunAudit(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "audit_failed", "audit could not produce a report", nil)
		return
	}
	c.Set("runId", out.Run.ID)
	c.Set("overall", out.Run.Overall)
	out.Run.ReportMD = ""
	respond.OK(c, out)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be between 1 and 200", nil)
			return
		}
		limit = n
	}
	runs, err := h.Svc.List(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list audit runs", nil)
		return
	}
	for i := range runs {
		runs[i].ReportMD = ""
	}
	respond.OK(c, gin.H{"runs": runs})
}

func (h *Handler) latestRun(c *gin.Context) {
	run, ok := h.lookup(c, "")
	if !ok {
		return
	}
	run.ReportMD = ""
	respond.OK(c, run)
}

func (h *Handler) latestReport(c *gin.Context) {
	run, ok := h.lookup(c, "")
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(run.ReportMD))
}

func (h *Handler) getRun(c *gin.Context) {
	run, ok := h.lookup(c, c.Param("id"))
	if !ok {
		return
	}
	respond.OK(c, run)
}

// lookup fetches a run by id, or the latest run when id is empty, and writes the
// error response itself.
func (h *Handler) lookup(c *gin.Context, id string) (Run, bool) {
	var run Run
	var err error
	if id == "" {
		run, err = h.Svc.Latest(c.Request.Context())
	} else {
		run, err = h.Svc.Get(c.Request.Context(), id)
	}
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "audit run not found", nil)
		return Run{}, false
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load audit run", nil)
		return Run{}, false
	}
	return run, true
}
