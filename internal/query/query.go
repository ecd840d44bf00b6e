// Package query implements the Query Handler (C7, spec.md §4.7): the
// two read-only HTTP endpoints that project a Job's state, or list
// recent jobs, without ever returning more than spec.md §4.7 names.
// It is grounded on the teacher's gin handler style, trimmed to the
// spec's narrower response surface (no auth, no pagination cursor).
package query

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/models"
	"github.com/ikretus/asr/internal/store"
	"github.com/ikretus/asr/pkg/logger"
)

// Handler wires the Store and config the two endpoints need.
type Handler struct {
	Store store.Store
	Cfg   *config.Config
}

// New builds a Handler.
func New(st store.Store, cfg *config.Config) *Handler {
	return &Handler{Store: st, Cfg: cfg}
}

// Register attaches both endpoints to r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.recent)
	r.GET("/:auid", h.one)
}

// one implements GET /<auid>: 404 if unknown, otherwise a body shaped
// by the job's current Status (spec.md §4.7):
//   - loaded/processing: 200 {auid, status}
//   - failed:            500 {auid, status, log}
//   - success:           200 {auid, status, result}
func (h *Handler) one(c *gin.Context) {
	auid := c.Param("auid")
	job, err := h.Store.Get(c.Request.Context(), auid)
	if err != nil {
		logger.Error(auid, "query failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown auid"})
		return
	}

	status := job.Status()
	switch status {
	case models.StatusFailed:
		logStr := ""
		if job.Log != nil {
			logStr = *job.Log
		}
		c.JSON(http.StatusInternalServerError, gin.H{"auid": auid, "status": string(status), "log": logStr})
	case models.StatusSuccess:
		var result json.RawMessage
		if len(job.Result) > 0 {
			result = job.Result
		}
		c.JSON(http.StatusOK, gin.H{"auid": auid, "status": string(status), "result": result})
	default:
		c.JSON(http.StatusOK, gin.H{"auid": auid, "status": string(status)})
	}
}

// recent implements GET /: up to fetch_many most recently loaded jobs,
// ascending by loaded (oldest of the page first), each reduced to
// {auid, status} per spec.md §4.7.
func (h *Handler) recent(c *gin.Context) {
	limit := h.Cfg.FetchMany
	if limit <= 0 {
		limit = 100
	}
	jobs, err := h.Store.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Error("task", "recent query failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]gin.H, len(jobs))
	for i := range jobs {
		// Recent returns newest-first; reverse to ascending-loaded order.
		j := jobs[len(jobs)-1-i]
		out[i] = gin.H{"auid": j.AUID, "status": string(j.Status())}
	}
	c.JSON(http.StatusOK, out)
}
