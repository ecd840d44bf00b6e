// Package ingress implements the Ingress Handler (C6, spec.md §4.6):
// the HTTP POST endpoint that validates a submitted recording,
// transcodes it to the canonical WAV profile, and publishes it into
// the layout tree so the scheduler can pick it up. It is grounded on
// the teacher's gin handler style (internal/api's bind-validate-respond
// shape), generalized from the teacher's multipart upload to the
// spec's base64-JSON body.
package ingress

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ikretus/asr/internal/asrerr"
	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/layout"
	"github.com/ikretus/asr/internal/models"
	"github.com/ikretus/asr/internal/store"
	"github.com/ikretus/asr/internal/transcode"
	"github.com/ikretus/asr/pkg/logger"
)

// Handler wires the Store, config and transcoder the endpoint needs.
type Handler struct {
	Store      store.Store
	Cfg        *config.Config
	Transcoder *transcode.Transcoder
}

// New builds a Handler.
func New(st store.Store, cfg *config.Config, tc *transcode.Transcoder) *Handler {
	return &Handler{Store: st, Cfg: cfg, Transcoder: tc}
}

// submitRequest is the POST body spec.md §4.6 describes: lang, model
// and a base64-encoded audio payload of arbitrary container/codec.
type submitRequest struct {
	Lang  string `json:"lang" binding:"required"`
	Model string `json:"model" binding:"required"`
	Data  string `json:"data" binding:"required"`
}

// Register attaches the endpoint to r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/", h.submit)
}

// submit implements spec.md §4.6 end to end: validate, decode, stage
// to a temp file, transcode, persist the row, then publish the
// transcoded artifact into its canonical layout path. The temp source
// file is always removed; the transcoded artifact is removed too if
// any step after transcoding fails.
func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	lang := models.Lang(req.Lang)
	if !models.KnownLangs[lang] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown lang %q", req.Lang)})
		return
	}
	model := models.Model(req.Model)
	if !models.KnownModels[model] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown model %q", req.Model)})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data is not valid base64"})
		return
	}

	auid := uuid.NewString()
	tmpSrc := filepath.Join(os.TempDir(), auid+".src")
	if err := os.WriteFile(tmpSrc, raw, 0o644); err != nil {
		logger.Error(auid, "failed to stage upload", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer os.Remove(tmpSrc)

	// loaded here is the app's wall clock, used only to pick the day
	// directory the artifact is published into; the store row's own
	// loaded column is stamped independently by the DB's now(). The two
	// can disagree across a midnight boundary, same as the original.
	loaded := loadedTime()
	finalAudioPath := layout.AudioPath(h.Cfg.DataRoot, loaded, auid, lang, model)
	if err := os.MkdirAll(filepath.Dir(finalAudioPath), 0o755); err != nil {
		logger.Error(auid, "failed to create day directory", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	tmpDst := finalAudioPath + ".transcoding"
	if err := h.Transcoder.ToCanonicalWAV(c.Request.Context(), tmpSrc, tmpDst); err != nil {
		var tErr *asrerr.TranscodeError
		if errors.As(err, &tErr) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": tErr.Message, "stderr": tErr.Stderr})
			return
		}
		logger.Error(auid, "transcode failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.Store.Create(c.Request.Context(), auid, lang, model); err != nil {
		os.Remove(tmpDst)
		logger.Error(auid, "failed to create job row", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := publish(tmpDst, finalAudioPath); err != nil {
		os.Remove(tmpDst)
		logger.Error(auid, "failed to publish audio artifact", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	logger.Info(auid, "loaded")
	c.JSON(http.StatusAccepted, gin.H{"auid": auid, "status": string(models.StatusLoaded)})
}

// publish moves the transcoded artifact into its canonical path. A
// plain rename is attempted first; if the temp and final paths live on
// different filesystems (EXDEV), it falls back to copy-then-remove so
// the common in-tree case stays a cheap atomic rename.
func publish(tmpDst, finalPath string) error {
	if err := os.Rename(tmpDst, finalPath); err == nil {
		return nil
	}
	src, err := os.Open(tmpDst)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(finalPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(tmpDst)
}

// loadedTime is a seam so tests can pin the day directory a submission
// lands in; production always uses wall-clock time.
var loadedTime = time.Now
