package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starsong-studio/render-orchestrator/internal/database"
	"github.com/starsong-studio/render-orchestrator/internal/models"
	"github.com/starsong-studio/render-orchestrator/internal/services"
	"github.com/starsong-studio/render-orchestrator/pkg/encode"
)

// ExportHandler handles export job requests
type ExportHandler struct {
	repo        *database.ExportRepository
	broadcaster *services.ProgressBroadcaster
	registry    *services.CancelRegistry
	probe       encode.CapabilityProbe
}

// NewExportHandler creates a new export handler
func NewExportHandler(
	repo *database.ExportRepository,
	broadcaster *services.ProgressBroadcaster,
	registry *services.CancelRegistry,
	probe encode.CapabilityProbe,
) *ExportHandler {
	return &ExportHandler{
		repo:        repo,
		broadcaster: broadcaster,
		registry:    registry,
		probe:       probe,
	}
}

// CreateLyricVideo queues a full lyric video export
func (h *ExportHandler) CreateLyricVideo(c *gin.Context) {
	var req models.CreateLyricVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imageURLs, err := json.Marshal(req.ImageURLs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &models.ExportJob{
		Kind:      models.KindLyricVideo,
		Status:    models.StatusQueued,
		Priority:  req.Priority,
		ChildName: req.ChildName,
		AudioURL:  req.AudioURL,
		Lyrics:    req.Lyrics,
		ImageURLs: string(imageURLs),
		Width:     req.Width,
		Height:    req.Height,
		FPS:       req.FPS,
	}

	if err := h.repo.Create(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.BroadcastFromJob(job, "Export queued")

	c.JSON(http.StatusCreated, job)
}

// CreateCover queues a cover-only export. The endpoint is gated on the host
// having an H.264 encoder; without one the request is rejected up front
// rather than failing mid-export.
func (h *ExportHandler) CreateCover(c *gin.Context) {
	if !h.probe.Supports(encode.ProfileH264AAC) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "cover export is not available on this host",
		})
		return
	}

	var req models.CreateCoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := req.Format
	if format == "" {
		format = "square"
	}

	job := &models.ExportJob{
		Kind:      models.KindCover,
		Status:    models.StatusQueued,
		Priority:  req.Priority,
		ChildName: req.ChildName,
		Theme:     req.Theme,
		AudioURL:  req.AudioURL,
		Format:    format,
	}

	if err := h.repo.Create(job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.BroadcastFromJob(job, "Export queued")

	c.JSON(http.StatusCreated, job)
}

// GetAll returns all export jobs
func (h *ExportHandler) GetAll(c *gin.Context) {
	jobs, err := h.repo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"exports": jobs})
}

// GetByID returns an export job by ID
func (h *ExportHandler) GetByID(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, job)
}

// Cancel stops an export. Queued jobs are cancelled in place; processing
// jobs are signalled through the cancel registry and settle asynchronously.
func (h *ExportHandler) Cancel(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	switch job.Status {
	case models.StatusQueued:
		now := time.Now()
		job.Status = models.StatusCancelled
		job.CompletedAt = &now
		if err := h.repo.Update(job); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.broadcaster.BroadcastFromJob(job, "Export cancelled")
		c.JSON(http.StatusOK, job)

	case models.StatusProcessing:
		if !h.registry.Cancel(job.ID) {
			// The worker settled between our read and the cancel.
			c.JSON(http.StatusConflict, gin.H{"error": "export is no longer running"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})

	default:
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("export is already %s", job.Status),
		})
	}
}

// Download serves the finished media file
func (h *ExportHandler) Download(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Status != models.StatusCompleted || job.OutputPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "export is not finished"})
		return
	}

	ext := "mp4"
	if job.MimeType == encode.ProfileMJPEG.MimeType {
		ext = "avi"
	}
	name := fmt.Sprintf("%s-%s.%s", attachmentName(job.ChildName), job.Kind, ext)

	c.Header("Content-Type", job.MimeType)
	c.FileAttachment(job.OutputPath, name)
}

// attachmentName reduces a child's name to something safe inside a quoted
// Content-Disposition filename: no control characters, quotes, backslashes
// or path separators.
func attachmentName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
		case r == '"' || r == '\\' || r == '/' || r == ';':
		default:
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return "export"
	}
	return name
}

// Capabilities reports which export profiles this host can produce
func (h *ExportHandler) Capabilities(c *gin.Context) {
	profiles := []gin.H{}
	for _, p := range []encode.Profile{encode.ProfileH264AAC, encode.ProfileMJPEG} {
		profiles = append(profiles, gin.H{
			"name":      p.Name,
			"container": p.Container,
			"mime_type": p.MimeType,
			"has_audio": p.HasAudio,
			"supported": h.probe.Supports(p),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles":     profiles,
		"cover_export": h.probe.Supports(encode.ProfileH264AAC),
	})
}

func (h *ExportHandler) loadJob(c *gin.Context) (*models.ExportJob, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return nil, false
	}

	job, err := h.repo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return nil, false
	}
	return job, true
}
