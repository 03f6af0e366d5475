package handlers

import (
	"io"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starsong-studio/render-orchestrator/internal/database"
	"github.com/starsong-studio/render-orchestrator/internal/services"
)

// ProgressHandler handles progress streaming
type ProgressHandler struct {
	broadcaster *services.ProgressBroadcaster
	repo        *database.ExportRepository
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(broadcaster *services.ProgressBroadcaster, repo *database.ExportRepository) *ProgressHandler {
	return &ProgressHandler{
		broadcaster: broadcaster,
		repo:        repo,
	}
}

// StreamProgress streams progress updates via Server-Sent Events
func (h *ProgressHandler) StreamProgress(c *gin.Context) {
	h.stream(c, 0)
}

// StreamExportProgress streams progress for a single export
func (h *ProgressHandler) StreamExportProgress(c *gin.Context) {
	exportID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid ID"})
		return
	}
	h.stream(c, exportID)
}

// stream pumps updates to one SSE client. exportID of 0 means all exports.
func (h *ProgressHandler) stream(c *gin.Context, exportID int) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	clientChan := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(clientChan)

	clientGone := c.Request.Context().Done()

	// Initial connection confirmation
	c.Writer.Write([]byte("data: {\"message\":\"connected\",\"timestamp\":\"" + time.Now().Format(time.RFC3339) + "\"}\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-clientGone:
			log.Println("Client disconnected from progress stream")
			return
		case update := <-clientChan:
			if exportID != 0 && update.ExportID != exportID {
				continue
			}
			data := services.FormatSSE(update)
			if data != "" {
				_, err := c.Writer.Write([]byte(data))
				if err != nil {
					if err != io.EOF {
						log.Printf("Error writing SSE data: %v", err)
					}
					return
				}
				c.Writer.Flush()
			}
		case <-time.After(30 * time.Second):
			// Keepalive ping
			c.Writer.Write([]byte(": keepalive\n\n"))
			c.Writer.Flush()
		}
	}
}

// GetStats returns broadcaster statistics
func (h *ProgressHandler) GetStats(c *gin.Context) {
	c.JSON(200, gin.H{
		"connected_clients": h.broadcaster.ClientCount(),
		"timestamp":         time.Now(),
	})
}
