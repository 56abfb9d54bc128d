package handler

import (
	"net/http"

	"github.com/mazbron/video-downloader/internal/model"

	"github.com/gin-gonic/gin"
)

// SnapshotProvider reports the download directory contents
type SnapshotProvider interface {
	Snapshot() model.StorageSnapshot
}

// PendingCounter reports how many chats wait on a quality choice
type PendingCounter interface {
	PendingCount() int
}

// StatsHandler serves the admin health and stats endpoints
type StatsHandler struct {
	usage   StatsProvider
	storage SnapshotProvider
	pending PendingCounter
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(usage StatsProvider, storage SnapshotProvider, pending PendingCounter) *StatsHandler {
	return &StatsHandler{
		usage:   usage,
		storage: storage,
		pending: pending,
	}
}

// HealthCheck handles GET /api/health
func (h *StatsHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "video-downloader-bot",
	})
}

// GetStats handles GET /api/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"usage":              h.usage.Summary(),
		"storage":            h.storage.Snapshot(),
		"pending_selections": h.pending.PendingCount(),
	})
}

// RegisterRoutes mounts the admin endpoints under /api
func (h *StatsHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/stats", h.GetStats)
	}

	if engine, ok := router.(*gin.Engine); ok {
		engine.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Error:   "not_found",
				Message: "Endpoint not found",
				Code:    http.StatusNotFound,
			})
		})
	}
}
