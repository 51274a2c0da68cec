package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceName is reported by the health endpoint
const ServiceName = "medication-reminders"

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler implements the health check endpoint
type HealthHandler struct {
	db      Pinger
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
		logger:  logger,
	}
}

// GetHealth reports whether the database is reachable
func (h *HealthHandler) GetHealth(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed: database unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"service":  ServiceName,
		"version":  h.version,
	})
}
