package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"supplyledger/internal/infrastructure/storage/postgres"
)

// Database is satisfied by *postgres.Pool.
type Database interface {
	Ping(ctx context.Context) error
	Stats() postgres.PoolStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db Database
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Database) *HealthHandler {
	return &HealthHandler{db: db}
}

// Live handles liveness check (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles readiness check (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
		"database": h.db.Stats(),
	})
}
