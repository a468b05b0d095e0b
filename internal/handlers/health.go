package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, queue and streams.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

// CheckHealth
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var pendingSweeps int64
	h.db.Model(&models.SweepJob{}).Count(&pendingSweeps)

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "launchpad",
		"components": gin.H{
			"database":       dbStatus,
			"queue_mode":     queueMode,
			"sse_clients":    h.hub.ClientCount(),
			"pending_sweeps": pendingSweeps,
		},
	})
}
