package handlers

import (
	"time"

	"github.com/ZeremItay/autohub/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler provides health check and metrics endpoints.
type HealthHandler struct {
	db        *gorm.DB
	queue     services.TaskQueue
	hub       *services.SSEHub
	startedAt time.Time
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub, startedAt: time.Now()}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}
	if overall != "healthy" {
		status = 503
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "autohub",
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"sse_clients": h.hub.ClientCount(),
		},
	})
}
