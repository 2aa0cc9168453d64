package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/gin-gonic/gin"
)

// Metrics returns Prometheus-compatible text format metrics.
func (h *HealthHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "autohub_uptime_seconds", "Time since server start in seconds", time.Since(h.startedAt).Seconds())
	writeGauge(&b, "autohub_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "autohub_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "autohub_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "autohub_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "autohub_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "autohub_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "autohub_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
	}

	writeGauge(&b, "autohub_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "autohub_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Community metrics --
	db := h.db.WithContext(c.Request.Context())
	var members, activeSubs, posts, projects, resources, unread int64
	db.Model(&models.Profile{}).Where("is_active = ?", true).Count(&members)
	db.Model(&models.Subscription{}).Where("status = ?", models.SubscriptionActive).Count(&activeSubs)
	db.Model(&models.ForumPost{}).Count(&posts)
	db.Model(&models.Project{}).Where("status = ?", models.ProjectStatusOpen).Count(&projects)
	db.Model(&models.Resource{}).Count(&resources)
	db.Model(&models.Notification{}).Where("read_at IS NULL").Count(&unread)

	writeGauge(&b, "autohub_members_active", "Number of active members", float64(members))
	writeGauge(&b, "autohub_subscriptions_active", "Number of active subscriptions", float64(activeSubs))
	writeGauge(&b, "autohub_forum_posts_total", "Number of forum posts", float64(posts))
	writeGauge(&b, "autohub_projects_open", "Number of open projects", float64(projects))
	writeGauge(&b, "autohub_resources_total", "Number of library resources", float64(resources))
	writeGauge(&b, "autohub_notifications_unread", "Number of unread notifications", float64(unread))

	since24h := time.Now().Add(-24 * time.Hour)
	var activities24h int64
	db.Model(&models.Activity{}).Where("created_at >= ?", since24h).Count(&activities24h)
	writeGauge(&b, "autohub_activities_24h", "Live log entries in the last 24 hours", float64(activities24h))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
