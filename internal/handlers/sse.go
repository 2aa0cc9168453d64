package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sseHeartbeat = 25 * time.Second

// SSEHandler handles Server-Sent Events for real-time updates
type SSEHandler struct {
	hub       *services.SSEHub
	validator middleware.SessionValidator
}

// NewSSEHandler creates a new SSE handler. validator may be nil.
func NewSSEHandler(hub *services.SSEHub, validator middleware.SessionValidator) *SSEHandler {
	return &SSEHandler{
		hub:       hub,
		validator: validator,
	}
}

// StreamLiveLog pushes new community activities
// GET /api/live-log/stream
func (h *SSEHandler) StreamLiveLog(c *gin.Context) {
	h.stream(c, "live-log", services.TopicActivity)
}

// StreamEvents pushes the caller's notifications and messages plus cache invalidations
// GET /api/events/stream
func (h *SSEHandler) StreamEvents(c *gin.Context) {
	h.stream(c, "events", services.TopicNotification, services.TopicMessage, services.TopicInvalidate)
}

// authenticate accepts the token from ?token= (EventSource cannot set
// headers) or from the Authorization header.
func (h *SSEHandler) authenticate(c *gin.Context) (uint, bool) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if token == "" {
		response.Unauthorized(c, "Unauthorized")
		return 0, false
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "Invalid token")
		return 0, false
	}
	if h.validator != nil {
		if _, err := h.validator.ValidateSession(claims.UserID); err != nil {
			response.Unauthorized(c, "session is no longer valid")
			return 0, false
		}
	}
	return claims.UserID, true
}

func (h *SSEHandler) stream(c *gin.Context, name string, topics ...string) {
	profileID, ok := h.authenticate(c)
	if !ok {
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()

	events := h.hub.Subscribe(clientID, profileID, topics...)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Str("stream", name).Uint("profile_id", profileID).
		Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data)
			c.Writer.Flush()
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Str("stream", name).Msg("SSE client disconnected")
			return false
		}
	})
}
