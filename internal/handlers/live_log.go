package handlers

import (
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type LiveLogHandler struct {
	activityService *services.ActivityService
}

func NewLiveLogHandler(activityService *services.ActivityService) *LiveLogHandler {
	return &LiveLogHandler{activityService: activityService}
}

// List returns community activity, newest first
// GET /api/live-log
func (h *LiveLogHandler) List(c *gin.Context) {
	var req services.ListActivitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.activityService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}
