package handlers

import (
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(configService *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService}
}

// GetSettings returns the settings grouped by section; secrets are masked
// GET /api/admin/settings
func (h *SystemConfigHandler) GetSettings(c *gin.Context) {
	groups, err := h.configService.ListGrouped()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, groups)
}

// GetSettingsGroup
// GET /api/admin/settings/:group
func (h *SystemConfigHandler) GetSettingsGroup(c *gin.Context) {
	settings, err := h.configService.GetByGroup(c.Param("group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, settings)
}

// UpdateSettings
// PUT /api/admin/settings
func (h *SystemConfigHandler) UpdateSettings(c *gin.Context) {
	var req services.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.configService.UpdateSettings(&req); err != nil {
		response.Error(c, err)
		return
	}

	groups, err := h.configService.ListGrouped()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, groups)
}
