package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type GamificationHandler struct {
	pointsService *services.GamificationService
}

func NewGamificationHandler(pointsService *services.GamificationService) *GamificationHandler {
	return &GamificationHandler{pointsService: pointsService}
}

// Leaderboard
// GET /api/gamification/leaderboard?period=all|month|week
func (h *GamificationHandler) Leaderboard(c *gin.Context) {
	var req services.LeaderboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entries, err := h.pointsService.Leaderboard(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, entries)
}

// Me returns the caller's balance, level and recent transactions
// GET /api/gamification/me
func (h *GamificationHandler) Me(c *gin.Context) {
	summary, err := h.pointsService.Summary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// GET /api/admin/points-rules
func (h *GamificationHandler) ListRules(c *gin.Context) {
	rules, err := h.pointsService.ListRules()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rules)
}

// POST /api/admin/points-rules
func (h *GamificationHandler) CreateRule(c *gin.Context) {
	var req services.CreatePointsRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rule, err := h.pointsService.CreateRule(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, rule)
}

// PUT /api/admin/points-rules/:id
func (h *GamificationHandler) UpdateRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdatePointsRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rule, err := h.pointsService.UpdateRule(id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, rule)
}

// Grant adds or removes points by hand
// POST /api/admin/points/grant
func (h *GamificationHandler) Grant(c *gin.Context) {
	var req services.GrantPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx, err := h.pointsService.Grant(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tx)
}
