package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a project with its owner, tags and the offers the caller may see
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Create publishes a new project
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, project)
}

// Update updates a project
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Delete deletes a project
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "project deleted successfully"})
}

// CreateOffer
// POST /api/projects/:id/offers
func (h *ProjectHandler) CreateOffer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	offer, err := h.projectService.CreateOffer(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, offer)
}

// AcceptOffer
// POST /api/projects/:id/offers/:offerId/accept
func (h *ProjectHandler) AcceptOffer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	offerID, ok := paramID(c, "offerId")
	if !ok {
		return
	}

	project, err := h.projectService.AcceptOffer(c.Request.Context(), middleware.CurrentActor(c), id, offerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// WithdrawOffer
// POST /api/projects/:id/offers/:offerId/withdraw
func (h *ProjectHandler) WithdrawOffer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	offerID, ok := paramID(c, "offerId")
	if !ok {
		return
	}

	offer, err := h.projectService.WithdrawOffer(c.Request.Context(), middleware.CurrentActor(c), id, offerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, offer)
}
