package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type ResourceHandler struct {
	resourceService *services.ResourceService
}

func NewResourceHandler(resourceService *services.ResourceService) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService}
}

// List
// GET /api/resources
func (h *ResourceHandler) List(c *gin.Context) {
	var req services.ResourceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.resourceService.List(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Get
// GET /api/resources/:id
func (h *ResourceHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.resourceService.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, res)
}

// Upload stores a file that a following Create call will reference
// POST /api/resources/upload
func (h *ResourceHandler) Upload(c *gin.Context) {
	file, src, ok := openFormFile(c, "file")
	if !ok {
		return
	}
	defer src.Close()

	uploaded, err := h.resourceService.Upload(c.Request.Context(), file.Filename, file.Size, file.Header.Get("Content-Type"), src)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, uploaded)
}

// Create
// POST /api/resources
func (h *ResourceHandler) Create(c *gin.Context) {
	var req services.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.resourceService.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Update
// PUT /api/resources/:id
func (h *ResourceHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := h.resourceService.Update(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, res)
}

// Delete
// DELETE /api/resources/:id
func (h *ResourceHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.resourceService.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "resource deleted successfully"})
}

// Download charges the points cost once and returns the file URL
// POST /api/resources/:id/download
func (h *ResourceHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.resourceService.Download(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Like
// POST /api/resources/:id/like
func (h *ResourceHandler) Like(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	want, ok := optionalState(c, "liked")
	if !ok {
		return
	}

	result, err := h.resourceService.SetLike(c.Request.Context(), middleware.CurrentActor(c), id, want)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"liked": result.Active, "likes_count": result.Count})
}

// Save bookmarks the resource for the caller
// POST /api/resources/:id/save
func (h *ResourceHandler) Save(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	want, ok := optionalState(c, "saved")
	if !ok {
		return
	}

	result, err := h.resourceService.SetSave(c.Request.Context(), middleware.CurrentActor(c), id, want)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"saved": result.Active, "saves_count": result.Count})
}
