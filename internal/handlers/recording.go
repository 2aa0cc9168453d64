package handlers

import (
	"net/http"

	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type RecordingHandler struct {
	recordingService *services.RecordingService
}

func NewRecordingHandler(recordingService *services.RecordingService) *RecordingHandler {
	return &RecordingHandler{recordingService: recordingService}
}

// List
// GET /api/recordings
func (h *RecordingHandler) List(c *gin.Context) {
	var req services.RecordingListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.recordingService.List(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Get returns a recording and counts the view
// GET /api/recordings/:id
func (h *RecordingHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	rec, err := h.recordingService.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, rec)
}

// Create accepts JSON with a video_url, or a multipart form with a "video" file.
// POST /api/admin/recordings
func (h *RecordingHandler) Create(c *gin.Context) {
	var req services.RecordingRequest
	var video *services.VideoUpload

	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if header, err := c.FormFile("video"); err == nil {
			src, err := header.Open()
			if err != nil {
				response.BadRequest(c, "cannot read uploaded file")
				return
			}
			defer src.Close()
			video = &services.VideoUpload{
				FileName:    header.Filename,
				Size:        header.Size,
				ContentType: header.Header.Get("Content-Type"),
				Body:        src,
			}
		} else if err != http.ErrMissingFile {
			response.BadRequest(c, err.Error())
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rec, err := h.recordingService.Create(c.Request.Context(), middleware.CurrentActor(c), &req, video)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, rec)
}

// Update
// PUT /api/admin/recordings/:id
func (h *RecordingHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.RecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rec, err := h.recordingService.Update(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, rec)
}

// Delete
// DELETE /api/admin/recordings/:id
func (h *RecordingHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.recordingService.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "recording deleted successfully"})
}
