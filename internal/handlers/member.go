package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// List returns the member directory
// GET /api/members
func (h *MemberHandler) List(c *gin.Context) {
	var req services.MemberListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.memberService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetProfile returns a public profile
// GET /api/profiles/:id
func (h *MemberHandler) GetProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.memberService.GetDetail(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, detail)
}

// UpdateMe changes the caller's account settings
// PUT /api/profiles/me
func (h *MemberHandler) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	profile, err := h.memberService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, profile)
}

// UploadAvatar stores a new avatar image
// POST /api/profiles/me/avatar
func (h *MemberHandler) UploadAvatar(c *gin.Context) {
	file, src, ok := openFormFile(c, "file")
	if !ok {
		return
	}
	defer src.Close()

	profile, err := h.memberService.UploadAvatar(c.Request.Context(), middleware.GetUserID(c),
		file.Filename, file.Size, file.Header.Get("Content-Type"), src)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, profile)
}
