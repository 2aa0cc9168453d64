package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type ForumHandler struct {
	forumService *services.ForumService
}

func NewForumHandler(forumService *services.ForumService) *ForumHandler {
	return &ForumHandler{forumService: forumService}
}

// ListForums
// GET /api/forums
func (h *ForumHandler) ListForums(c *gin.Context) {
	forums, err := h.forumService.ListForums(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, forums)
}

// ListPosts returns the threads of a forum
// GET /api/forums/:id/posts
func (h *ForumHandler) ListPosts(c *gin.Context) {
	forumID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.PostListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.forumService.ListPosts(c.Request.Context(), middleware.CurrentActor(c), forumID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetPost returns a thread with its replies
// GET /api/forums/posts/:id
func (h *ForumHandler) GetPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	post, err := h.forumService.GetPost(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, post)
}

// CreatePost starts a thread or replies to one
// POST /api/forums/posts
func (h *ForumHandler) CreatePost(c *gin.Context) {
	var req services.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post, err := h.forumService.CreatePost(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, post)
}

// UpdatePost
// PUT /api/forums/posts/:id
func (h *ForumHandler) UpdatePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post, err := h.forumService.UpdatePost(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, post)
}

// DeletePost
// DELETE /api/forums/posts/:id
func (h *ForumHandler) DeletePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.forumService.DeletePost(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "post deleted successfully"})
}

// Like toggles the caller's like; {"liked": bool} forces a state
// POST /api/forums/posts/:id/like
func (h *ForumHandler) Like(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	want, ok := optionalState(c, "liked")
	if !ok {
		return
	}

	result, err := h.forumService.SetLike(c.Request.Context(), middleware.CurrentActor(c), id, want)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Admin

// POST /api/admin/forums
func (h *ForumHandler) CreateForum(c *gin.Context) {
	var req services.ForumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	forum, err := h.forumService.CreateForum(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, forum)
}

// PUT /api/admin/forums/:id
func (h *ForumHandler) UpdateForum(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ForumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	forum, err := h.forumService.UpdateForum(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, forum)
}

// DELETE /api/admin/forums/:id
func (h *ForumHandler) DeleteForum(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.forumService.DeleteForum(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "forum deleted successfully"})
}

// ModeratePost pins or locks a thread
// PUT /api/admin/forums/posts/:id
func (h *ForumHandler) ModeratePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ModeratePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post, err := h.forumService.ModeratePost(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, post)
}
