package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Conversations lists one row per partner, newest first
// GET /api/messages/conversations
func (h *MessageHandler) Conversations(c *gin.Context) {
	conversations, err := h.messageService.Conversations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conversations)
}

// Thread returns the messages exchanged with partner_id and marks them read
// GET /api/messages?partner_id=
func (h *MessageHandler) Thread(c *gin.Context) {
	var req services.ThreadRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.messageService.Thread(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Send
// POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, msg)
}

// UnreadCount
// GET /api/messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messageService.UnreadCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}
