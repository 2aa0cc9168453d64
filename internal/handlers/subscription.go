package handlers

import (
	"crypto/subtle"

	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

// WebhookSecretHeader carries the shared secret of the payment provider.
const WebhookSecretHeader = "X-Webhook-Secret"

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
	webhookSecret       string
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService, webhookSecret string) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		webhookSecret:       webhookSecret,
	}
}

// Plans
// GET /api/subscription/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans, err := h.subscriptionService.Plans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plans)
}

// Current returns the caller's subscription, or null
// GET /api/subscription
func (h *SubscriptionHandler) Current(c *gin.Context) {
	view, err := h.subscriptionService.Current(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Checkout creates a pending payment for the chosen plan
// POST /api/subscription/checkout
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	payment, err := h.subscriptionService.Checkout(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, payment)
}

// Confirm marks a payment as paid. Callers are either an admin or the
// payment provider presenting the shared secret.
// POST /api/subscription/payments/:id/confirm
func (h *SubscriptionHandler) Confirm(c *gin.Context) {
	if !h.validSecret(c.GetHeader(WebhookSecretHeader)) && middleware.GetRole(c) != "admin" {
		response.Forbidden(c, "admin access or a valid webhook secret is required")
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	payment, err := h.subscriptionService.Confirm(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, payment)
}

func (h *SubscriptionHandler) validSecret(presented string) bool {
	if h.webhookSecret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookSecret)) == 1
}

// Cancel stops renewal at the end of the current period
// POST /api/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	sub, err := h.subscriptionService.Cancel(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// Payments
// GET /api/subscription/payments
func (h *SubscriptionHandler) Payments(c *gin.Context) {
	var page services.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.subscriptionService.Payments(c.Request.Context(), middleware.GetUserID(c), &page)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}
