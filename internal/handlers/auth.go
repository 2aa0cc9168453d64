package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
	configSvc   *services.SystemConfigService
}

func NewAuthHandler(authService *services.AuthService, configSvc *services.SystemConfigService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		configSvc:   configSvc,
	}
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Signup registers a free member
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Signup(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	services.LogInfo("Auth", "Signup", "member signed up", &result.Profile.ID, c.ClientIP(), c.Request.UserAgent(), nil)
	response.Created(c, result)
}

// Login handles member login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		services.LogWarning("Auth", "Login", "failed login for "+req.Email, nil, c.ClientIP(), c.Request.UserAgent(), nil)
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Refresh rotates the refresh token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Logout revokes the refresh token; the access token simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshTokenRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "logged out successfully"})
}

// Me returns the session profile
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.authService.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, me)
}

// ChangePassword changes the caller's password and signs out other devices
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.authService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		response.Error(c, err)
		return
	}

	services.LogInfo("Auth", "ChangePassword", "password changed", &userID, c.ClientIP(), c.Request.UserAgent(), nil)
	response.Success(c, gin.H{"message": "password changed"})
}

// GetAuthConfig tells the login page which options to show
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{
		"ldap_enabled":      h.authService.IsLDAPEnabled(),
		"registration_open": h.configSvc.GetBool("registration_open", true),
		"site_name":         h.configSvc.GetWithDefault("site_name", "AutoHub"),
	})
}
