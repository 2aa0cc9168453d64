package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

var (
	errInvalidCredentials = response.NewUnauthorized("invalid email or password")
	errProfileDisabled    = response.NewUnauthorized("account is disabled")
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	configSvc   *SystemConfigService
	queue       TaskQueue
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapSvc *LDAPService, configSvc *SystemConfigService, queue TaskQueue) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: ldapSvc,
		jwtConfig:   jwtCfg,
		configSvc:   configSvc,
		queue:       queue,
	}
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required,max=150"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

// AuthResult is returned by sign up, login and refresh.
type AuthResult struct {
	AccessToken     string          `json:"access_token"`
	AccessExpireAt  time.Time       `json:"access_expire_at"`
	RefreshToken    string          `json:"refresh_token"`
	RefreshExpireAt time.Time       `json:"refresh_expire_at"`
	Profile         *models.Profile `json:"profile"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) emailDomainAllowed(email string) bool {
	domains := s.configSvc.GetList("signup_allowed_domains")
	if len(domains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range domains {
		if strings.EqualFold(strings.TrimPrefix(d, "@"), domain) {
			return true
		}
	}
	return false
}

// Signup creates a free profile and signs it in.
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest, clientIP, userAgent string) (*AuthResult, error) {
	if !s.configSvc.GetBool("registration_open", true) {
		return nil, response.NewForbidden("registration is closed")
	}

	email := normalizeEmail(req.Email)
	if !s.emailDomainAllowed(email) {
		return nil, response.NewForbidden("sign up is restricted to approved email domains")
	}

	var count int64
	s.db.WithContext(ctx).Unscoped().Model(&models.Profile{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("email already registered")
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		Email:    email,
		Password: hashed,
		FullName: strings.TrimSpace(req.FullName),
		Role:     models.RoleFree,
		AuthType: "local",
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}

	s.afterSignup(profile)
	return s.issueTokens(ctx, profile, clientIP, userAgent)
}

func (s *AuthService) afterSignup(profile *models.Profile) {
	siteName := s.configSvc.GetWithDefault("site_name", "AutoHub")
	subject, html := welcomeEmail(siteName, profile.Name())
	enqueue(s.queue, TaskTypeEmail, EmailTask{To: profile.Email, Subject: subject, HTML: html, ProfileID: profile.ID})
	enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
		ProfileID:     profile.ID,
		Action:        models.ActionSignup,
		ReferenceType: "profile",
		ReferenceID:   profile.ID,
	})
	enqueue(s.queue, TaskTypeActivity, ActivityTask{
		ActorID:    profile.ID,
		Verb:       models.VerbJoined,
		ObjectType: "profile",
		ObjectID:   profile.ID,
		Summary:    profile.Name() + " joined the community",
	})
}

// Login authenticates a member and returns a token pair.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*AuthResult, error) {
	var profile *models.Profile
	var err error

	if req.AuthType == "" {
		req.AuthType = "local"
	}

	switch req.AuthType {
	case "local":
		profile, err = s.localAuth(ctx, normalizeEmail(req.Email), req.Password)
	case "ldap":
		profile, err = s.ldapAuth(ctx, strings.TrimSpace(req.Email), req.Password)
	default:
		return nil, response.NewBadRequest("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	profile.LastLogin = &now
	s.db.WithContext(ctx).Model(profile).UpdateColumn("last_login", now)

	return s.issueTokens(ctx, profile, clientIP, userAgent)
}

func (s *AuthService) issueTokens(ctx context.Context, profile *models.Profile, clientIP, userAgent string) (*AuthResult, error) {
	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	token, err := utils.GenerateToken(profile.ID, profile.Email, profile.Role, accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := time.Now().Add(time.Duration(refreshHours) * time.Hour)
	refreshRecord := models.RefreshToken{
		ProfileID:   profile.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   refreshExpireAt,
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := s.db.WithContext(ctx).Create(&refreshRecord).Error; err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:     token,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		Profile:         profile,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and replaced.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, clientIP, userAgent string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, response.NewBadRequest("refresh token required")
	}

	hash := hashRefreshToken(refreshToken)

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, err
	}

	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, stored.ProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("account not found")
		}
		return nil, err
	}
	if !profile.IsActive {
		return nil, errProfileDisabled
	}

	accessHours := s.getAccessTokenExpireHours()
	refreshHours := s.getRefreshTokenExpireHours()

	newAccessToken, err := utils.GenerateToken(profile.ID, profile.Email, profile.Role, accessHours)
	if err != nil {
		return nil, err
	}

	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		ProfileID:   profile.ID,
		TokenHash:   newRefreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional revoke so two concurrent refreshes cannot both succeed.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).Where("id = ?", stored.ID).
			Update("replaced_by_token_id", newRefresh.ID).Error
	}); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
		Profile:         &profile,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	hash := hashRefreshToken(refreshToken)
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", time.Now()).Error
}

// ValidateSession is consulted on every authenticated request.
func (s *AuthService) ValidateSession(profileID uint) (string, error) {
	var profile models.Profile
	if err := s.db.Select("id", "role", "is_active").First(&profile, profileID).Error; err != nil {
		return "", errors.New("account not found")
	}
	if !profile.IsActive {
		return "", errors.New("account is disabled")
	}
	return profile.Role, nil
}

type MeResponse struct {
	Profile      *models.Profile      `json:"profile"`
	Subscription *models.Subscription `json:"subscription"`
	Level        int                  `json:"level"`
	IsPremium    bool                 `json:"is_premium"`
}

// Me loads the session profile with its skills and current subscription.
func (s *AuthService) Me(ctx context.Context, profileID uint) (*MeResponse, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Preload("Skills").First(&profile, profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("profile not found")
		}
		return nil, err
	}

	me := &MeResponse{
		Profile:   &profile,
		Level:     profile.Level(),
		IsPremium: models.HasPremiumAccess(profile.Role),
	}

	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&sub).Error
	if err == nil {
		me.Subscription = &sub
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return me, nil
}

func (s *AuthService) getAccessTokenExpireHours() int {
	defaultHours := s.jwtConfig.ExpireHour
	value := s.configSvc.GetWithDefault("auth_access_token_expire_hours", strconv.Itoa(defaultHours))
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return defaultHours
	}
	return hours
}

func (s *AuthService) getRefreshTokenExpireHours() int {
	hours := s.configSvc.GetInt("auth_refresh_token_expire_hours", 720)
	if hours <= 0 {
		return 720
	}
	return hours
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	tokenHash = hashRefreshToken(token)
	return token, tokenHash, nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func (s *AuthService) localAuth(ctx context.Context, email, password string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("email = ? AND auth_type = ?", email, "local").First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(password, profile.Password) {
		return nil, errInvalidCredentials
	}
	if !profile.IsActive {
		return nil, errProfileDisabled
	}

	return &profile, nil
}

func (s *AuthService) ldapAuth(ctx context.Context, login, password string) (*models.Profile, error) {
	if s.ldapService == nil || !s.ldapService.IsEnabled() {
		return nil, response.NewBadRequest("LDAP login is not enabled")
	}

	ldapUser, err := s.ldapService.Authenticate(login, password)
	if err != nil {
		logger.Warn().Err(err).Str("login", login).Msg("ldap authentication failed")
		return nil, errInvalidCredentials
	}

	email := normalizeEmail(ldapUser.Email)
	var profile models.Profile
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.Profile{
			Email:    email,
			FullName: ldapUser.FullName,
			Role:     models.RoleFree,
			AuthType: "ldap",
			IsActive: true,
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return nil, err
		}
		s.afterSignup(&profile)
		return &profile, nil
	} else if err != nil {
		return nil, err
	}

	if profile.AuthType != "ldap" {
		return nil, response.NewConflict("this email is registered with a password login")
	}
	if !profile.IsActive {
		return nil, errProfileDisabled
	}

	if ldapUser.FullName != "" && ldapUser.FullName != profile.FullName {
		profile.FullName = ldapUser.FullName
		s.db.WithContext(ctx).Model(&profile).UpdateColumn("full_name", ldapUser.FullName)
	}
	return &profile, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService != nil && s.ldapService.IsEnabled()
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

func (s *AuthService) ChangePassword(ctx context.Context, profileID uint, req *ChangePasswordRequest) error {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, profileID).Error; err != nil {
		return response.NewNotFound("profile not found")
	}

	if profile.AuthType != "local" {
		return response.NewBadRequest("LDAP accounts cannot change password here")
	}

	if !utils.CheckPassword(req.OldPassword, profile.Password) {
		return response.NewBadRequest("incorrect old password")
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&profile).UpdateColumn("password", hashed).Error; err != nil {
			return err
		}
		// Sign out other devices.
		return revokeAllTokens(tx, profileID)
	})
}

// CreateAdmin creates an administrator, or promotes the existing profile with that email.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, fullName string) (*models.Profile, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 8 {
		return nil, response.NewBadRequest("email and a password of at least 8 characters are required")
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	var profile models.Profile
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.Profile{
			Email:    email,
			Password: hashed,
			FullName: fullName,
			Role:     models.RoleAdmin,
			AuthType: "local",
			IsActive: true,
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	} else if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"role": models.RoleAdmin, "password": hashed, "auth_type": "local", "is_active": true}
	if fullName != "" {
		updates["full_name"] = fullName
	}
	if err := s.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateAdminIfNotExists bootstraps the first administrator when none exists.
func (s *AuthService) CreateAdminIfNotExists(ctx context.Context, email, password string) error {
	var count int64
	s.db.WithContext(ctx).Model(&models.Profile{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return nil
	}
	if _, err := s.CreateAdmin(ctx, email, password, "Administrator"); err != nil {
		return err
	}
	logger.Infof("[Auth] Created initial administrator %s", normalizeEmail(email))
	return nil
}

// ResetPassword sets a new password and revokes every refresh token of the profile.
func (s *AuthService) ResetPassword(ctx context.Context, email, password string) error {
	if len(password) < 8 {
		return response.NewBadRequest("password must be at least 8 characters")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("profile not found")
		}
		return err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&profile).Updates(map[string]interface{}{"password": hashed, "auth_type": "local"}).Error; err != nil {
			return err
		}
		return revokeAllTokens(tx, profile.ID)
	})
}

// hashPassword turns the bcrypt length limit into a client error.
func hashPassword(password string) (string, error) {
	hashed, err := utils.HashPassword(password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", response.NewBadRequest(err.Error())
	}
	return hashed, err
}
