package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInsufficientPoints = response.NewConflict("insufficient points")

var errDuplicateAward = errors.New("points already awarded")

type GamificationService struct {
	db        *gorm.DB
	configSvc *SystemConfigService
	queue     TaskQueue
}

func NewGamificationService(db *gorm.DB, configSvc *SystemConfigService, queue TaskQueue) *GamificationService {
	return &GamificationService{db: db, configSvc: configSvc, queue: queue}
}

func awardKey(profileID uint, action, refType string, refID uint) string {
	return fmt.Sprintf("%d:%s:%s:%d", profileID, action, refType, refID)
}

func (s *GamificationService) pointsEnabled() bool {
	if s.configSvc == nil {
		return true
	}
	return s.configSvc.GetBool("points_enabled", true)
}

// Award applies the active rule for action once per (profile, action, reference).
// It returns nil without error when there is no active rule or the award already happened.
func (s *GamificationService) Award(ctx context.Context, profileID uint, action, refType string, refID uint) (*models.PointsTransaction, error) {
	if !s.pointsEnabled() {
		return nil, nil
	}

	var rule models.PointsRule
	err := s.db.WithContext(ctx).Where("action = ? AND is_active = ?", action, true).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rule.Points == 0 {
		return nil, nil
	}

	key := awardKey(profileID, action, refType, refID)
	entry := &models.PointsTransaction{
		ProfileID:     profileID,
		Action:        action,
		Points:        rule.Points,
		ReferenceType: refType,
		ReferenceID:   refID,
		AwardKey:      &key,
		Description:   rule.Description,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errDuplicateAward
		}
		return tx.Model(&models.Profile{}).Where("id = ?", profileID).
			UpdateColumn("points", gorm.Expr("points + ?", rule.Points)).Error
	})
	if errors.Is(err, errDuplicateAward) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Debug().Uint("profile_id", profileID).Str("action", action).Int("points", rule.Points).Msg("points awarded")
	return entry, nil
}

// deductPoints lowers the balance only when it covers amount and records the
// ledger entry. It must run inside tx.
func deductPoints(tx *gorm.DB, entry *models.PointsTransaction) error {
	amount := -entry.Points
	if amount <= 0 {
		return response.NewBadRequest("deduction must be positive")
	}

	res := tx.Model(&models.Profile{}).
		Where("id = ? AND points >= ?", entry.ProfileID, amount).
		UpdateColumn("points", gorm.Expr("points - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientPoints
	}
	return tx.Create(entry).Error
}

// chargeOnce records a keyed deduction and lowers the balance. The ledger row
// goes in first so a concurrent charge with the same key becomes a no-op and
// reports false instead of failing on the unique index.
func chargeOnce(tx *gorm.DB, entry *models.PointsTransaction) (bool, error) {
	amount := -entry.Points
	if amount <= 0 || entry.AwardKey == nil {
		return false, response.NewBadRequest("charge needs a positive amount and a key")
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	res = tx.Model(&models.Profile{}).
		Where("id = ? AND points >= ?", entry.ProfileID, amount).
		UpdateColumn("points", gorm.Expr("points - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, ErrInsufficientPoints
	}
	return true, nil
}

// Deduct removes amount points, failing with ErrInsufficientPoints instead of going negative.
func (s *GamificationService) Deduct(ctx context.Context, profileID uint, amount int, action, refType string, refID uint, description string) (*models.PointsTransaction, error) {
	entry := &models.PointsTransaction{
		ProfileID:     profileID,
		Action:        action,
		Points:        -amount,
		ReferenceType: refType,
		ReferenceID:   refID,
		Description:   description,
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deductPoints(tx, entry)
	}); err != nil {
		return nil, err
	}
	return entry, nil
}

type GrantPointsRequest struct {
	ProfileID uint   `json:"profile_id" binding:"required"`
	Points    int    `json:"points" binding:"required"`
	Reason    string `json:"reason" binding:"required,max=255"`
}

// Grant adds (or with a negative value removes) points manually and notifies the member.
func (s *GamificationService) Grant(ctx context.Context, req *GrantPointsRequest) (*models.PointsTransaction, error) {
	if req.Points == 0 {
		return nil, response.NewBadRequest("points must not be zero")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, req.ProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("member not found")
		}
		return nil, err
	}

	entry := &models.PointsTransaction{
		ProfileID:     req.ProfileID,
		Action:        models.ActionManualGrant,
		Points:        req.Points,
		ReferenceType: "manual",
		Description:   req.Reason,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Points < 0 {
			return deductPoints(tx, entry)
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ?", req.ProfileID).
			UpdateColumn("points", gorm.Expr("points + ?", req.Points)).Error
	})
	if err != nil {
		return nil, err
	}

	enqueue(s.queue, TaskTypeNotification, NotificationTask{
		ProfileID: req.ProfileID,
		Type:      models.NotificationPoints,
		Title:     fmt.Sprintf("%+d points", req.Points),
		Body:      req.Reason,
		Link:      "/gamification",
	})
	return entry, nil
}

type LeaderboardRequest struct {
	Period string `form:"period"` // all, month, week
	Limit  int    `form:"limit"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank" gorm:"-"`
	ProfileID   uint   `json:"profile_id"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Points      int    `json:"points" gorm:"column:total_points"`
	Level       int    `json:"level" gorm:"-"`
}

func periodStart(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "week":
		return now.AddDate(0, 0, -7), true
	case "month":
		return now.AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// Leaderboard ranks members by balance ("all") or by points earned in the period.
func (s *GamificationService) Leaderboard(ctx context.Context, req *LeaderboardRequest) ([]LeaderboardEntry, error) {
	if req.Limit <= 0 || req.Limit > maxPageSize {
		req.Limit = 20
	}

	var entries []LeaderboardEntry
	var err error
	if since, ok := periodStart(req.Period, time.Now()); ok {
		err = s.db.WithContext(ctx).Table("points_transactions AS pt").
			Select("pt.profile_id, p.full_name, p.display_name, p.avatar_url, SUM(pt.points) AS total_points").
			Joins("JOIN profiles p ON p.id = pt.profile_id AND p.deleted_at IS NULL AND p.is_active = ?", true).
			Where("pt.created_at >= ?", since).
			Group("pt.profile_id, p.full_name, p.display_name, p.avatar_url").
			Having("SUM(pt.points) > 0").
			Order("total_points DESC, pt.profile_id ASC").
			Limit(req.Limit).
			Scan(&entries).Error
	} else {
		err = s.db.WithContext(ctx).Model(&models.Profile{}).
			Select("id AS profile_id, full_name, display_name, avatar_url, points AS total_points").
			Where("is_active = ?", true).
			Order("points DESC, id ASC").
			Limit(req.Limit).
			Scan(&entries).Error
	}
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Level = models.LevelForPoints(entries[i].Points)
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return entries, nil
}

type PointsSummary struct {
	Points       int                        `json:"points"`
	Level        int                        `json:"level"`
	NextLevelAt  int                        `json:"next_level_at"`
	Rank         int64                      `json:"rank"`
	Transactions []models.PointsTransaction `json:"transactions"`
}

// Summary returns the member's balance, level, overall rank and recent ledger entries.
func (s *GamificationService) Summary(ctx context.Context, profileID uint) (*PointsSummary, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, profileID).Error; err != nil {
		return nil, err
	}

	var ahead int64
	s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("is_active = ? AND points > ?", true, profile.Points).
		Count(&ahead)

	var recent []models.PointsTransaction
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).
		Order("created_at DESC, id DESC").Limit(20).Find(&recent).Error; err != nil {
		return nil, err
	}

	level := profile.Level()
	return &PointsSummary{
		Points:       profile.Points,
		Level:        level,
		NextLevelAt:  level * 100,
		Rank:         ahead + 1,
		Transactions: recent,
	}, nil
}

func (s *GamificationService) ListRules() ([]models.PointsRule, error) {
	var rules []models.PointsRule
	if err := s.db.Order("action").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

type CreatePointsRuleRequest struct {
	Action      string `json:"action" binding:"required,max=50"`
	Points      int    `json:"points"`
	Description string `json:"description" binding:"max=255"`
}

func (s *GamificationService) CreateRule(req *CreatePointsRuleRequest) (*models.PointsRule, error) {
	var count int64
	s.db.Model(&models.PointsRule{}).Where("action = ?", req.Action).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("a rule for this action already exists")
	}

	rule := &models.PointsRule{
		Action:      req.Action,
		Points:      req.Points,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

type UpdatePointsRuleRequest struct {
	Points      *int    `json:"points"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (s *GamificationService) UpdateRule(id uint, req *UpdatePointsRuleRequest) (*models.PointsRule, error) {
	var rule models.PointsRule
	if err := s.db.First(&rule, id).Error; err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Points != nil {
		updates["points"] = *req.Points
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.db.Model(&rule).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &rule, s.db.First(&rule, id).Error
}
