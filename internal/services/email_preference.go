package services

import (
	"context"
	"errors"

	"github.com/ZeremItay/autohub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmailPreferenceService struct {
	db *gorm.DB
}

func NewEmailPreferenceService(db *gorm.DB) *EmailPreferenceService {
	return &EmailPreferenceService{db: db}
}

func defaultEmailPreference(profileID uint) *models.EmailPreference {
	return &models.EmailPreference{
		ProfileID:     profileID,
		Marketing:     false,
		ForumReplies:  true,
		Messages:      true,
		ProjectOffers: true,
		CourseUpdates: true,
		WeeklyDigest:  true,
	}
}

// Get returns the member's preferences, creating the defaults on first access.
func (s *EmailPreferenceService) Get(ctx context.Context, profileID uint) (*models.EmailPreference, error) {
	var pref models.EmailPreference
	err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := defaultEmailPreference(profileID)
	// A concurrent first access may have inserted the row already.
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(created).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&pref).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

type UpdateEmailPreferenceRequest struct {
	Marketing     *bool `json:"marketing"`
	ForumReplies  *bool `json:"forum_replies"`
	Messages      *bool `json:"messages"`
	ProjectOffers *bool `json:"project_offers"`
	CourseUpdates *bool `json:"course_updates"`
	WeeklyDigest  *bool `json:"weekly_digest"`
}

func (s *EmailPreferenceService) Update(ctx context.Context, profileID uint, req *UpdateEmailPreferenceRequest) (*models.EmailPreference, error) {
	pref, err := s.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Marketing != nil {
		updates["marketing"] = *req.Marketing
	}
	if req.ForumReplies != nil {
		updates["forum_replies"] = *req.ForumReplies
	}
	if req.Messages != nil {
		updates["messages"] = *req.Messages
	}
	if req.ProjectOffers != nil {
		updates["project_offers"] = *req.ProjectOffers
	}
	if req.CourseUpdates != nil {
		updates["course_updates"] = *req.CourseUpdates
	}
	if req.WeeklyDigest != nil {
		updates["weekly_digest"] = *req.WeeklyDigest
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(pref).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, profileID)
}

// Allows reports whether mail of category may be sent to the member.
func (s *EmailPreferenceService) Allows(ctx context.Context, profileID uint, category string) (bool, error) {
	if category == "" {
		return true, nil
	}
	pref, err := s.Get(ctx, profileID)
	if err != nil {
		return false, err
	}
	return pref.Allows(category), nil
}
