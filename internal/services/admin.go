package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type AdminService struct {
	db     *gorm.DB
	points *GamificationService
	now    func() time.Time
}

func NewAdminService(db *gorm.DB, points *GamificationService) *AdminService {
	return &AdminService{db: db, points: points, now: time.Now}
}

type AdminUserListRequest struct {
	Pagination
	Search string `form:"search"`
	Role   string `form:"role"`
	Status string `form:"status" binding:"omitempty,oneof=active inactive"`
}

// ListUsers returns full member rows, emails included.
func (s *AdminService) ListUsers(ctx context.Context, req *AdminUserListRequest) (*PageResult[models.Profile], error) {
	req.normalize(20)
	query := s.db.WithContext(ctx).Model(&models.Profile{})
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(display_name) LIKE ?", like, like, like)
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	switch req.Status {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Profile
	if err := query.Order("created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, items), nil
}

type AdminUpdateUserRequest struct {
	Role         *string `json:"role" binding:"omitempty,oneof=free basic premium admin"`
	IsActive     *bool   `json:"is_active"`
	PointsAdjust int     `json:"points_adjustment"`
	Reason       string  `json:"reason" binding:"max=255"`
}

// UpdateUser changes role, status or points. Admins cannot demote or disable themselves.
func (s *AdminService) UpdateUser(ctx context.Context, actor Actor, id uint, req *AdminUpdateUserRequest) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("member not found")
		}
		return nil, err
	}
	if profile.ID == actor.ID {
		if req.Role != nil && *req.Role != models.RoleAdmin {
			return nil, response.NewBadRequest("you cannot change your own role")
		}
		if req.IsActive != nil && !*req.IsActive {
			return nil, response.NewBadRequest("you cannot disable your own account")
		}
	}

	updates := make(map[string]interface{})
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&profile).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.IsActive != nil && !*req.IsActive {
			return revokeAllTokens(tx, profile.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.PointsAdjust != 0 {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "Adjusted by an administrator"
		}
		if _, err := s.points.Grant(ctx, &GrantPointsRequest{ProfileID: id, Points: req.PointsAdjust, Reason: reason}); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func revokeAllTokens(tx *gorm.DB, profileID uint) error {
	return tx.Model(&models.RefreshToken{}).
		Where("profile_id = ? AND revoked_at IS NULL", profileID).
		Update("revoked_at", time.Now()).Error
}

// DeleteUser soft-deletes a member and revokes their sessions.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, id uint) error {
	if id == actor.ID {
		return response.NewBadRequest("you cannot delete your own account")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Profile{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewNotFound("member not found")
		}
		return revokeAllTokens(tx, id)
	})
}

type AdminStats struct {
	Members             int64   `json:"members"`
	ActiveMembers       int64   `json:"active_members"`
	NewMembersThisMonth int64   `json:"new_members_this_month"`
	ActiveSubscriptions int64   `json:"active_subscriptions"`
	Courses             int64   `json:"courses"`
	ForumPosts          int64   `json:"forum_posts"`
	Projects            int64   `json:"projects"`
	Resources           int64   `json:"resources"`
	RevenueThisMonth    float64 `json:"revenue_this_month"`
}

// Stats gathers the dashboard counters concurrently.
func (s *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	stats := &AdminStats{}

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, model interface{}, where string, args ...interface{}) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model)
			if where != "" {
				q = q.Where(where, args...)
			}
			return q.Count(dst).Error
		})
	}
	count(&stats.Members, &models.Profile{}, "")
	count(&stats.ActiveMembers, &models.Profile{}, "is_active = ?", true)
	count(&stats.NewMembersThisMonth, &models.Profile{}, "created_at >= ?", monthStart)
	count(&stats.ActiveSubscriptions, &models.Subscription{}, "status = ?", models.SubscriptionActive)
	count(&stats.Courses, &models.Course{}, "")
	count(&stats.ForumPosts, &models.ForumPost{}, "")
	count(&stats.Projects, &models.Project{}, "")
	count(&stats.Resources, &models.Resource{}, "")
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("status = ? AND paid_at >= ?", models.PaymentSucceeded, monthStart).
			Row().Scan(&stats.RevenueThisMonth)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
