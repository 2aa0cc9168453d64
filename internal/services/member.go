package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/storage"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

// MemberService covers public profiles, account settings and the member directory.
type MemberService struct {
	db       *gorm.DB
	uploader *FileUploader
}

func NewMemberService(db *gorm.DB, uploader *FileUploader) *MemberService {
	return &MemberService{db: db, uploader: uploader}
}

type MemberListRequest struct {
	Pagination
	Search string `form:"search"`
	Role   string `form:"role"`
	Tag    string `form:"tag"`  // tag slug or id
	Sort   string `form:"sort"` // newest, points, name
}

// List returns active members without their email addresses.
func (s *MemberService) List(ctx context.Context, req *MemberListRequest) (*PageResult[models.Profile], error) {
	req.normalize(24)

	query := s.db.WithContext(ctx).Model(&models.Profile{}).Where("profiles.is_active = ?", true)
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(profiles.full_name) LIKE ? OR LOWER(profiles.display_name) LIKE ? OR LOWER(profiles.headline) LIKE ?", like, like, like)
	}
	if req.Role != "" {
		query = query.Where("profiles.role = ?", req.Role)
	}
	if req.Tag != "" {
		query = query.Where("profiles.id IN (?)", taggedIDs(s.db, "profile_skills", "profile_id", req.Tag))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	switch req.Sort {
	case "points":
		query = query.Order("profiles.points DESC, profiles.id ASC")
	case "name":
		query = query.Order("profiles.full_name ASC, profiles.id ASC")
	default:
		query = query.Order("profiles.created_at DESC, profiles.id DESC")
	}

	var items []models.Profile
	if err := query.Select(publicProfileColumns).Preload("Skills").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, items), nil
}

// taggedIDs is a subquery selecting owner ids linked to the tag (slug or numeric id) through joinTable.
func taggedIDs(db *gorm.DB, joinTable, ownerColumn, tag string) *gorm.DB {
	sub := db.Table(joinTable).Select(joinTable + "." + ownerColumn).
		Joins("JOIN tags ON tags.id = " + joinTable + ".tag_id")
	if id, err := strconv.ParseUint(tag, 10, 64); err == nil {
		return sub.Where("tags.id = ?", id)
	}
	return sub.Where("tags.slug = ?", tag)
}

type MemberStats struct {
	ForumPosts        int64 `json:"forum_posts"`
	ProjectsPublished int64 `json:"projects_published"`
	CoursesEnrolled   int64 `json:"courses_enrolled"`
	CoursesCompleted  int64 `json:"courses_completed"`
	ResourcesShared   int64 `json:"resources_shared"`
}

type MemberDetailResponse struct {
	Profile *models.Profile `json:"profile"`
	Level   int             `json:"level"`
	Stats   MemberStats     `json:"stats"`
}

// GetDetail returns a public profile. The email is only shown to the member and admins.
func (s *MemberService) GetDetail(ctx context.Context, viewer Actor, id uint) (*MemberDetailResponse, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Preload("Skills").First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("member not found")
		}
		return nil, err
	}
	self := viewer.ID == profile.ID
	if !profile.IsActive && !self && !viewer.IsAdmin() {
		return nil, response.NewNotFound("member not found")
	}
	if !self && !viewer.IsAdmin() {
		profile.Email = ""
		profile.LastLogin = nil
	}

	db := s.db.WithContext(ctx)
	var stats MemberStats
	db.Model(&models.ForumPost{}).Where("author_id = ?", id).Count(&stats.ForumPosts)
	db.Model(&models.Project{}).Where("owner_id = ?", id).Count(&stats.ProjectsPublished)
	db.Model(&models.CourseEnrollment{}).Where("profile_id = ?", id).Count(&stats.CoursesEnrolled)
	db.Model(&models.CourseEnrollment{}).Where("profile_id = ? AND completed_at IS NOT NULL", id).Count(&stats.CoursesCompleted)
	db.Model(&models.Resource{}).Where("author_id = ?", id).Count(&stats.ResourcesShared)

	return &MemberDetailResponse{Profile: &profile, Level: profile.Level(), Stats: stats}, nil
}

type UpdateProfileRequest struct {
	FullName    *string `json:"full_name" binding:"omitempty,max=150"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Headline    *string `json:"headline" binding:"omitempty,max=200"`
	Bio         *string `json:"bio" binding:"omitempty,max=5000"`
	Location    *string `json:"location" binding:"omitempty,max=150"`
	Website     *string `json:"website" binding:"omitempty,max=300"`
	SkillIDs    *[]uint `json:"skill_ids"`
}

// UpdateProfile changes account settings of profileID and returns the refreshed row.
func (s *MemberService) UpdateProfile(ctx context.Context, profileID uint, req *UpdateProfileRequest) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("member not found")
		}
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Headline != nil {
		updates["headline"] = *req.Headline
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Website != nil {
		website := strings.TrimSpace(*req.Website)
		if website != "" && !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
			return nil, response.NewBadRequest("website must start with http:// or https://")
		}
		updates["website"] = website
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&profile).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.SkillIDs != nil {
			tags, err := loadTags(tx, *req.SkillIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&profile).Association("Skills").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Skills").First(&profile, profileID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// loadTags resolves tag ids, rejecting unknown ones.
func loadTags(tx *gorm.DB, ids []uint) ([]models.Tag, error) {
	tags := []models.Tag{}
	if len(ids) == 0 {
		return tags, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(uniqueIDs(ids)) {
		return nil, response.NewBadRequest("unknown tag id")
	}
	return tags, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// UploadAvatar stores an image and points the profile at it.
func (s *MemberService) UploadAvatar(ctx context.Context, profileID uint, fileName string, size int64, contentType string, r io.Reader) (*models.Profile, error) {
	file, err := s.uploader.Upload(ctx, storage.FolderAvatars, fileName, size, contentType, r)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profileID).Update("avatar_url", file.URL)
	if res.Error != nil || res.RowsAffected == 0 {
		s.uploader.Remove(ctx, file.Key)
		if res.Error != nil {
			return nil, res.Error
		}
		return nil, response.NewNotFound("member not found")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Preload("Skills").First(&profile, profileID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
