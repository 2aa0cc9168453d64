package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

// tagJoinTables are the many2many tables that reference tags.
var tagJoinTables = []string{"profile_skills", "project_tags", "recording_tags", "resource_tags"}

type TagService struct {
	db *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

type TagListRequest struct {
	Search   string `form:"search"`
	Category string `form:"category"`
}

func (s *TagService) List(ctx context.Context, req *TagListRequest) ([]models.Tag, error) {
	query := s.db.WithContext(ctx).Model(&models.Tag{})
	if req.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(req.Search)+"%")
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}

	var tags []models.Tag
	if err := query.Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}

	usage, err := s.usageCounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		tags[i].UsageCount = usage[tags[i].ID]
	}
	return tags, nil
}

type tagUsage struct {
	TagID uint
	Count int64
}

func (s *TagService) usageCounts(ctx context.Context) (map[uint]int64, error) {
	usage := make(map[uint]int64)
	for _, table := range tagJoinTables {
		var rows []tagUsage
		if err := s.db.WithContext(ctx).Table(table).
			Select("tag_id, COUNT(*) AS count").
			Group("tag_id").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			usage[r.TagID] += r.Count
		}
	}
	return usage, nil
}

type CreateTagRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Category string `json:"category" binding:"max=50"`
	Color    string `json:"color" binding:"max=20"`
}

func (s *TagService) Create(ctx context.Context, req *CreateTagRequest) (*models.Tag, error) {
	name := strings.TrimSpace(req.Name)
	slug := utils.Slugify(name)
	if slug == "" {
		return nil, response.NewBadRequest("tag name must contain letters or digits")
	}
	if s.slugTaken(ctx, slug, 0) {
		return nil, response.NewConflict("tag already exists")
	}

	tag := &models.Tag{Name: name, Slug: slug, Category: req.Category, Color: req.Color}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, err
	}
	return tag, nil
}

type UpdateTagRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=80"`
	Category *string `json:"category" binding:"omitempty,max=50"`
	Color    *string `json:"color" binding:"omitempty,max=20"`
}

func (s *TagService) Update(ctx context.Context, id uint, req *UpdateTagRequest) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("tag not found")
		}
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		slug := utils.Slugify(name)
		if slug == "" {
			return nil, response.NewBadRequest("tag name must contain letters or digits")
		}
		if s.slugTaken(ctx, slug, id) {
			return nil, response.NewConflict("tag already exists")
		}
		updates["name"] = name
		updates["slug"] = slug
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&tag).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &tag, nil
}

// Delete removes the tag and every link to it.
func (s *TagService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Tag{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewNotFound("tag not found")
		}
		for _, table := range tagJoinTables {
			if err := tx.Exec("DELETE FROM "+table+" WHERE tag_id = ?", id).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TagService) slugTaken(ctx context.Context, slug string, exceptID uint) bool {
	var count int64
	s.db.WithContext(ctx).Model(&models.Tag{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count)
	return count > 0
}
