package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/storage"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

var (
	resourceLikes = reaction{
		itemColumn:    "resource_id",
		counterTable:  "resources",
		counterColumn: "likes_count",
		newRow: func(itemID, profileID uint) interface{} {
			return &models.ResourceLike{ResourceID: itemID, ProfileID: profileID}
		},
	}
	resourceSaves = reaction{
		itemColumn:    "resource_id",
		counterTable:  "resources",
		counterColumn: "saves_count",
		newRow: func(itemID, profileID uint) interface{} {
			return &models.ResourceSave{ResourceID: itemID, ProfileID: profileID}
		},
	}
)

type ResourceService struct {
	db       *gorm.DB
	queue    TaskQueue
	hub      *SSEHub
	uploader *FileUploader
	points   *GamificationService
}

func NewResourceService(db *gorm.DB, queue TaskQueue, hub *SSEHub, uploader *FileUploader, points *GamificationService) *ResourceService {
	return &ResourceService{db: db, queue: queue, hub: hub, uploader: uploader, points: points}
}

type ResourceListRequest struct {
	Pagination
	Type   string `form:"type" binding:"omitempty,oneof=file link video document"`
	Tag    string `form:"tag"`
	Search string `form:"search"`
	Saved  bool   `form:"saved"`
	Sort   string `form:"sort" binding:"omitempty,oneof=newest popular"`
}

func (s *ResourceService) List(ctx context.Context, actor Actor, req *ResourceListRequest) (*PageResult[models.Resource], error) {
	req.normalize(20)
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Resource{})

	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if req.Tag != "" {
		query = query.Where("id IN (?)", taggedIDs(db, "resource_tags", "resource_id", req.Tag))
	}
	if req.Saved {
		query = query.Where("id IN (?)", db.Model(&models.ResourceSave{}).Select("resource_id").Where("profile_id = ?", actor.ID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	switch req.Sort {
	case "popular":
		query = query.Order("downloads DESC, likes_count DESC, id DESC")
	default:
		query = query.Order("created_at DESC, id DESC")
	}

	var items []models.Resource
	if err := query.Preload("Author", selectPublicProfile).Preload("Tags").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	if err := s.markReactions(db, actor, items); err != nil {
		return nil, err
	}
	for i := range items {
		s.redact(actor, &items[i])
	}
	return newPageResult(req.Pagination, total, items), nil
}

func (s *ResourceService) markReactions(db *gorm.DB, actor Actor, items []models.Resource) error {
	ids := make([]uint, len(items))
	for i, r := range items {
		ids[i] = r.ID
	}
	liked, err := reactedIDs(db, &models.ResourceLike{}, "resource_id", actor.ID, ids)
	if err != nil {
		return err
	}
	saved, err := reactedIDs(db, &models.ResourceSave{}, "resource_id", actor.ID, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Liked = liked[items[i].ID]
		items[i].Saved = saved[items[i].ID]
	}
	return nil
}

// redact hides the file location until the caller goes through Download.
func (s *ResourceService) redact(actor Actor, r *models.Resource) {
	if actor.IsAdmin() || r.AuthorID == actor.ID {
		return
	}
	if r.PointsCost > 0 || (r.IsPremium && !actor.HasPremium()) {
		r.FileURL = ""
		r.ExternalURL = ""
	}
}

func (s *ResourceService) getResource(ctx context.Context, id uint) (*models.Resource, error) {
	var res models.Resource
	if err := s.db.WithContext(ctx).First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("resource not found")
		}
		return nil, err
	}
	return &res, nil
}

func (s *ResourceService) Get(ctx context.Context, actor Actor, id uint) (*models.Resource, error) {
	var res models.Resource
	db := s.db.WithContext(ctx)
	if err := db.Preload("Author", selectPublicProfile).Preload("Tags").First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("resource not found")
		}
		return nil, err
	}
	items := []models.Resource{res}
	if err := s.markReactions(db, actor, items); err != nil {
		return nil, err
	}
	res = items[0]
	s.redact(actor, &res)
	return &res, nil
}

// Upload stores a file for a resource that is created afterwards.
func (s *ResourceService) Upload(ctx context.Context, fileName string, size int64, contentType string, r io.Reader) (*UploadedFile, error) {
	return s.uploader.Upload(ctx, storage.FolderResources, fileName, size, contentType, r)
}

type CreateResourceRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=20000"`
	Type        string `json:"type" binding:"omitempty,oneof=file link video document"`
	FileURL     string `json:"file_url" binding:"max=500"`
	FileName    string `json:"file_name" binding:"max=255"`
	FileSize    int64  `json:"file_size" binding:"min=0"`
	MimeType    string `json:"mime_type" binding:"max=120"`
	ExternalURL string `json:"external_url" binding:"omitempty,url,max=500"`
	IsPremium   bool   `json:"is_premium"`
	PointsCost  int    `json:"points_cost" binding:"min=0"`
	TagIDs      []uint `json:"tag_ids"`
}

// storageKey maps a public URL produced by the uploader back to its object key.
func (s *ResourceService) storageKey(fileURL string) string {
	if s.uploader == nil || s.uploader.store == nil || fileURL == "" {
		return ""
	}
	prefix := strings.TrimSuffix(s.uploader.store.URL(""), "/") + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(fileURL, prefix)
}

// Create adds a library item. Sharing is open to premium members and admins.
func (s *ResourceService) Create(ctx context.Context, actor Actor, req *CreateResourceRequest) (*models.Resource, error) {
	if !actor.HasPremium() {
		return nil, response.NewForbidden("sharing resources requires a premium membership")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, response.NewBadRequest("title is required")
	}
	resType := req.Type
	if resType == "" {
		resType = models.ResourceTypeFile
		if req.FileURL == "" && req.ExternalURL != "" {
			resType = models.ResourceTypeLink
		}
	}
	if resType == models.ResourceTypeLink && req.ExternalURL == "" {
		return nil, response.NewBadRequest("external_url is required for links")
	}
	if resType != models.ResourceTypeLink && req.FileURL == "" && req.ExternalURL == "" {
		return nil, response.NewBadRequest("upload a file or provide external_url")
	}

	res := &models.Resource{
		AuthorID:    actor.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        resType,
		FileURL:     req.FileURL,
		FileKey:     s.storageKey(req.FileURL),
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		MimeType:    req.MimeType,
		ExternalURL: req.ExternalURL,
		IsPremium:   req.IsPremium,
		PointsCost:  req.PointsCost,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, req.TagIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit("Tags").Create(res).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			return tx.Model(res).Association("Tags").Append(tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
		ProfileID: actor.ID, Action: models.ActionResourceShared, ReferenceType: "resource", ReferenceID: res.ID,
	})
	enqueue(s.queue, TaskTypeActivity, ActivityTask{
		ActorID:    actor.ID,
		Verb:       models.VerbSharedResource,
		ObjectType: "resource",
		ObjectID:   res.ID,
		Summary:    fmt.Sprintf("shared %q", res.Title),
		Metadata:   map[string]interface{}{"type": res.Type},
	})
	publishInvalidation(s.hub, "resources", res.ID)
	return s.Get(ctx, actor, res.ID)
}

type UpdateResourceRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=20000"`
	ExternalURL *string `json:"external_url" binding:"omitempty,max=500"`
	IsPremium   *bool   `json:"is_premium"`
	PointsCost  *int    `json:"points_cost" binding:"omitempty,min=0"`
	TagIDs      *[]uint `json:"tag_ids"`
}

func (s *ResourceService) Update(ctx context.Context, actor Actor, id uint, req *UpdateResourceRequest) (*models.Resource, error) {
	res, err := s.getResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, res); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewBadRequest("title is required")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ExternalURL != nil {
		updates["external_url"] = *req.ExternalURL
	}
	if req.IsPremium != nil {
		updates["is_premium"] = *req.IsPremium
	}
	if req.PointsCost != nil {
		updates["points_cost"] = *req.PointsCost
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(res).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.TagIDs != nil {
			tags, err := loadTags(tx, *req.TagIDs)
			if err != nil {
				return err
			}
			return tx.Model(res).Association("Tags").Replace(tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishInvalidation(s.hub, "resources", res.ID)
	return s.Get(ctx, actor, id)
}

func (s *ResourceService) Delete(ctx context.Context, actor Actor, id uint) error {
	res, err := s.getResource(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwner(actor, res); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(res).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("resource_id = ?", res.ID).Delete(&models.ResourceLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("resource_id = ?", res.ID).Delete(&models.ResourceSave{}).Error; err != nil {
			return err
		}
		return tx.Delete(res).Error
	})
	if err != nil {
		return err
	}
	s.uploader.Remove(ctx, res.FileKey)
	publishInvalidation(s.hub, "resources", res.ID)
	return nil
}

type DownloadResult struct {
	URL           string `json:"url"`
	FileName      string `json:"file_name"`
	PointsCharged int    `json:"points_charged"`
	Downloads     int    `json:"downloads"`
}

// Download returns the file location. Resources with a points cost are charged
// once per member; authors and admins download for free.
func (s *ResourceService) Download(ctx context.Context, actor Actor, id uint) (*DownloadResult, error) {
	res, err := s.getResource(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := CanModify(actor, res)
	if !owner {
		if err := requirePremium(actor, res.IsPremium); err != nil {
			return nil, err
		}
	}

	url := res.FileURL
	if url == "" {
		url = res.ExternalURL
	}
	result := &DownloadResult{URL: url, FileName: res.FileName}

	charge := res.PointsCost > 0 && !owner && (s.points == nil || s.points.pointsEnabled())
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if charge {
			key := awardKey(actor.ID, models.ActionResourceDownload, "resource", res.ID)
			charged, err := chargeOnce(tx, &models.PointsTransaction{
				ProfileID:     actor.ID,
				Action:        models.ActionResourceDownload,
				Points:        -res.PointsCost,
				ReferenceType: "resource",
				ReferenceID:   res.ID,
				AwardKey:      &key,
				Description:   "Downloaded " + res.Title,
			})
			if err != nil {
				return err
			}
			if charged {
				result.PointsCharged = res.PointsCost
			}
		}
		if err := tx.Model(&models.Resource{}).Where("id = ?", res.ID).
			UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.Resource{}).Select("downloads").Where("id = ?", res.ID).Row().Scan(&result.Downloads)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type ReactionResult struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

func (s *ResourceService) react(ctx context.Context, r reaction, actor Actor, id uint, want *bool) (*ReactionResult, error) {
	var result ReactionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Resource{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return response.NewNotFound("resource not found")
		}
		active, n, err := r.set(tx, id, actor.ID, want)
		result = ReactionResult{Active: active, Count: n}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SetLike toggles the caller's like, or forces it when want is set.
func (s *ResourceService) SetLike(ctx context.Context, actor Actor, id uint, want *bool) (*ReactionResult, error) {
	return s.react(ctx, resourceLikes, actor, id, want)
}

// SetSave toggles the caller's bookmark, or forces it when want is set.
func (s *ResourceService) SetSave(ctx context.Context, actor Actor, id uint, want *bool) (*ReactionResult, error) {
	return s.react(ctx, resourceSaves, actor, id, want)
}
