package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/storage"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

type RecordingService struct {
	db       *gorm.DB
	uploader *FileUploader
}

func NewRecordingService(db *gorm.DB, uploader *FileUploader) *RecordingService {
	return &RecordingService{db: db, uploader: uploader}
}

type RecordingListRequest struct {
	Pagination
	Tag    string `form:"tag"`
	Search string `form:"search"`
}

// List returns recordings, newest first. Video links of premium recordings are
// withheld from members without premium access.
func (s *RecordingService) List(ctx context.Context, actor Actor, req *RecordingListRequest) (*PageResult[models.Recording], error) {
	req.normalize(20)
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Recording{})
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if req.Tag != "" {
		query = query.Where("id IN (?)", taggedIDs(db, "recording_tags", "recording_id", req.Tag))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Recording
	if err := query.Preload("Tags").
		Order("recorded_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].IsPremium && !actor.HasPremium() {
			items[i].VideoURL = ""
		}
	}
	return newPageResult(req.Pagination, total, items), nil
}

// Get opens a recording and counts the view.
func (s *RecordingService) Get(ctx context.Context, actor Actor, id uint) (*models.Recording, error) {
	var rec models.Recording
	if err := s.db.WithContext(ctx).Preload("Tags").First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("recording not found")
		}
		return nil, err
	}
	if err := requirePremium(actor, rec.IsPremium); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Recording{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, err
	}
	rec.Views++
	return &rec, nil
}

type RecordingRequest struct {
	Title           string     `json:"title" form:"title" binding:"required,max=200"`
	Description     string     `json:"description" form:"description"`
	VideoURL        string     `json:"video_url" form:"video_url" binding:"max=500"`
	ThumbnailURL    string     `json:"thumbnail_url" form:"thumbnail_url" binding:"max=500"`
	DurationSeconds int        `json:"duration_seconds" form:"duration_seconds" binding:"min=0"`
	RecordedAt      *time.Time `json:"recorded_at" form:"recorded_at" time_format:"2006-01-02T15:04:05Z07:00"`
	IsPremium       bool       `json:"is_premium" form:"is_premium"`
	TagIDs          []uint     `json:"tag_ids" form:"tag_ids"`
}

// VideoUpload is an optional file sent with a create request.
type VideoUpload struct {
	FileName    string
	Size        int64
	ContentType string
	Body        io.Reader
}

func (s *RecordingService) Create(ctx context.Context, actor Actor, req *RecordingRequest, video *VideoUpload) (*models.Recording, error) {
	rec := &models.Recording{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		VideoURL:        req.VideoURL,
		ThumbnailURL:    req.ThumbnailURL,
		DurationSeconds: req.DurationSeconds,
		RecordedAt:      time.Now(),
		IsPremium:       req.IsPremium,
		CreatedBy:       actor.ID,
	}
	if rec.Title == "" {
		return nil, response.NewBadRequest("title is required")
	}
	if req.RecordedAt != nil {
		rec.RecordedAt = *req.RecordedAt
	}

	var uploaded *UploadedFile
	if video != nil {
		file, err := s.uploader.Upload(ctx, storage.FolderRecordings, video.FileName, video.Size, video.ContentType, video.Body)
		if err != nil {
			return nil, err
		}
		uploaded = file
		rec.VideoURL = file.URL
	}
	if rec.VideoURL == "" {
		return nil, response.NewBadRequest("a video file or video_url is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, req.TagIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit("Tags").Create(rec).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			return tx.Model(rec).Association("Tags").Append(tags)
		}
		return nil
	})
	if err != nil {
		if uploaded != nil {
			s.uploader.Remove(ctx, uploaded.Key)
		}
		return nil, err
	}
	return s.reload(ctx, rec.ID)
}

func (s *RecordingService) reload(ctx context.Context, id uint) (*models.Recording, error) {
	var rec models.Recording
	if err := s.db.WithContext(ctx).Preload("Tags").First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RecordingService) Update(ctx context.Context, id uint, req *RecordingRequest) (*models.Recording, error) {
	var rec models.Recording
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("recording not found")
		}
		return nil, err
	}
	updates := map[string]interface{}{
		"title":            strings.TrimSpace(req.Title),
		"description":      req.Description,
		"thumbnail_url":    req.ThumbnailURL,
		"duration_seconds": req.DurationSeconds,
		"is_premium":       req.IsPremium,
	}
	if req.VideoURL != "" {
		updates["video_url"] = req.VideoURL
	}
	if req.RecordedAt != nil {
		updates["recorded_at"] = *req.RecordedAt
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}
		if req.TagIDs != nil {
			tags, err := loadTags(tx, req.TagIDs)
			if err != nil {
				return err
			}
			return tx.Model(&rec).Association("Tags").Replace(tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *RecordingService) Delete(ctx context.Context, id uint) error {
	var rec models.Recording
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("recording not found")
		}
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&rec).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&rec).Error
	})
}
