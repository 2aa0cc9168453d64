package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/storage"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/gorm"
)

type CreateCourseRequest struct {
	Title        string `json:"title" binding:"required,max=200"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url" binding:"max=500"`
	Category     string `json:"category" binding:"max=80"`
	Level        string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	InstructorID *uint  `json:"instructor_id"`
	IsPublished  bool   `json:"is_published"`
	IsPremium    bool   `json:"is_premium"`
	Sequential   bool   `json:"sequential"`
}

type UpdateCourseRequest struct {
	Title        *string `json:"title" binding:"omitempty,max=200"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnail_url" binding:"omitempty,max=500"`
	Category     *string `json:"category" binding:"omitempty,max=80"`
	Level        *string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	InstructorID *uint   `json:"instructor_id"`
	IsPublished  *bool   `json:"is_published"`
	IsPremium    *bool   `json:"is_premium"`
	Sequential   *bool   `json:"sequential"`
}

// uniqueCourseSlug appends -2, -3... until the slug is free, soft-deleted courses included.
func (s *CourseService) uniqueCourseSlug(tx *gorm.DB, title string, exceptID uint) (string, error) {
	base := utils.Slugify(title)
	if base == "" {
		return "", response.NewBadRequest("title must contain letters or digits")
	}
	slug := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Unscoped().Model(&models.Course{}).Where("slug = ? AND id <> ?", slug, exceptID).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *CourseService) CreateCourse(ctx context.Context, req *CreateCourseRequest) (*models.Course, error) {
	slug, err := s.uniqueCourseSlug(s.db.WithContext(ctx), req.Title, 0)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		Title:        req.Title,
		Slug:         slug,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		Category:     req.Category,
		Level:        req.Level,
		InstructorID: req.InstructorID,
		IsPublished:  req.IsPublished,
		IsPremium:    req.IsPremium,
		Sequential:   req.Sequential,
	}
	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) UpdateCourse(ctx context.Context, id uint, req *UpdateCourseRequest) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("course not found")
		}
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil && *req.Title != course.Title {
		slug, err := s.uniqueCourseSlug(s.db.WithContext(ctx), *req.Title, id)
		if err != nil {
			return nil, err
		}
		updates["title"] = *req.Title
		updates["slug"] = slug
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ThumbnailURL != nil {
		updates["thumbnail_url"] = *req.ThumbnailURL
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Level != nil {
		updates["level"] = *req.Level
	}
	if req.InstructorID != nil {
		updates["instructor_id"] = *req.InstructorID
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}
	if req.IsPremium != nil {
		updates["is_premium"] = *req.IsPremium
	}
	if req.Sequential != nil {
		updates["sequential"] = *req.Sequential
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&course).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &course, s.db.WithContext(ctx).First(&course, id).Error
}

func (s *CourseService) DeleteCourse(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Course{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewNotFound("course not found")
	}
	return nil
}

// UploadThumbnail stores a cover image and sets it on the course.
func (s *CourseService) UploadThumbnail(ctx context.Context, id uint, fileName string, size int64, contentType string, r io.Reader) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("course not found")
		}
		return nil, err
	}

	file, err := s.uploader.Upload(ctx, storage.FolderThumbnails, fileName, size, contentType, r)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&course).Update("thumbnail_url", file.URL).Error; err != nil {
		s.uploader.Remove(ctx, file.Key)
		return nil, err
	}
	return &course, nil
}

type SectionRequest struct {
	Title    string `json:"title" binding:"required,max=200"`
	Position *int   `json:"position"`
}

func (s *CourseService) courseExists(ctx context.Context, courseID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", courseID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return response.NewNotFound("course not found")
	}
	return nil
}

// nextPosition returns max(position)+1 over the matching rows of model's table.
func nextPosition(db *gorm.DB, model interface{}, where string, args ...interface{}) int {
	var max sql.NullInt64
	if err := db.Model(model).Where(where, args...).Select("MAX(position)").Row().Scan(&max); err != nil || !max.Valid {
		return 1
	}
	return int(max.Int64) + 1
}

func (s *CourseService) CreateSection(ctx context.Context, courseID uint, req *SectionRequest) (*models.CourseSection, error) {
	if err := s.courseExists(ctx, courseID); err != nil {
		return nil, err
	}
	section := &models.CourseSection{CourseID: courseID, Title: req.Title}
	if req.Position != nil {
		section.Position = *req.Position
	} else {
		section.Position = nextPosition(s.db.WithContext(ctx), &models.CourseSection{}, "course_id = ?", courseID)
	}
	if err := s.db.WithContext(ctx).Create(section).Error; err != nil {
		return nil, err
	}
	return section, nil
}

func (s *CourseService) UpdateSection(ctx context.Context, courseID, sectionID uint, req *SectionRequest) (*models.CourseSection, error) {
	var section models.CourseSection
	if err := s.db.WithContext(ctx).Where("id = ? AND course_id = ?", sectionID, courseID).First(&section).Error; err != nil {
		return nil, response.NewNotFound("section not found")
	}
	updates := map[string]interface{}{"title": req.Title}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if err := s.db.WithContext(ctx).Model(&section).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

// DeleteSection removes the section with its lessons and their completions.
func (s *CourseService) DeleteSection(ctx context.Context, courseID, sectionID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND course_id = ?", sectionID, courseID).Delete(&models.CourseSection{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewNotFound("section not found")
		}
		lessonIDs := tx.Model(&models.CourseLesson{}).Select("id").Where("section_id = ?", sectionID)
		if err := tx.Where("lesson_id IN (?)", lessonIDs).Delete(&models.LessonCompletion{}).Error; err != nil {
			return err
		}
		return tx.Where("section_id = ?", sectionID).Delete(&models.CourseLesson{}).Error
	})
}

type LessonRequest struct {
	SectionID       uint   `json:"section_id" binding:"required"`
	Title           string `json:"title" binding:"required,max=200"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" binding:"max=500"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0"`
	Position        *int   `json:"position"`
	IsFreePreview   bool   `json:"is_free_preview"`
}

func (s *CourseService) sectionInCourse(ctx context.Context, courseID, sectionID uint) error {
	var count int64
	s.db.WithContext(ctx).Model(&models.CourseSection{}).Where("id = ? AND course_id = ?", sectionID, courseID).Count(&count)
	if count == 0 {
		return response.NewBadRequest("section does not belong to this course")
	}
	return nil
}

func (s *CourseService) CreateLesson(ctx context.Context, courseID uint, req *LessonRequest) (*models.CourseLesson, error) {
	if err := s.courseExists(ctx, courseID); err != nil {
		return nil, err
	}
	if err := s.sectionInCourse(ctx, courseID, req.SectionID); err != nil {
		return nil, err
	}

	lesson := &models.CourseLesson{
		CourseID:        courseID,
		SectionID:       req.SectionID,
		Title:           req.Title,
		Content:         req.Content,
		VideoURL:        req.VideoURL,
		DurationMinutes: req.DurationMinutes,
		IsFreePreview:   req.IsFreePreview,
	}
	if req.Position != nil {
		lesson.Position = *req.Position
	} else {
		lesson.Position = nextPosition(s.db.WithContext(ctx), &models.CourseLesson{}, "section_id = ?", req.SectionID)
	}
	if err := s.db.WithContext(ctx).Create(lesson).Error; err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *CourseService) UpdateLesson(ctx context.Context, courseID, lessonID uint, req *LessonRequest) (*models.CourseLesson, error) {
	var lesson models.CourseLesson
	if err := s.db.WithContext(ctx).Where("id = ? AND course_id = ?", lessonID, courseID).First(&lesson).Error; err != nil {
		return nil, response.NewNotFound("lesson not found")
	}
	if err := s.sectionInCourse(ctx, courseID, req.SectionID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"section_id":       req.SectionID,
		"title":            req.Title,
		"content":          req.Content,
		"video_url":        req.VideoURL,
		"duration_minutes": req.DurationMinutes,
		"is_free_preview":  req.IsFreePreview,
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if err := s.db.WithContext(ctx).Model(&lesson).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (s *CourseService) DeleteLesson(ctx context.Context, courseID, lessonID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND course_id = ?", lessonID, courseID).Delete(&models.CourseLesson{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewNotFound("lesson not found")
		}
		return tx.Where("lesson_id = ?", lessonID).Delete(&models.LessonCompletion{}).Error
	})
}

type ReorderRequest struct {
	SectionIDs []uint `json:"section_ids"`
	LessonIDs  []uint `json:"lesson_ids"`
}

// Reorder assigns positions 1..n in the given order. Ids outside the course are rejected.
func (s *CourseService) Reorder(ctx context.Context, courseID uint, req *ReorderRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range req.SectionIDs {
			res := tx.Model(&models.CourseSection{}).Where("id = ? AND course_id = ?", id, courseID).Update("position", i+1)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return response.NewBadRequest(fmt.Sprintf("section %d does not belong to this course", id))
			}
		}
		for i, id := range req.LessonIDs {
			res := tx.Model(&models.CourseLesson{}).Where("id = ? AND course_id = ?", id, courseID).Update("position", i+1)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return response.NewBadRequest(fmt.Sprintf("lesson %d does not belong to this course", id))
			}
		}
		return nil
	})
}
