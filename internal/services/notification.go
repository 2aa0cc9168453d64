package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationService struct {
	db        *gorm.DB
	hub       *SSEHub
	queue     TaskQueue
	configSvc *SystemConfigService
}

func NewNotificationService(db *gorm.DB, hub *SSEHub, queue TaskQueue, configSvc *SystemConfigService) *NotificationService {
	return &NotificationService{db: db, hub: hub, queue: queue, configSvc: configSvc}
}

// Create stores a notification, pushes it to the member's live stream and,
// when the task names an email category, queues an email.
func (s *NotificationService) Create(ctx context.Context, task *NotificationTask) (*models.Notification, error) {
	n := &models.Notification{
		ProfileID: task.ProfileID,
		Type:      task.Type,
		Title:     truncate(task.Title, 200),
		Body:      task.Body,
		Link:      task.Link,
	}
	if len(task.Data) > 0 {
		data, err := json.Marshal(task.Data)
		if err != nil {
			return nil, err
		}
		n.Data = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}

	publish(s.hub, Event{Topic: TopicNotification, ProfileID: n.ProfileID, Data: n})

	if task.EmailCategory != "" {
		s.queueEmail(ctx, n, task.EmailCategory)
	}
	return n, nil
}

func (s *NotificationService) queueEmail(ctx context.Context, n *models.Notification, category string) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Select("id", "email", "is_active").First(&profile, n.ProfileID).Error; err != nil || !profile.IsActive {
		return
	}

	siteName, siteURL := "AutoHub", ""
	if s.configSvc != nil {
		siteName = s.configSvc.GetWithDefault("site_name", siteName)
		siteURL = s.configSvc.GetWithDefault("site_url", siteURL)
	}
	subject, body := notificationEmail(siteName, siteURL, n.Title, n.Body, n.Link)
	enqueue(s.queue, TaskTypeEmail, EmailTask{
		To:        profile.Email,
		Subject:   subject,
		HTML:      body,
		Category:  category,
		ProfileID: profile.ID,
	})
}

type ListNotificationsRequest struct {
	Pagination
	Unread bool `form:"unread"`
}

func (s *NotificationService) List(ctx context.Context, profileID uint, req *ListNotificationsRequest) (*PageResult[models.Notification], error) {
	req.normalize(20)

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("profile_id = ?", profileID)
	if req.Unread {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Notification
	if err := query.Order("created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, items), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, profileID, id uint) error {
	var n models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND profile_id = ?", id, profileID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("notification not found")
		}
		return err
	}
	if n.ReadAt != nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&n).Update("read_at", time.Now()).Error
}

// MarkAllRead returns how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, profileID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("profile_id = ? AND read_at IS NULL", profileID).
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}

func (s *NotificationService) UnreadCount(ctx context.Context, profileID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("profile_id = ? AND read_at IS NULL", profileID).
		Count(&count).Error
	return count, err
}
