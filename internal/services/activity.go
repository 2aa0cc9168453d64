package services

import (
	"context"
	"encoding/json"

	"github.com/ZeremItay/autohub/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityService owns the community live log.
type ActivityService struct {
	db  *gorm.DB
	hub *SSEHub
}

func NewActivityService(db *gorm.DB, hub *SSEHub) *ActivityService {
	return &ActivityService{db: db, hub: hub}
}

// Record appends an entry and broadcasts it to live log subscribers.
func (s *ActivityService) Record(ctx context.Context, task *ActivityTask) (*models.Activity, error) {
	a := &models.Activity{
		ActorID:    task.ActorID,
		Verb:       task.Verb,
		ObjectType: task.ObjectType,
		ObjectID:   task.ObjectID,
		Summary:    truncate(task.Summary, 500),
	}
	if len(task.Metadata) > 0 {
		data, err := json.Marshal(task.Metadata)
		if err != nil {
			return nil, err
		}
		a.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}

	var actor models.Profile
	if err := s.db.WithContext(ctx).Select(publicProfileColumns).First(&actor, a.ActorID).Error; err == nil {
		a.Actor = &actor
	}
	publish(s.hub, Event{Topic: TopicActivity, Data: a})
	return a, nil
}

type ListActivitiesRequest struct {
	Pagination
	Verb    string `form:"verb"`
	ActorID uint   `form:"actor_id"`
}

func (s *ActivityService) List(ctx context.Context, req *ListActivitiesRequest) (*PageResult[models.Activity], error) {
	req.normalize(30)

	query := s.db.WithContext(ctx).Model(&models.Activity{})
	if req.Verb != "" {
		query = query.Where("verb = ?", req.Verb)
	}
	if req.ActorID != 0 {
		query = query.Where("actor_id = ?", req.ActorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Activity
	if err := query.Preload("Actor", selectPublicProfile).
		Order("created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return newPageResult(req.Pagination, total, items), nil
}
