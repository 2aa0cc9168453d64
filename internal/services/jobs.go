package services

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Jobs runs background tasks against the services that own them.
type Jobs struct {
	mail          *MailService
	points        *GamificationService
	notifications *NotificationService
	activities    *ActivityService
}

func NewJobs(mail *MailService, points *GamificationService, notifications *NotificationService, activities *ActivityService) *Jobs {
	return &Jobs{mail: mail, points: points, notifications: notifications, activities: activities}
}

// Process is the TaskProcessor shared by the sync queue and the asynq worker.
// Undecodable or unknown tasks are not retried.
func (j *Jobs) Process(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskTypeEmail:
		var p EmailTask
		if err := task.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", task.Type, err, asynq.SkipRetry)
		}
		return j.mail.Deliver(ctx, &p)

	case TaskTypePointsAward:
		var p PointsAwardTask
		if err := task.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", task.Type, err, asynq.SkipRetry)
		}
		_, err := j.points.Award(ctx, p.ProfileID, p.Action, p.ReferenceType, p.ReferenceID)
		return err

	case TaskTypeNotification:
		var p NotificationTask
		if err := task.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", task.Type, err, asynq.SkipRetry)
		}
		_, err := j.notifications.Create(ctx, &p)
		return err

	case TaskTypeActivity:
		var p ActivityTask
		if err := task.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", task.Type, err, asynq.SkipRetry)
		}
		_, err := j.activities.Record(ctx, &p)
		return err
	}
	return fmt.Errorf("unknown task type %q: %w", task.Type, asynq.SkipRetry)
}
