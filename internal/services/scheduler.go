package services

import (
	"context"
	"os"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scheduler runs the periodic maintenance jobs. Each run takes a row in
// scheduler_locks first, so several instances can share one database.
type Scheduler struct {
	db            *gorm.DB
	subscriptions *SubscriptionService
	logs          *SystemLogService
	cron          *cron.Cron
	instanceID    string
	now           func() time.Time
}

func NewScheduler(db *gorm.DB, subscriptions *SubscriptionService, logs *SystemLogService) *Scheduler {
	host, _ := os.Hostname()
	return &Scheduler{
		db:            db,
		subscriptions: subscriptions,
		logs:          logs,
		cron:          cron.New(),
		instanceID:    host + "/" + uuid.NewString()[:8],
		now:           time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.ExpireSubscriptions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@daily", s.CleanupLogs); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info().Str("instance", s.instanceID).Msg("[Scheduler] started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info().Msg("[Scheduler] stopped")
}

// tryLock claims the run identified by name and key. It returns false when
// another instance already claimed it.
func (s *Scheduler) tryLock(name, key string, ttl time.Duration) bool {
	now := s.now()
	lock := &models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instanceID,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(lock)
	if res.Error != nil {
		logger.Warn().Err(res.Error).Str("lock", name).Msg("[Scheduler] failed to take lock")
		return false
	}
	return res.RowsAffected > 0
}

func (s *Scheduler) ExpireSubscriptions() {
	if !s.tryLock("subscription_expiry", s.now().UTC().Format("2006-01-02T15"), 2*time.Hour) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.subscriptions.ExpireDue(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("[Scheduler] subscription expiry failed")
		LogError("Scheduler", "subscription_expiry", err.Error(), nil, "", "", nil)
		return
	}
	if n > 0 {
		logger.Info().Int("expired", n).Msg("[Scheduler] expired subscriptions")
	}
}

func (s *Scheduler) CleanupLogs() {
	if !s.tryLock("log_cleanup", s.now().UTC().Format("2006-01-02"), 48*time.Hour) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.logs.RunCleanup(ctx)
	if err := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.SchedulerLock{}).Error; err != nil {
		logger.Warn().Err(err).Msg("[Scheduler] failed to prune expired locks")
	}
}
