package services

import (
	"testing"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
)

func TestScheduler_RunsOncePerWindow(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionService(db, nil)
	now := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	subs.now = func() time.Time { return now }

	member := createProfile(t, db, models.RolePremium)
	db.Create(&models.Subscription{ProfileID: member.ID, Role: models.RolePremium, Status: models.SubscriptionActive,
		CurrentPeriodStart: now.AddDate(0, -1, -1), CurrentPeriodEnd: now.Add(-time.Hour)})

	first := NewScheduler(db, subs, NewSystemLogService(db, nil))
	first.now = subs.now
	second := NewScheduler(db, subs, NewSystemLogService(db, nil))
	second.now = subs.now

	if !first.tryLock("subscription_expiry", "2026-04-01T10", time.Hour) {
		t.Fatal("first instance should take the lock")
	}
	if second.tryLock("subscription_expiry", "2026-04-01T10", time.Hour) {
		t.Fatal("second instance must not take the same window")
	}
	if !second.tryLock("subscription_expiry", "2026-04-01T11", time.Hour) {
		t.Fatal("a new window should be free")
	}

	// The 10:00 window is taken, so this run is skipped.
	second.ExpireSubscriptions()
	var status string
	db.Model(&models.Subscription{}).Select("status").Where("profile_id = ?", member.ID).Scan(&status)
	if status != models.SubscriptionActive {
		t.Fatalf("status = %q, run should have been skipped", status)
	}

	now = now.Add(2 * time.Hour)
	first.ExpireSubscriptions()
	db.Model(&models.Subscription{}).Select("status").Where("profile_id = ?", member.ID).Scan(&status)
	if status != models.SubscriptionExpired {
		t.Errorf("status = %q, want expired", status)
	}
}

func TestScheduler_CleanupPrunesLocks(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduler(db, nil, NewSystemLogService(db, NewSystemConfigService(db)))
	stale := &models.SchedulerLock{LockName: "subscription_expiry", LockKey: "2020-01-01T00", ExpiresAt: time.Now().AddDate(-1, 0, 0)}
	db.Create(stale)

	s.CleanupLogs()

	var locks []models.SchedulerLock
	db.Find(&locks)
	if len(locks) != 1 || locks[0].LockName != "log_cleanup" {
		t.Errorf("locks = %+v, want only today's cleanup lock", locks)
	}
}
