package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := models.Seed(db); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	return db
}

var profileSeq int

func createProfile(t *testing.T, db *gorm.DB, role string) *models.Profile {
	t.Helper()
	profileSeq++
	p := &models.Profile{
		Email:    fmt.Sprintf("member%d@example.com", profileSeq),
		FullName: fmt.Sprintf("Member %d", profileSeq),
		Role:     role,
		AuthType: "local",
		IsActive: true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return p
}

func actorOf(p *models.Profile) Actor {
	return Actor{ID: p.ID, Role: p.Role}
}

// recordingQueue captures enqueued tasks instead of running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*Task
}

func (q *recordingQueue) Enqueue(ctx context.Context, task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) ofType(taskType string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Task
	for _, task := range q.tasks {
		if task.Type == taskType {
			out = append(out, task)
		}
	}
	return out
}

func (q *recordingQueue) awards(t *testing.T) []PointsAwardTask {
	t.Helper()
	var out []PointsAwardTask
	for _, task := range q.ofType(TaskTypePointsAward) {
		var p PointsAwardTask
		if err := task.Decode(&p); err != nil {
			t.Fatalf("decode award: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func (q *recordingQueue) notifications(t *testing.T) []NotificationTask {
	t.Helper()
	var out []NotificationTask
	for _, task := range q.ofType(TaskTypeNotification) {
		var n NotificationTask
		if err := task.Decode(&n); err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		out = append(out, n)
	}
	return out
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	if got := httpStatusOf(err); got != status {
		t.Fatalf("expected status %d, got %d (%v)", status, got, err)
	}
}

func httpStatusOf(err error) int {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 404
	}
	return 500
}
