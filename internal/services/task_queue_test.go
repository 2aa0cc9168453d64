package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ZeremItay/autohub/internal/config"
)

func TestTaskType_Constants(t *testing.T) {
	tests := map[string]string{
		TaskTypeEmail:        "email:send",
		TaskTypePointsAward:  "points:award",
		TaskTypeNotification: "notification:create",
		TaskTypeActivity:     "activity:record",
	}
	for got, expected := range tests {
		if got != expected {
			t.Errorf("task type = %q, expected %q", got, expected)
		}
	}
}

func TestNewTask_Decode(t *testing.T) {
	task, err := NewTask(TaskTypePointsAward, PointsAwardTask{
		ProfileID:     7,
		Action:        "forum_post",
		ReferenceType: "forum_post",
		ReferenceID:   42,
	})
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Type != TaskTypePointsAward {
		t.Errorf("Type = %q, expected %q", task.Type, TaskTypePointsAward)
	}

	var payload PointsAwardTask
	if err := task.Decode(&payload); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if payload.ProfileID != 7 || payload.ReferenceID != 42 || payload.Action != "forum_post" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestNewTask_Unencodable(t *testing.T) {
	if _, err := NewTask(TaskTypeEmail, make(chan int)); err == nil {
		t.Error("NewTask should fail for a payload that cannot be encoded")
	}
}

func TestSyncQueue_New(t *testing.T) {
	queue := NewSyncQueue()
	if queue == nil {
		t.Error("NewSyncQueue should not return nil")
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
}

func TestSyncQueue_Close(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Close(); err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	task, _ := NewTask(TaskTypeActivity, ActivityTask{ActorID: 1, Verb: "posted"})

	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_ProcessesTasks(t *testing.T) {
	queue := NewSyncQueue()

	var mu sync.Mutex
	var seen []string
	queue.SetProcessor(func(ctx context.Context, task *Task) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, task.Type)
		return nil
	})

	for _, taskType := range []string{TaskTypeEmail, TaskTypeNotification} {
		task, _ := NewTask(taskType, map[string]string{})
		if err := queue.Enqueue(context.Background(), task); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	queue.Wait()

	if len(seen) != 2 {
		t.Errorf("expected 2 processed tasks, got %d", len(seen))
	}
}

func TestSyncQueue_ProcessorErrorIsSwallowed(t *testing.T) {
	queue := NewSyncQueue()
	queue.SetProcessor(func(ctx context.Context, task *Task) error {
		return errors.New("smtp down")
	})

	task, _ := NewTask(TaskTypeEmail, EmailTask{To: "a@example.com"})
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Errorf("processor failures must not reach the caller, got %v", err)
	}
	queue.Wait()
}

func TestEnqueue_NilQueue(t *testing.T) {
	// Must not panic.
	enqueue(nil, TaskTypeEmail, EmailTask{To: "a@example.com"})
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}

func TestNewTaskQueue(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, ok := NewTaskQueue(cfg).(*SyncQueue); !ok {
		t.Error("Redis disabled should give a SyncQueue")
	}

	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	queue := NewTaskQueue(cfg)
	defer queue.Close()
	if queue.IsAsync() {
		t.Error("unreachable Redis should fall back to the sync queue")
	}
}
