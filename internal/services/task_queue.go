package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/hibiken/asynq"
)

// Background task types. Every one of them is a side effect of a request
// that has already succeeded.
const (
	TaskTypeEmail        = "email:send"
	TaskTypePointsAward  = "points:award"
	TaskTypeNotification = "notification:create"
	TaskTypeActivity     = "activity:record"
)

// Task is a typed JSON payload.
type Task struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewTask(taskType string, payload interface{}) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Task{Type: taskType, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (t *Task) Decode(v interface{}) error {
	return json.Unmarshal(t.Payload, v)
}

type EmailTask struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Text      string `json:"text,omitempty"`
	Category  string `json:"category,omitempty"` // email preference category, empty for transactional mail
	ProfileID uint   `json:"profile_id,omitempty"`
}

type PointsAwardTask struct {
	ProfileID     uint   `json:"profile_id"`
	Action        string `json:"action"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   uint   `json:"reference_id"`
}

type NotificationTask struct {
	ProfileID     uint                   `json:"profile_id"`
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	Body          string                 `json:"body"`
	Link          string                 `json:"link"`
	Data          map[string]interface{} `json:"data,omitempty"`
	EmailCategory string                 `json:"email_category,omitempty"` // also email the member when set
}

type ActivityTask struct {
	ActorID    uint                   `json:"actor_id"`
	Verb       string                 `json:"verb"`
	ObjectType string                 `json:"object_type"`
	ObjectID   uint                   `json:"object_id"`
	Summary    string                 `json:"summary"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// TaskProcessor handles one task.
type TaskProcessor func(ctx context.Context, task *Task) error

// TaskQueue defines the interface for background task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(ctx context.Context, task *Task) error
	// IsAsync returns true if queue processes tasks out of process
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when Redis is enabled and reachable,
// and the in-process queue otherwise.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue()
	}
	logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
	return queue
}

// enqueue submits a side-effect task. Failures are logged and never reach the caller.
func enqueue(q TaskQueue, taskType string, payload interface{}) {
	if q == nil {
		return
	}
	task, err := NewTask(taskType, payload)
	if err != nil {
		logger.Warn().Err(err).Str("task", taskType).Msg("failed to encode task")
		return
	}
	if err := q.Enqueue(context.Background(), task); err != nil {
		logger.Warn().Err(err).Str("task", taskType).Msg("failed to enqueue task")
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Test connection by pinging Redis
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a task to the async queue
func (q *AsyncQueue) Enqueue(ctx context.Context, task *Task) error {
	t := asynq.NewTask(task.Type, task.Payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("id", info.ID).Str("type", task.Type).Msg("[AsyncQueue] Task enqueued")
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in process, one goroutine per task (no Redis)
type SyncQueue struct {
	processor TaskProcessor
	wg        sync.WaitGroup
}

// NewSyncQueue creates a new in-process queue
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function to process tasks
func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

// Enqueue processes the task in a new goroutine so the request is not blocked
func (q *SyncQueue) Enqueue(ctx context.Context, task *Task) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task %s dropped", task.Type)
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Warn().Err(err).Str("type", task.Type).Msg("[SyncQueue] Task processing failed")
		}
	}()

	return nil
}

// Wait blocks until every enqueued task has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

// IsAsync returns false for sync queue
func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
