package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeNotificationDispatch JobType = "notification_dispatch"
)

const (
	DelayedQueue = "jobs:delayed"
	DeadQueue    = "jobs:dead"
)

type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"max_tries"`
	CreatedAt time.Time       `json:"created_at"`
	ProcessAt time.Time       `json:"process_at"`
}

func (j *Job) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload of job %s: %w", j.ID, err)
	}
	return nil
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	concurrency  int
	pollInterval time.Duration
	retryBase    time.Duration
	log          *slog.Logger
	mu           sync.RWMutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
	RetryBase    time.Duration
	Logger       *slog.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RetryBase <= 0 {
		config.RetryBase = time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		concurrency:  config.Concurrency,
		pollInterval: config.PollInterval,
		retryBase:    config.RetryBase,
		log:          config.Logger.With("component", "worker"),
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches the consumer goroutines and the delayed-job promoter. They run
// until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.log.Info("starting worker", "concurrency", w.concurrency, "queues", w.queues)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}

	w.wg.Add(1)
	go w.promoteLoop(ctx)
}

func (w *Worker) Stop() {
	w.log.Info("stopping worker")
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, err := w.processNextJob(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("error processing job", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) promoteLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := w.promoteDueJobs(ctx, now); err != nil && ctx.Err() == nil {
				w.log.Error("error promoting delayed jobs", "error", err)
			}
		}
	}
}

// processNextJob waits up to one poll interval for a job and runs it. It
// reports whether a job was taken off a queue.
func (w *Worker) processNextJob(ctx context.Context) (bool, error) {
	result, err := w.client.BLPop(ctx, w.pollInterval, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return true, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}

	if time.Now().Before(job.ProcessAt) {
		return true, w.schedule(ctx, &job)
	}

	return true, w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	log := w.log.With("job_id", job.ID, "job_type", job.Type)
	log.Debug("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := handler(jobCtx, job)
	if err != nil {
		job.Attempts++
		if job.Attempts < job.MaxTries {
			log.Warn("job failed, retrying", "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
			return w.retryJob(ctx, job)
		}

		log.Error("job failed permanently", "attempts", job.Attempts, "error", err)
		return w.moveToDeadQueue(ctx, job, err)
	}

	log.Debug("job completed")
	return nil
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = time.Now().Add(delay)
	return w.schedule(ctx, job)
}

func (w *Worker) schedule(ctx context.Context, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.ZAdd(ctx, DelayedQueue, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: jobData,
	}).Err()
}

// promoteDueJobs moves delayed jobs whose time has come back onto their queue.
func (w *Worker) promoteDueJobs(ctx context.Context, now time.Time) (int, error) {
	due, err := w.client.ZRangeByScore(ctx, DelayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	promoted := 0
	for _, data := range due {
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			w.client.ZRem(ctx, DelayedQueue, data)
			continue
		}

		removed, err := w.client.ZRem(ctx, DelayedQueue, data).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to remove delayed job: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := w.client.RPush(ctx, job.Queue, data).Err(); err != nil {
			return promoted, fmt.Errorf("failed to requeue job: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, DeadQueue, deadJobData).Err()
}

type JobQueue struct {
	client   *redis.Client
	maxTries int
}

func NewJobQueue(client *redis.Client, maxTries int) *JobQueue {
	if maxTries <= 0 {
		maxTries = 3
	}
	return &JobQueue{client: client, maxTries: maxTries}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload interface{}) error {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload interface{}, processAt time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   raw,
		Attempts:  0,
		MaxTries:  q.maxTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}

func (q *JobQueue) GetDelayedSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, DelayedQueue).Result()
}
