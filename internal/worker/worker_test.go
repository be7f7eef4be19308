package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchPayload struct {
	NotificationID string `json:"notification_id"`
}

func setupWorker(t *testing.T) (*Worker, *JobQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w := NewWorker(WorkerConfig{
		RedisClient:  client,
		Concurrency:  1,
		PollInterval: 100 * time.Millisecond,
		Queues:       []string{"notifications"},
		RetryBase:    time.Minute,
	})
	return w, NewJobQueue(client, 2), client
}

func TestWorker_ProcessesJob(t *testing.T) {
	ctx := context.Background()
	w, queue, _ := setupWorker(t)

	var got dispatchPayload
	w.RegisterHandler(JobTypeNotificationDispatch, func(ctx context.Context, job *Job) error {
		return job.DecodePayload(&got)
	})

	require.NoError(t, queue.Enqueue(ctx, "notifications", JobTypeNotificationDispatch, dispatchPayload{NotificationID: "n-1"}))

	size, err := queue.GetQueueSize(ctx, "notifications")
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	taken, err := w.processNextJob(ctx)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.Equal(t, "n-1", got.NotificationID)

	size, err = queue.GetQueueSize(ctx, "notifications")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestWorker_EmptyQueue(t *testing.T) {
	w, _, _ := setupWorker(t)

	taken, err := w.processNextJob(context.Background())
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestWorker_RetryThenDeadQueue(t *testing.T) {
	ctx := context.Background()
	w, queue, client := setupWorker(t)

	var calls int32
	w.RegisterHandler(JobTypeNotificationDispatch, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp unavailable")
	})

	require.NoError(t, queue.Enqueue(ctx, "notifications", JobTypeNotificationDispatch, dispatchPayload{NotificationID: "n-2"}))

	_, err := w.processNextJob(ctx)
	require.NoError(t, err)

	delayed, err := queue.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)

	promoted, err := w.promoteDueJobs(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, promoted, "retry should not be due yet")

	promoted, err = w.promoteDueJobs(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	// the retried job still carries a future ProcessAt, so run it directly
	raw, err := client.LPop(ctx, "notifications").Result()
	require.NoError(t, err)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, 1, job.Attempts)

	require.NoError(t, w.executeJob(ctx, &job))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	dead, err := client.LLen(ctx, DeadQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestWorker_UnknownJobTypeGoesToDeadQueue(t *testing.T) {
	ctx := context.Background()
	w, queue, client := setupWorker(t)

	require.NoError(t, queue.Enqueue(ctx, "notifications", JobType("unknown"), map[string]string{}))

	_, err := w.processNextJob(ctx)
	require.NoError(t, err)

	dead, err := client.LLen(ctx, DeadQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestWorker_FutureJobIsDelayed(t *testing.T) {
	ctx := context.Background()
	w, queue, _ := setupWorker(t)

	require.NoError(t, queue.EnqueueAt(ctx, "notifications", JobTypeNotificationDispatch, dispatchPayload{}, time.Now().Add(time.Hour)))

	_, err := w.processNextJob(ctx)
	require.NoError(t, err)

	delayed, err := queue.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)
}

func TestWorker_StartStop(t *testing.T) {
	w, queue, _ := setupWorker(t)

	done := make(chan struct{}, 1)
	w.RegisterHandler(JobTypeNotificationDispatch, func(ctx context.Context, job *Job) error {
		done <- struct{}{}
		return nil
	})

	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, queue.Enqueue(context.Background(), "notifications", JobTypeNotificationDispatch, dispatchPayload{}))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job was not processed")
	}
}
