package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"teamtasks/backend/internal/cache"
	"teamtasks/backend/internal/models"

	"github.com/gofrs/uuid"
)

// CachedTaskService serves task reads from a MultiLevelCache and drops the
// affected entries after every write. Listings are cached per caller scope:
// admins share one entry, other users get their own.
type CachedTaskService struct {
	taskService TaskService
	cache       *cache.MultiLevelCache
	ttl         time.Duration
	log         *slog.Logger
}

func NewCachedTaskService(taskService TaskService, cacheInstance *cache.MultiLevelCache, ttl time.Duration, log *slog.Logger) *CachedTaskService {
	if log == nil {
		log = slog.Default()
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
		ttl:         ttl,
		log:         log,
	}
}

func scopeKey(actor models.Actor) string {
	if actor.IsAdmin {
		return "admin"
	}
	return actor.UserID.String()
}

func taskKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id.String())
}

func (s *CachedTaskService) invalidate(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		if err := s.cache.Delete(ctx, taskKey(id)); err != nil {
			s.log.WarnContext(ctx, "cache invalidation failed", "key", taskKey(id), "error", err)
		}
	}
	for _, pattern := range []string{"tasks:*", "dashboard:*"} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			s.log.WarnContext(ctx, "cache invalidation failed", "pattern", pattern, "error", err)
		}
	}
}

func (s *CachedTaskService) CreateTask(ctx context.Context, actor models.Actor, input CreateTaskInput) (*models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, actor, input)
	s.invalidate(ctx)
	return task, err
}

func (s *CachedTaskService) DuplicateTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error) {
	task, err := s.taskService.DuplicateTask(ctx, actor, id)
	s.invalidate(ctx)
	return task, err
}

func (s *CachedTaskService) PostTaskActivity(ctx context.Context, actor models.Actor, id uuid.UUID, input ActivityInput) error {
	err := s.taskService.PostTaskActivity(ctx, actor, id, input)
	s.invalidate(ctx, id)
	return err
}

func (s *CachedTaskService) CreateSubTask(ctx context.Context, actor models.Actor, id uuid.UUID, input SubTaskInput) error {
	err := s.taskService.CreateSubTask(ctx, actor, id, input)
	s.invalidate(ctx, id)
	return err
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, actor models.Actor, id uuid.UUID, input UpdateTaskInput) error {
	err := s.taskService.UpdateTask(ctx, actor, id, input)
	s.invalidate(ctx, id)
	return err
}

func (s *CachedTaskService) TrashTask(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	err := s.taskService.TrashTask(ctx, actor, id)
	s.invalidate(ctx, id)
	return err
}

func (s *CachedTaskService) DeleteRestoreTask(ctx context.Context, actor models.Actor, id uuid.UUID, actionType string) error {
	err := s.taskService.DeleteRestoreTask(ctx, actor, id, actionType)
	if errors.Is(err, ErrInvalidActionType) {
		return err
	}
	if actionType == ActionDeleteAll || actionType == ActionRestoreAll {
		if delErr := s.cache.DeletePattern(ctx, "task:*"); delErr != nil {
			s.log.WarnContext(ctx, "cache invalidation failed", "pattern", "task:*", "error", delErr)
		}
	}
	s.invalidate(ctx, id)
	return err
}

func (s *CachedTaskService) GetTasks(ctx context.Context, actor models.Actor, query TaskQuery) ([]*models.Task, error) {
	cacheKey := fmt.Sprintf("tasks:%s:%s:%t", scopeKey(actor), query.Stage, query.IsTrashed)

	var cached []*models.Task
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	tasks, err := s.taskService.GetTasks(ctx, actor, query)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cacheKey, tasks, s.ttl)
	return tasks, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error) {
	cacheKey := taskKey(id)

	var cached models.Task
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	task, err := s.taskService.GetTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cacheKey, task, s.ttl)
	return task, nil
}

func (s *CachedTaskService) DashboardStatistics(ctx context.Context, actor models.Actor) (*DashboardSummary, error) {
	cacheKey := fmt.Sprintf("dashboard:%s", scopeKey(actor))

	var cached DashboardSummary
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	summary, err := s.taskService.DashboardStatistics(ctx, actor)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cacheKey, summary, s.ttl)
	return summary, nil
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}

// StartHousekeeping purges expired in-memory entries until ctx is done.
func (s *CachedTaskService) StartHousekeeping(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.cache.Purge(); n > 0 {
					s.log.DebugContext(ctx, "purged expired cache entries", "count", n)
				}
			}
		}
	}()
}
