package repositories

import (
	"context"
	"errors"
	"fmt"

	"teamtasks/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	PathTeam         = "team"
	PathActivitiesBy = "activities.by"
)

// PopulatePath names a user reference path of a task and the user fields to
// resolve into it.
type PopulatePath struct {
	Path   string
	Fields []string
}

type TaskFilter struct {
	Stage     string
	IsTrashed *bool
	MemberID  *uuid.UUID
	Limit     int
}

type TaskRepository struct {
	db    *gorm.DB
	users *UserRepository
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db, users: NewUserRepository(db)}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.Must(uuid.NewV4())
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &task, nil
}

// Save writes every column of the task back to the store.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Find lists tasks matching the filter, newest first.
func (r *TaskRepository) Find(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{})

	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
	}
	if filter.IsTrashed != nil {
		query = query.Where("is_trashed = ?", *filter.IsTrashed)
	}
	if filter.MemberID != nil {
		query = query.Where("team LIKE ?", "%"+filter.MemberID.String()+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	tasks := []*models.Task{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) SetTrashed(ctx context.Context, id uuid.UUID, trashed bool) error {
	result := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update("is_trashed", trashed)
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task permanently. Deleting an unknown id is not an error.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// DeleteTrashed removes every trashed task in a single statement.
func (r *TaskRepository) DeleteTrashed(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("is_trashed = ?", true).Delete(&models.Task{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete trashed tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RestoreTrashed clears the trashed flag on every trashed task in a single statement.
func (r *TaskRepository) RestoreTrashed(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).Where("is_trashed = ?", true).Update("is_trashed", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to restore trashed tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Populate resolves user references of the given tasks in place. References
// to users that no longer exist keep only their id.
func (r *TaskRepository) Populate(ctx context.Context, tasks []*models.Task, paths ...PopulatePath) error {
	for _, p := range paths {
		var ids []uuid.UUID
		seen := map[uuid.UUID]bool{}
		collect := func(id uuid.UUID) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}

		switch p.Path {
		case PathTeam:
			for _, task := range tasks {
				for _, ref := range task.Team {
					collect(ref.ID)
				}
			}
		case PathActivitiesBy:
			for _, task := range tasks {
				for _, act := range task.Activities {
					collect(act.By.ID)
				}
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, p.Path)
		}

		users, err := r.users.FindByIDs(ctx, ids, p.Fields)
		if err != nil {
			return err
		}
		refs := make(map[uuid.UUID]models.UserRef, len(users))
		for i := range users {
			refs[users[i].ID] = users[i].Ref()
		}

		for _, task := range tasks {
			if p.Path == PathTeam {
				for i, ref := range task.Team {
					if resolved, ok := refs[ref.ID]; ok {
						task.Team[i] = resolved
					}
				}
				continue
			}
			for i, act := range task.Activities {
				if resolved, ok := refs[act.By.ID]; ok {
					task.Activities[i].By = resolved
				}
			}
		}
	}
	return nil
}
