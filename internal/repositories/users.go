package repositories

import (
	"context"
	"errors"
	"fmt"

	"teamtasks/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// userColumns maps the public field names used in select lists onto columns.
var userColumns = map[string]string{
	"name":      "name",
	"title":     "title",
	"role":      "role",
	"email":     "email",
	"isAdmin":   "is_admin",
	"isActive":  "is_active",
	"createdAt": "created_at",
}

func selectColumns(fields []string) ([]string, error) {
	columns := []string{"id"}
	for _, field := range fields {
		column, ok := userColumns[field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		columns = append(columns, column)
	}
	return columns, nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.Must(uuid.NewV4())
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// FindByIDs loads the given users with only the requested fields. Ids without
// a matching user are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID, fields []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	columns, err := selectColumns(fields)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Select(columns).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

// RecentActive returns the most recently created active users.
func (r *UserRepository) RecentActive(ctx context.Context, limit int, fields []string) ([]models.User, error) {
	columns, err := selectColumns(fields)
	if err != nil {
		return nil, err
	}

	users := []models.User{}
	err = r.db.WithContext(ctx).
		Select(columns).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}
