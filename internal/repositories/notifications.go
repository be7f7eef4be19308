package repositories

import (
	"context"
	"errors"
	"fmt"

	"teamtasks/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.Must(uuid.NewV4())
	}
	if notification.IsRead == nil {
		notification.IsRead = models.Team{}
	}
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	return &notification, nil
}

func (r *NotificationRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	return notifications, nil
}
