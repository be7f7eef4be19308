package services

import (
	"context"
	"fmt"
	"log/slog"

	"teamtasks/backend/internal/mailer"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/worker"

	"github.com/gofrs/uuid"
)

const NotificationQueue = "notifications"

type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
}

type RecipientDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID, fields []string) ([]models.User, error)
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, queue string, jobType worker.JobType, payload interface{}) error
}

type DispatchPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// NotificationService stores notifications and hands e-mail delivery to the
// job queue. A nil queue disables delivery.
type NotificationService struct {
	store  NotificationStore
	users  RecipientDirectory
	queue  JobEnqueuer
	mailer mailer.Mailer
	log    *slog.Logger
}

func NewNotificationService(store NotificationStore, users RecipientDirectory, queue JobEnqueuer, m mailer.Mailer, log *slog.Logger) *NotificationService {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationService{
		store:  store,
		users:  users,
		queue:  queue,
		mailer: m,
		log:    log,
	}
}

func (s *NotificationService) Notify(ctx context.Context, notification *models.Notification) error {
	if notification.NotiType == "" {
		notification.NotiType = models.NotiTypeAlert
	}
	if err := s.store.Create(ctx, notification); err != nil {
		return err
	}

	if s.queue == nil {
		return nil
	}
	payload := DispatchPayload{NotificationID: notification.ID}
	if err := s.queue.Enqueue(ctx, NotificationQueue, worker.JobTypeNotificationDispatch, payload); err != nil {
		s.log.WarnContext(ctx, "failed to enqueue notification dispatch", "notification_id", notification.ID, "error", err)
	}
	return nil
}

// HandleDispatch is the worker handler that e-mails a stored notification to
// its recipients.
func (s *NotificationService) HandleDispatch(ctx context.Context, job *worker.Job) error {
	var payload DispatchPayload
	if err := job.DecodePayload(&payload); err != nil {
		return err
	}

	notification, err := s.store.FindByID(ctx, payload.NotificationID)
	if err != nil {
		return err
	}

	recipients, err := s.users.FindByIDs(ctx, notification.Team.IDs(), []string{"email"})
	if err != nil {
		return err
	}

	to := make([]string, 0, len(recipients))
	for _, user := range recipients {
		if user.Email != "" {
			to = append(to, user.Email)
		}
	}

	msg := mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("Task alert (%s priority)", notification.Priority),
		Body:    notification.Text,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}

	s.log.DebugContext(ctx, "notification dispatched", "notification_id", notification.ID, "recipients", len(to))
	return nil
}
