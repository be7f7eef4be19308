package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
)

const (
	ActionDelete     = "delete"
	ActionDeleteAll  = "deleteAll"
	ActionRestore    = "restore"
	ActionRestoreAll = "restoreAll"
)

const (
	dashboardRecentTasks = 10
	dashboardRecentUsers = 10
)

var (
	listTeamFields      = []string{"name", "title", "email"}
	detailTeamFields    = []string{"name", "title", "role", "email"}
	detailAuthorFields  = []string{"name"}
	dashboardTeamFields = []string{"name", "role", "title", "email"}
	dashboardUserFields = []string{"name", "title", "role", "isAdmin", "createdAt"}
)

type TaskService interface {
	CreateTask(ctx context.Context, actor models.Actor, input CreateTaskInput) (*models.Task, error)
	DuplicateTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error)
	PostTaskActivity(ctx context.Context, actor models.Actor, id uuid.UUID, input ActivityInput) error
	CreateSubTask(ctx context.Context, actor models.Actor, id uuid.UUID, input SubTaskInput) error
	UpdateTask(ctx context.Context, actor models.Actor, id uuid.UUID, input UpdateTaskInput) error
	TrashTask(ctx context.Context, actor models.Actor, id uuid.UUID) error
	DeleteRestoreTask(ctx context.Context, actor models.Actor, id uuid.UUID, actionType string) error
	GetTasks(ctx context.Context, actor models.Actor, query TaskQuery) ([]*models.Task, error)
	GetTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error)
	DashboardStatistics(ctx context.Context, actor models.Actor) (*DashboardSummary, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Save(ctx context.Context, task *models.Task) error
	Find(ctx context.Context, filter repositories.TaskFilter) ([]*models.Task, error)
	SetTrashed(ctx context.Context, id uuid.UUID, trashed bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTrashed(ctx context.Context) (int64, error)
	RestoreTrashed(ctx context.Context) (int64, error)
	Populate(ctx context.Context, tasks []*models.Task, paths ...repositories.PopulatePath) error
}

type UserDirectory interface {
	RecentActive(ctx context.Context, limit int, fields []string) ([]models.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, notification *models.Notification) error
}

type CreateTaskInput struct {
	Title    string      `json:"title" validate:"required,max=500"`
	Team     []uuid.UUID `json:"team"`
	Stage    string      `json:"stage"`
	Date     time.Time   `json:"date"`
	Priority string      `json:"priority" validate:"priority"`
	Assets   []string    `json:"assets"`
}

// UpdateTaskInput replaces every listed field of a task.
type UpdateTaskInput struct {
	Title    string      `json:"title" validate:"required,max=500"`
	Team     []uuid.UUID `json:"team"`
	Stage    string      `json:"stage"`
	Date     time.Time   `json:"date"`
	Priority string      `json:"priority" validate:"priority"`
	Assets   []string    `json:"assets"`
}

type ActivityInput struct {
	Type     string `json:"type" validate:"activitytype"`
	Activity string `json:"activity"`
}

type SubTaskInput struct {
	Title string    `json:"title" validate:"required,max=500"`
	Tag   string    `json:"tag"`
	Date  time.Time `json:"date"`
}

type TaskQuery struct {
	Stage     string
	IsTrashed bool
}

type PriorityTotal struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

type DashboardSummary struct {
	TotalTasks int             `json:"totalTasks"`
	Last10Task []*models.Task  `json:"last10Task"`
	Users      []models.User   `json:"users"`
	Tasks      map[string]int  `json:"tasks"`
	GraphData  []PriorityTotal `json:"graphData"`
}

type TaskServiceOption func(*taskService)

// WithClock replaces the time source used for creation times and activity dates.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *taskService) {
		s.now = now
	}
}

func WithLogger(log *slog.Logger) TaskServiceOption {
	return func(s *taskService) {
		s.log = log
	}
}

type taskService struct {
	tasks    TaskStore
	users    UserDirectory
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

func NewTaskService(tasks TaskStore, users UserDirectory, notifier Notifier, opts ...TaskServiceOption) TaskService {
	s := &taskService{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		validate: newValidator(),
		now: func() time.Time {
			return time.Now().UTC()
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *taskService) CreateTask(ctx context.Context, actor models.Actor, input CreateTaskInput) (*models.Task, error) {
	input.Stage = models.NormalizeStage(input.Stage)
	input.Priority = normalizePriority(input.Priority)
	if err := validate(s.validate, input); err != nil {
		return nil, err
	}

	now := s.now()
	task := &models.Task{
		ID:         uuid.Must(uuid.NewV4()),
		Title:      input.Title,
		Date:       dateOrNow(input.Date, now),
		Priority:   input.Priority,
		Stage:      input.Stage,
		Team:       models.RefsFromIDs(input.Team),
		Assets:     nonNilStrings(input.Assets),
		SubTasks:   []models.SubTask{},
		Activities: models.Activities{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	notification := &models.Notification{
		Team:     task.Team,
		Text:     assignmentText(task),
		TaskID:   task.ID,
		NotiType: models.NotiTypeAlert,
		Priority: task.Priority,
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task created", "task_id", task.ID, "by", actor.UserID, "team_size", len(task.Team))
	return task, nil
}

func (s *taskService) DuplicateTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error) {
	source, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	duplicate := source.Clone()
	duplicate.ID = uuid.Must(uuid.NewV4())
	duplicate.Title = source.Title + " - Duplicate"
	duplicate.CreatedAt = now
	duplicate.UpdatedAt = now
	if err := s.tasks.Create(ctx, duplicate); err != nil {
		return nil, err
	}

	copied := source.Clone()
	duplicate.Team = copied.Team
	duplicate.SubTasks = copied.SubTasks
	duplicate.Assets = copied.Assets
	duplicate.Priority = copied.Priority
	duplicate.Stage = copied.Stage
	if err := s.tasks.Save(ctx, duplicate); err != nil {
		return nil, err
	}

	notification := &models.Notification{
		Team:     source.Team,
		Text:     duplicateText(source),
		TaskID:   source.ID,
		NotiType: models.NotiTypeAlert,
		Priority: source.Priority,
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task duplicated", "source_id", source.ID, "task_id", duplicate.ID, "by", actor.UserID)
	return duplicate, nil
}

func (s *taskService) PostTaskActivity(ctx context.Context, actor models.Actor, id uuid.UUID, input ActivityInput) error {
	input.Type = models.NormalizeActivityType(input.Type)
	if err := validate(s.validate, input); err != nil {
		return err
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}

	task.Activities = append(task.Activities, models.Activity{
		Type:     input.Type,
		Activity: input.Activity,
		Date:     s.now(),
		By:       models.UserRef{ID: actor.UserID},
	})
	return s.tasks.Save(ctx, task)
}

func (s *taskService) CreateSubTask(ctx context.Context, actor models.Actor, id uuid.UUID, input SubTaskInput) error {
	if err := validate(s.validate, input); err != nil {
		return err
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}

	task.SubTasks = append(task.SubTasks, models.SubTask{
		ID:    uuid.Must(uuid.NewV4()),
		Title: input.Title,
		Date:  input.Date,
		Tag:   input.Tag,
	})
	return s.tasks.Save(ctx, task)
}

func (s *taskService) UpdateTask(ctx context.Context, actor models.Actor, id uuid.UUID, input UpdateTaskInput) error {
	input.Stage = models.NormalizeStage(input.Stage)
	input.Priority = normalizePriority(input.Priority)
	if err := validate(s.validate, input); err != nil {
		return err
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}

	task.Title = input.Title
	task.Date = input.Date
	task.Team = models.RefsFromIDs(input.Team)
	task.Stage = input.Stage
	task.Priority = input.Priority
	task.Assets = nonNilStrings(input.Assets)
	return s.tasks.Save(ctx, task)
}

func (s *taskService) TrashTask(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return s.tasks.SetTrashed(ctx, id, true)
}

// DeleteRestoreTask applies one of the delete/restore actions. The bulk
// actions ignore id and run as single store statements.
func (s *taskService) DeleteRestoreTask(ctx context.Context, actor models.Actor, id uuid.UUID, actionType string) error {
	var err error
	switch actionType {
	case ActionDelete:
		err = s.tasks.Delete(ctx, id)
	case ActionDeleteAll:
		var n int64
		n, err = s.tasks.DeleteTrashed(ctx)
		s.log.InfoContext(ctx, "trashed tasks deleted", "count", n, "by", actor.UserID)
	case ActionRestore:
		err = s.tasks.SetTrashed(ctx, id, false)
	case ActionRestoreAll:
		var n int64
		n, err = s.tasks.RestoreTrashed(ctx)
		s.log.InfoContext(ctx, "trashed tasks restored", "count", n, "by", actor.UserID)
	default:
		return ErrInvalidActionType
	}
	return err
}

func (s *taskService) GetTasks(ctx context.Context, actor models.Actor, query TaskQuery) ([]*models.Task, error) {
	filter := repositories.TaskFilter{IsTrashed: &query.IsTrashed}
	if stage := strings.TrimSpace(query.Stage); stage != "" {
		filter.Stage = models.NormalizeStage(stage)
	}
	if !actor.IsAdmin {
		filter.MemberID = &actor.UserID
	}

	tasks, err := s.tasks.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Populate(ctx, tasks, repositories.PopulatePath{Path: repositories.PathTeam, Fields: listTeamFields}); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *taskService) GetTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.tasks.Populate(ctx, []*models.Task{task},
		repositories.PopulatePath{Path: repositories.PathTeam, Fields: detailTeamFields},
		repositories.PopulatePath{Path: repositories.PathActivitiesBy, Fields: detailAuthorFields},
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) DashboardStatistics(ctx context.Context, actor models.Actor) (*DashboardSummary, error) {
	notTrashed := false
	filter := repositories.TaskFilter{IsTrashed: &notTrashed}
	if !actor.IsAdmin {
		filter.MemberID = &actor.UserID
	}

	tasks, err := s.tasks.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Populate(ctx, tasks, repositories.PopulatePath{Path: repositories.PathTeam, Fields: dashboardTeamFields}); err != nil {
		return nil, err
	}

	users := []models.User{}
	if actor.IsAdmin {
		users, err = s.users.RecentActive(ctx, dashboardRecentUsers, dashboardUserFields)
		if err != nil {
			return nil, err
		}
	}

	byStage := map[string]int{}
	var graph []PriorityTotal
	graphIndex := map[string]int{}
	for _, task := range tasks {
		byStage[task.Stage]++
		if i, ok := graphIndex[task.Priority]; ok {
			graph[i].Total++
			continue
		}
		graphIndex[task.Priority] = len(graph)
		graph = append(graph, PriorityTotal{Name: task.Priority, Total: 1})
	}
	if graph == nil {
		graph = []PriorityTotal{}
	}

	last := tasks
	if len(last) > dashboardRecentTasks {
		last = last[:dashboardRecentTasks]
	}

	return &DashboardSummary{
		TotalTasks: len(tasks),
		Last10Task: last,
		Users:      users,
		Tasks:      byStage,
		GraphData:  graph,
	}, nil
}

func assignmentText(task *models.Task) string {
	var b strings.Builder
	b.WriteString("New task has been assigned to you")
	if len(task.Team) > 1 {
		fmt.Fprintf(&b, " and %d others.", len(task.Team)-1)
	}
	fmt.Fprintf(&b, " The task priority is set as %s priority, so check and act accordingly. The task date is %s. Thank you!!!",
		task.Priority, task.Date.Format("Mon Jan 02 2006"))
	return b.String()
}

func duplicateText(task *models.Task) string {
	var b strings.Builder
	b.WriteString("New task has been assigned to you")
	if len(task.Team) > 1 {
		fmt.Fprintf(&b, " and %d others.", len(task.Team)-1)
	}
	fmt.Fprintf(&b, " The task priority is set as %s. Thank you!!!", task.Priority)
	return b.String()
}

// normalizePriority lowercases the priority; a blank priority means normal.
func normalizePriority(priority string) string {
	p := models.NormalizePriority(priority)
	if p == "" {
		return models.PriorityNormal
	}
	return p
}

func dateOrNow(date, now time.Time) time.Time {
	if date.IsZero() {
		return now
	}
	return date.UTC()
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
