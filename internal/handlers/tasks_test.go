package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teamtasks/backend/internal/handlers"
	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type MockTaskService struct {
	shouldReturnError bool
	tasks             []*models.Task

	lastCreate  services.CreateTaskInput
	lastUpdate  services.UpdateTaskInput
	lastSubTask services.SubTaskInput
	lastQuery   services.TaskQuery
	lastAction  string
	lastID      uuid.UUID
	calls       []string
}

var errMock = errors.New("something went wrong")

func (m *MockTaskService) record(name string, id uuid.UUID) error {
	m.calls = append(m.calls, name)
	m.lastID = id
	if m.shouldReturnError {
		return errMock
	}
	return nil
}

func (m *MockTaskService) CreateTask(ctx context.Context, actor models.Actor, input services.CreateTaskInput) (*models.Task, error) {
	m.lastCreate = input
	if err := m.record("CreateTask", uuid.Nil); err != nil {
		return nil, err
	}
	return &models.Task{ID: uuid.Must(uuid.NewV4()), Title: input.Title}, nil
}

func (m *MockTaskService) DuplicateTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error) {
	if err := m.record("DuplicateTask", id); err != nil {
		return nil, err
	}
	return &models.Task{ID: uuid.Must(uuid.NewV4()), Title: "Test Task - Duplicate"}, nil
}

func (m *MockTaskService) PostTaskActivity(ctx context.Context, actor models.Actor, id uuid.UUID, input services.ActivityInput) error {
	return m.record("PostTaskActivity", id)
}

func (m *MockTaskService) CreateSubTask(ctx context.Context, actor models.Actor, id uuid.UUID, input services.SubTaskInput) error {
	m.lastSubTask = input
	return m.record("CreateSubTask", id)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, actor models.Actor, id uuid.UUID, input services.UpdateTaskInput) error {
	m.lastUpdate = input
	return m.record("UpdateTask", id)
}

func (m *MockTaskService) TrashTask(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return m.record("TrashTask", id)
}

func (m *MockTaskService) DeleteRestoreTask(ctx context.Context, actor models.Actor, id uuid.UUID, actionType string) error {
	m.lastAction = actionType
	if err := m.record("DeleteRestoreTask", id); err != nil {
		return err
	}
	if actionType != services.ActionDelete && actionType != services.ActionDeleteAll &&
		actionType != services.ActionRestore && actionType != services.ActionRestoreAll {
		return services.ErrInvalidActionType
	}
	return nil
}

func (m *MockTaskService) GetTasks(ctx context.Context, actor models.Actor, query services.TaskQuery) ([]*models.Task, error) {
	m.lastQuery = query
	if err := m.record("GetTasks", uuid.Nil); err != nil {
		return nil, err
	}
	return m.tasks, nil
}

func (m *MockTaskService) GetTask(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Task, error) {
	if err := m.record("GetTask", id); err != nil {
		return nil, err
	}
	for _, task := range m.tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return nil, services.ErrTaskNotFound
}

func (m *MockTaskService) DashboardStatistics(ctx context.Context, actor models.Actor) (*services.DashboardSummary, error) {
	if err := m.record("DashboardStatistics", uuid.Nil); err != nil {
		return nil, err
	}
	return &services.DashboardSummary{
		TotalTasks: 2,
		Last10Task: m.tasks,
		Users:      []models.User{},
		Tasks:      map[string]int{"todo": 2},
		GraphData:  []services.PriorityTotal{{Name: "high", Total: 2}},
	}, nil
}

func setupTaskHandler(admin bool) (*MockTaskService, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	mockService := &MockTaskService{}
	handler := handlers.NewTaskHandler(mockService, nil)
	router := gin.New()

	// Stand-in for the identity middleware.
	router.Use(func(c *gin.Context) {
		middleware.SetActor(c, models.Actor{UserID: uuid.Must(uuid.NewV4()), IsAdmin: admin})
		c.Next()
	})
	handler.RegisterRoutes(router.Group("/api/tasks"))

	return mockService, router
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return response
}

func TestCreateTask(t *testing.T) {
	mockService, router := setupTaskHandler(true)
	member := uuid.Must(uuid.NewV4())

	w := doRequest(router, "POST", "/api/tasks", map[string]interface{}{
		"title":    "Test Task",
		"team":     []string{member.String()},
		"stage":    "ToDo",
		"date":     "2024-03-15",
		"priority": "High",
		"assets":   []string{"a.png"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	response := decode(t, w)
	if response["status"] != true || response["message"] != "Task created successfully" {
		t.Errorf("Unexpected response: %v", response)
	}
	if _, ok := response["task"]; !ok {
		t.Error("Expected task in response")
	}

	input := mockService.lastCreate
	if input.Title != "Test Task" || len(input.Team) != 1 || input.Team[0] != member {
		t.Errorf("Unexpected input: %+v", input)
	}
	if !input.Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected plain date to be parsed, got %v", input.Date)
	}
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	_, router := setupTaskHandler(true)

	w := doRequest(router, "POST", "/api/tasks", "invalid json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if decode(t, w)["status"] != false {
		t.Error("Expected status false")
	}
}

func TestCreateTaskInvalidDate(t *testing.T) {
	_, router := setupTaskHandler(true)

	w := doRequest(router, "POST", "/api/tasks", map[string]interface{}{"title": "x", "date": "next week"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTaskRequiresAdmin(t *testing.T) {
	mockService, router := setupTaskHandler(false)

	w := doRequest(router, "POST", "/api/tasks", map[string]interface{}{"title": "Test Task"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if len(mockService.calls) != 0 {
		t.Errorf("Expected service not to be called, got %v", mockService.calls)
	}
}

func TestServiceErrorsAreFlat400(t *testing.T) {
	mockService, router := setupTaskHandler(true)
	mockService.shouldReturnError = true
	id := uuid.Must(uuid.NewV4()).String()

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{"POST", "/api/tasks", map[string]interface{}{"title": "x"}},
		{"POST", "/api/tasks/duplicate/" + id, nil},
		{"POST", "/api/tasks/activity/" + id, map[string]interface{}{"type": "started"}},
		{"POST", "/api/tasks/subtask/" + id, map[string]interface{}{"title": "x"}},
		{"GET", "/api/tasks/dashboard", nil},
		{"GET", "/api/tasks", nil},
		{"GET", "/api/tasks/" + id, nil},
		{"PUT", "/api/tasks/" + id, map[string]interface{}{"title": "x"}},
		{"PUT", "/api/tasks/trash/" + id, nil},
		{"DELETE", "/api/tasks/" + id + "?actionType=delete", nil},
	}

	for _, r := range requests {
		w := doRequest(router, r.method, r.path, r.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected status %d, got %d", r.method, r.path, http.StatusBadRequest, w.Code)
			continue
		}
		response := decode(t, w)
		if response["status"] != false || response["message"] != errMock.Error() {
			t.Errorf("%s %s: unexpected body %v", r.method, r.path, response)
		}
	}
}

func TestDuplicateTask(t *testing.T) {
	mockService, router := setupTaskHandler(true)
	id := uuid.Must(uuid.NewV4())

	w := doRequest(router, "POST", "/api/tasks/duplicate/"+id.String(), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	response := decode(t, w)
	if response["message"] != "Task duplicated successfully" || response["newTask"] == nil {
		t.Errorf("Unexpected response: %v", response)
	}
	if mockService.lastID != id {
		t.Errorf("Expected id %s, got %s", id, mockService.lastID)
	}
}

func TestInvalidTaskID(t *testing.T) {
	mockService, router := setupTaskHandler(true)

	w := doRequest(router, "GET", "/api/tasks/not-a-uuid", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if len(mockService.calls) != 0 {
		t.Errorf("Expected service not to be called, got %v", mockService.calls)
	}
}

func TestPostTaskActivityAllowedForMembers(t *testing.T) {
	mockService, router := setupTaskHandler(false)

	w := doRequest(router, "POST", "/api/tasks/activity/"+uuid.Must(uuid.NewV4()).String(),
		map[string]interface{}{"type": "commented", "activity": "looks good"})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if decode(t, w)["message"] != "Task activity posted successfully" {
		t.Error("Unexpected message")
	}
	if len(mockService.calls) != 1 || mockService.calls[0] != "PostTaskActivity" {
		t.Errorf("Unexpected calls %v", mockService.calls)
	}
}

func TestCreateSubTask(t *testing.T) {
	mockService, router := setupTaskHandler(true)

	w := doRequest(router, "POST", "/api/tasks/subtask/"+uuid.Must(uuid.NewV4()).String(),
		map[string]interface{}{"title": "Write docs", "tag": "docs", "date": "2024-03-20T09:00:00Z"})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if decode(t, w)["message"] != "new Subtask created successfully" {
		t.Error("Unexpected message")
	}
	if mockService.lastSubTask.Tag != "docs" || mockService.lastSubTask.Date.Day() != 20 {
		t.Errorf("Unexpected input %+v", mockService.lastSubTask)
	}
}

func TestGetTasks(t *testing.T) {
	mockService, router := setupTaskHandler(false)
	mockService.tasks = []*models.Task{
		{ID: uuid.Must(uuid.NewV4()), Title: "Task 1"},
		{ID: uuid.Must(uuid.NewV4()), Title: "Task 2"},
	}

	w := doRequest(router, "GET", "/api/tasks?stage=todo&isTrashed=true", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	response := decode(t, w)
	data, ok := response["data"].([]interface{})
	if !ok || len(data) != 2 {
		t.Errorf("Expected 2 tasks, got %v", response["data"])
	}
	if mockService.lastQuery.Stage != "todo" || !mockService.lastQuery.IsTrashed {
		t.Errorf("Unexpected query %+v", mockService.lastQuery)
	}
}

func TestGetTasksTrashedParsing(t *testing.T) {
	mockService, router := setupTaskHandler(false)

	w := doRequest(router, "GET", "/api/tasks", nil)
	if w.Code != http.StatusOK || mockService.lastQuery.IsTrashed {
		t.Errorf("Expected empty isTrashed to mean false, got %d %+v", w.Code, mockService.lastQuery)
	}

	w = doRequest(router, "GET", "/api/tasks?isTrashed=perhaps", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestGetTask(t *testing.T) {
	mockService, router := setupTaskHandler(false)
	task := &models.Task{ID: uuid.Must(uuid.NewV4()), Title: "Test Task"}
	mockService.tasks = []*models.Task{task}

	w := doRequest(router, "GET", "/api/tasks/"+task.ID.String(), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Status bool        `json:"status"`
		Data   models.Task `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !response.Status || response.Data.Title != "Test Task" {
		t.Errorf("Unexpected response %+v", response)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	_, router := setupTaskHandler(false)

	w := doRequest(router, "GET", "/api/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if decode(t, w)["message"] != "task not found" {
		t.Error("Expected task not found message")
	}
}

func TestDashboardStatistics(t *testing.T) {
	_, router := setupTaskHandler(false)

	w := doRequest(router, "GET", "/api/tasks/dashboard", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	response := decode(t, w)
	for _, key := range []string{"status", "message", "totalTasks", "last10Task", "users", "tasks", "graphData"} {
		if _, ok := response[key]; !ok {
			t.Errorf("Expected key %q in dashboard response", key)
		}
	}
	if response["totalTasks"] != float64(2) {
		t.Errorf("Expected totalTasks 2, got %v", response["totalTasks"])
	}
}

func TestUpdateTask(t *testing.T) {
	mockService, router := setupTaskHandler(true)
	id := uuid.Must(uuid.NewV4())

	w := doRequest(router, "PUT", "/api/tasks/"+id.String(), map[string]interface{}{
		"title": "Updated Task",
		"stage": "completed",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if decode(t, w)["message"] != "Task updated successfully" {
		t.Error("Unexpected message")
	}
	if mockService.lastUpdate.Title != "Updated Task" || mockService.lastID != id {
		t.Errorf("Unexpected update %+v for %s", mockService.lastUpdate, mockService.lastID)
	}
}

func TestUpdateTaskWithActionTypeRestores(t *testing.T) {
	mockService, router := setupTaskHandler(true)
	id := uuid.Must(uuid.NewV4())

	w := doRequest(router, "PUT", "/api/tasks/"+id.String()+"?actionType=restore", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if mockService.calls[0] != "DeleteRestoreTask" || mockService.lastAction != services.ActionRestore {
		t.Errorf("Expected restore, got %v %s", mockService.calls, mockService.lastAction)
	}
}

func TestTrashTask(t *testing.T) {
	_, router := setupTaskHandler(true)

	w := doRequest(router, "PUT", "/api/tasks/trash/"+uuid.Must(uuid.NewV4()).String(), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if decode(t, w)["message"] != "Task trashed successfully." {
		t.Error("Unexpected message")
	}
}

func TestDeleteRestoreTask(t *testing.T) {
	mockService, router := setupTaskHandler(true)
	id := uuid.Must(uuid.NewV4())

	w := doRequest(router, "DELETE", "/api/tasks/"+id.String()+"?actionType=delete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if decode(t, w)["message"] != "Task deleted/restored successfully" || mockService.lastID != id {
		t.Error("Unexpected single delete result")
	}

	w = doRequest(router, "DELETE", "/api/tasks?actionType=deleteAll", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if mockService.lastID != uuid.Nil || mockService.lastAction != services.ActionDeleteAll {
		t.Errorf("Expected bulk delete without id, got %s %s", mockService.lastID, mockService.lastAction)
	}

	w = doRequest(router, "DELETE", "/api/tasks?actionType=purge", nil)
	if w.Code != http.StatusBadRequest || decode(t, w)["message"] != "Invalid action type" {
		t.Errorf("Expected invalid action type error, got %d %s", w.Code, w.Body.String())
	}
}
