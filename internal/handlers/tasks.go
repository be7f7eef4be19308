package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

var errNotAuthenticated = errors.New("not authenticated")

type TaskHandler struct {
	taskService services.TaskService
	log         *slog.Logger
}

func NewTaskHandler(taskService services.TaskService, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{taskService: taskService, log: log}
}

// RegisterRoutes mounts the task endpoints on group. The group is expected to
// run the identity middleware; admin checks are applied per route.
func (h *TaskHandler) RegisterRoutes(group *gin.RouterGroup) {
	admin := middleware.RequireAdmin()

	group.POST("", admin, h.CreateTask)
	group.POST("/duplicate/:id", admin, h.DuplicateTask)
	group.POST("/activity/:id", h.PostTaskActivity)
	group.POST("/subtask/:id", admin, h.CreateSubTask)

	group.GET("/dashboard", h.DashboardStatistics)
	group.GET("", h.GetTasks)
	group.GET("/:id", h.GetTask)

	group.PUT("/trash/:id", admin, h.TrashTask)
	group.PUT("/:id", admin, h.UpdateTask)

	group.DELETE("", admin, h.DeleteRestoreTask)
	group.DELETE("/:id", admin, h.DeleteRestoreTask)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), actor, req.createInput())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Task created successfully", "task": task})
}

func (h *TaskHandler) DuplicateTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := taskID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.taskService.DuplicateTask(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Task duplicated successfully", "newTask": task})
}

func (h *TaskHandler) PostTaskActivity(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := taskID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, err)
		return
	}

	input := services.ActivityInput{Type: req.Type, Activity: req.Activity}
	if err := h.taskService.PostTaskActivity(c.Request.Context(), actor, id, input); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Task activity posted successfully"})
}

func (h *TaskHandler) CreateSubTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := taskID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req subTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, err)
		return
	}

	input := services.SubTaskInput{Title: req.Title, Tag: req.Tag, Date: req.Date.Time}
	if err := h.taskService.CreateSubTask(c.Request.Context(), actor, id, input); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "new Subtask created successfully"})
}

// UpdateTask also serves the legacy PUT form of delete/restore: when an
// actionType query parameter is present the request is routed there.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	if _, ok := c.GetQuery("actionType"); ok {
		h.DeleteRestoreTask(c)
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := taskID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.taskService.UpdateTask(c.Request.Context(), actor, id, req.updateInput()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Task updated successfully"})
}

func (h *TaskHandler) TrashTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := taskID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.taskService.TrashTask(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Task trashed successfully."})
}

// DeleteRestoreTask handles both the single-task form (/:id) and the bulk
// form without an id.
func (h *TaskHandler) DeleteRestoreTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id := uuid.Nil
	if c.Param("id") != "" {
		var err error
		if id, err = taskID(c); err != nil {
			h.respondError(c, err)
			return
		}
	}

	actionType := c.Query("actionType")
	if err := h.taskService.DeleteRestoreTask(c.Request.Context(), actor, id, actionType); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Task deleted/restored successfully"})
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	query := services.TaskQuery{Stage: c.Query("stage")}
	if raw := c.Query("isTrashed"); raw != "" {
		trashed, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, fmt.Errorf("invalid isTrashed value %q", raw))
			return
		}
		query.IsTrashed = trashed
	}

	tasks, err := h.taskService.GetTasks(c.Request.Context(), actor, query)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "data": tasks})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := taskID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "data": task})
}

func (h *TaskHandler) DashboardStatistics(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	summary, err := h.taskService.DashboardStatistics(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     true,
		"message":    "successfully",
		"totalTasks": summary.TotalTasks,
		"last10Task": summary.Last10Task,
		"users":      summary.Users,
		"tasks":      summary.Tasks,
		"graphData":  summary.GraphData,
	})
}

func (h *TaskHandler) actor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": false, "message": errNotAuthenticated.Error()})
		return models.Actor{}, false
	}
	return actor, true
}

func taskID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task id %q", c.Param("id"))
	}
	return id, nil
}

// respondError reports every failure as 400 with the raw error text.
func (h *TaskHandler) respondError(c *gin.Context, err error) {
	h.log.WarnContext(c.Request.Context(), "task request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"error", err,
	)
	c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": err.Error()})
}
