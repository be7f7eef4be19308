package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

const (
	StageTodo       = "todo"
	StageInProgress = "in progress"
	StageCompleted  = "completed"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

var knownPriorities = map[string]bool{
	PriorityHigh:   true,
	PriorityMedium: true,
	PriorityNormal: true,
	PriorityLow:    true,
}

type Task struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title      string     `json:"title" gorm:"not null"`
	Date       time.Time  `json:"date"`
	Priority   string     `json:"priority" gorm:"index"`
	Stage      string     `json:"stage" gorm:"index"`
	Team       Team       `json:"team" gorm:"type:text"`
	Assets     []string   `json:"assets" gorm:"type:text;serializer:json"`
	SubTasks   []SubTask  `json:"subTasks" gorm:"type:text;serializer:json"`
	Activities Activities `json:"activities" gorm:"type:text"`
	IsTrashed  bool       `json:"isTrashed" gorm:"index"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type SubTask struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Tag   string    `json:"tag"`
}

// NormalizeStage lowercases a stage and falls back to todo when it is blank.
// Stages form an open set; no allow-list is applied.
func NormalizeStage(stage string) string {
	s := strings.ToLower(strings.TrimSpace(stage))
	if s == "" {
		return StageTodo
	}
	return s
}

func NormalizePriority(priority string) string {
	return strings.ToLower(strings.TrimSpace(priority))
}

func IsKnownPriority(priority string) bool {
	return knownPriorities[priority]
}

// Clone returns a deep copy so that slices are never shared between documents.
func (t *Task) Clone() *Task {
	c := *t
	c.Team = append(Team{}, t.Team...)
	c.Assets = append([]string{}, t.Assets...)
	c.SubTasks = append([]SubTask{}, t.SubTasks...)
	c.Activities = append(Activities{}, t.Activities...)
	return &c
}

func (t *Task) HasMember(userID uuid.UUID) bool {
	for _, member := range t.Team {
		if member.ID == userID {
			return true
		}
	}
	return false
}
