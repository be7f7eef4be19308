package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"teamtasks/backend/internal/services"

	"github.com/gofrs/uuid"
)

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Date accepts full timestamps as well as plain calendar dates. An empty
// string or null leaves the zero value.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

type taskRequest struct {
	Title    string      `json:"title"`
	Team     []uuid.UUID `json:"team"`
	Stage    string      `json:"stage"`
	Date     Date        `json:"date"`
	Priority string      `json:"priority"`
	Assets   []string    `json:"assets"`
}

func (r taskRequest) createInput() services.CreateTaskInput {
	return services.CreateTaskInput{
		Title:    r.Title,
		Team:     r.Team,
		Stage:    r.Stage,
		Date:     r.Date.Time,
		Priority: r.Priority,
		Assets:   r.Assets,
	}
}

func (r taskRequest) updateInput() services.UpdateTaskInput {
	return services.UpdateTaskInput{
		Title:    r.Title,
		Team:     r.Team,
		Stage:    r.Stage,
		Date:     r.Date.Time,
		Priority: r.Priority,
		Assets:   r.Assets,
	}
}

type activityRequest struct {
	Type     string `json:"type"`
	Activity string `json:"activity"`
}

type subTaskRequest struct {
	Title string `json:"title"`
	Tag   string `json:"tag"`
	Date  Date   `json:"date"`
}
