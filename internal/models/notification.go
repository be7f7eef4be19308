package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const NotiTypeAlert = "alert"

type Notification struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Team      Team      `json:"team" gorm:"type:text"`
	Text      string    `json:"text"`
	TaskID    uuid.UUID `json:"task" gorm:"type:uuid;index"`
	NotiType  string    `json:"notiType"`
	Priority  string    `json:"priority"`
	IsRead    Team      `json:"isRead" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
