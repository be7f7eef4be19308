package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is owned by the account service; this backend only reads it.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name,omitempty"`
	Title     string    `json:"title,omitempty"`
	Role      string    `json:"role,omitempty"`
	Email     string    `json:"email,omitempty" gorm:"uniqueIndex"`
	IsAdmin   bool      `json:"isAdmin"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) Ref() UserRef {
	return UserRef{
		ID:    u.ID,
		Name:  u.Name,
		Title: u.Title,
		Role:  u.Role,
		Email: u.Email,
	}
}
