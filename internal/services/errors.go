package services

import (
	"errors"

	"teamtasks/backend/internal/repositories"
)

var (
	ErrTaskNotFound      = repositories.ErrTaskNotFound
	ErrInvalidActionType = errors.New("Invalid action type")
	ErrValidation        = errors.New("validation failed")
)
