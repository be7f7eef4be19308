package models

import "github.com/gofrs/uuid"

// Actor is the authenticated caller of a request, resolved upstream and passed
// explicitly into every service call.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}
