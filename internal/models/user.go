package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a local replica of the identity collaborator's directory,
// refreshed from verified token claims as users act. The core needs it
// for display names only: system messages, DM naming, invite details
// and member listings. It is not an account; identity issuance lives
// outside this service.
type User struct {
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email,omitempty"`
	OrgID       *uuid.UUID `json:"org_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
