package service

import "github.com/google/uuid"

// Actor is the authenticated identity a request acts as. It comes from
// the identity collaborator's verified token and is threaded explicitly
// into every operation; the core never reaches for ambient request
// state.
type Actor struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	OrgID       *uuid.UUID
}
