package shared_models

import (
	"github.com/google/uuid"
)

// Booking lifecycle statuses. A booking holds seats while pending or
// confirmed; completed and cancelled are terminal.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Slot statuses. Slots are never deleted while bookings reference them;
// closing is a soft operation.
const (
	SlotStatusOpen   = "open"
	SlotStatusClosed = "closed"
)

// Trek statuses.
const (
	TrekStatusActive   = "active"
	TrekStatusInactive = "inactive"
)

// User roles carried by the identity collaborator.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// GenerateUUIDv7 generates a new UUIDv7.
func GenerateUUIDv7() (uuid.UUID, error) {
	return uuid.NewV7()
}

// UserIdentity is the authenticated caller, passed explicitly to the core
// instead of being read from ambient state.
type UserIdentity struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (u UserIdentity) IsAdmin() bool {
	return u.Role == RoleAdmin
}
