package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PhoneVerification is the temporary ledger entry bridging a signup request
// and account creation. At most one live entry exists per (phone, role); a
// repeated signup replaces the whole row rather than mutating it in place.
// Entries are deleted, never just flagged, once they reach a terminal state
// (verified, expired, or attempts exhausted).
type PhoneVerification struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Phone          string         `gorm:"size:20;not null;uniqueIndex:idx_phone_verifications_phone_role" json:"phone"`
	Role           string         `gorm:"size:10;not null;uniqueIndex:idx_phone_verifications_phone_role" json:"role"`
	Code           string         `gorm:"size:6;not null" json:"-"`
	HashedPassword string         `gorm:"size:128;not null" json:"-"`
	Payload        datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"-"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	ExpiresAt      time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Expired reports whether the entry is logically dead at the given instant.
func (v *PhoneVerification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
