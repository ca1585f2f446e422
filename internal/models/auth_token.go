package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthToken is an opaque bearer token, one per account. Login reuses the
// existing key when present; logout deletes the row, which revokes the token
// everywhere. The key is a random 40-char hex string generated at issue time.
type AuthToken struct {
	Key       string    `gorm:"size:40;primaryKey" json:"-"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}
