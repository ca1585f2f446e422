package models

import (
	"time"

	"github.com/google/uuid"
)

// Mobile roles. Riders sign up through the OTP flow; drivers are provisioned
// out-of-band and only log in.
const (
	RoleUser   = "user"
	RoleDriver = "driver"
)

// Account is the login/credential record. The phone number doubles as the
// login identifier and is unique across all accounts regardless of role.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Phone        string    `gorm:"size:20;not null;uniqueIndex" json:"phone"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MobileProfile is the one-to-one public profile attached to an account.
// Identity fields (phone, role) never change after materialization.
type MobileProfile struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	AccountID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"-"`
	Role            string    `gorm:"size:10;not null" json:"role"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Phone           string    `gorm:"size:20;not null;uniqueIndex" json:"phone"`
	IsPhoneVerified bool      `gorm:"default:false" json:"is_phone_verified"`
	CreatedAt       time.Time `json:"created_at"`
	Account         Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}
