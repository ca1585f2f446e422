package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sakayhub/mobile-api/internal/models"
)

// NewAccount bundles the validated fields materialized into a permanent
// account. PasswordHash is carried over from the ledger entry; plaintext
// never reaches this point.
type NewAccount struct {
	Phone        string
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

// AccountStore is the permanent account collaborator. CreateAccountWithCredential
// must run as a single all-or-nothing transaction: credential record and
// profile record are committed together or not at all, and phone uniqueness is
// re-checked inside the transaction to close the race with concurrent signups.
type AccountStore interface {
	FindByPhone(ctx context.Context, phone string) (*models.Account, error)
	PhoneRegistered(ctx context.Context, phone string) (bool, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)

	// CreateAccountWithCredential returns ErrAccountExists when the phone is
	// already bound to a permanent account at commit time.
	CreateAccountWithCredential(ctx context.Context, p NewAccount) (*models.Account, *models.MobileProfile, error)

	// ProfileByAccountID returns ErrProfileMissing when the account has no
	// mobile profile.
	ProfileByAccountID(ctx context.Context, accountID uuid.UUID) (*models.MobileProfile, error)
}
