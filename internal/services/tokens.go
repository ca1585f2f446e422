package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/sakayhub/mobile-api/internal/models"
)

// TokenIssuer hands out the opaque bearer tokens used after login. One token
// exists per account: logging in again returns the same key, logging out
// revokes it everywhere.
type TokenIssuer interface {
	IssueOrReuse(ctx context.Context, accountID uuid.UUID) (string, error)
	Revoke(ctx context.Context, key string) error

	// Resolve maps a presented key to its account and profile. The profile is
	// nil when the account has none; an unknown key yields ErrInvalidToken.
	Resolve(ctx context.Context, key string) (*models.Account, *models.MobileProfile, error)
}

// GenerateTokenKey draws a random 40-char hex token key.
func GenerateTokenKey() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
