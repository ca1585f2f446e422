package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sakayhub/mobile-api/internal/models"
	"github.com/sakayhub/mobile-api/internal/services"
	"gorm.io/gorm"
)

// TokenRepository stores the opaque bearer tokens, one row per account.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) IssueOrReuse(ctx context.Context, accountID uuid.UUID) (string, error) {
	var token models.AuthToken
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&token).Error
	if err == nil {
		return token.Key, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("find token: %w", err)
	}

	key, err := services.GenerateTokenKey()
	if err != nil {
		return "", err
	}
	token = models.AuthToken{Key: key, AccountID: accountID}
	if err := r.db.WithContext(ctx).Create(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent login created the row first; reuse its key.
			var existing models.AuthToken
			if ferr := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&existing).Error; ferr == nil {
				return existing.Key, nil
			}
		}
		return "", fmt.Errorf("create token: %w", err)
	}
	return token.Key, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.AuthToken{}).Error
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Resolve(ctx context.Context, key string) (*models.Account, *models.MobileProfile, error) {
	var token models.AuthToken
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, services.ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("resolve token: %w", err)
	}

	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", token.AccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, services.ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("resolve token account: %w", err)
	}

	var profile models.MobileProfile
	err = r.db.WithContext(ctx).Where("account_id = ?", account.ID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &account, nil, nil
		}
		return nil, nil, fmt.Errorf("resolve token profile: %w", err)
	}
	return &account, &profile, nil
}
