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

// AccountRepository is the postgres-backed account store.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account by phone: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) PhoneRegistered(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MobileProfile{}).
		Where("phone = ?", phone).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count profiles by phone: %w", err)
	}
	return count > 0, nil
}

func (r *AccountRepository) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("email = ?", email).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count accounts by email: %w", err)
	}
	return count > 0, nil
}

// CreateAccountWithCredential materializes a verified signup. Credential and
// profile commit together or not at all; the phone re-check plus unique
// constraints close the race between the signup pre-check and this commit.
func (r *AccountRepository) CreateAccountWithCredential(ctx context.Context, p services.NewAccount) (*models.Account, *models.MobileProfile, error) {
	var (
		account models.Account
		profile models.MobileProfile
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("phone = ?", p.Phone).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return services.ErrAccountExists
		}

		account = models.Account{
			ID:           uuid.New(),
			Phone:        p.Phone,
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
		}
		if err := tx.Create(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return services.ErrAccountExists
			}
			return err
		}

		profile = models.MobileProfile{
			ID:              uuid.New(),
			AccountID:       account.ID,
			Role:            p.Role,
			Name:            p.Name,
			Phone:           p.Phone,
			IsPhoneVerified: true,
		}
		if err := tx.Create(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return services.ErrAccountExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrAccountExists) {
			return nil, nil, services.ErrAccountExists
		}
		return nil, nil, fmt.Errorf("create account with credential: %w", err)
	}
	return &account, &profile, nil
}

func (r *AccountRepository) ProfileByAccountID(ctx context.Context, accountID uuid.UUID) (*models.MobileProfile, error) {
	var profile models.MobileProfile
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrProfileMissing
		}
		return nil, fmt.Errorf("find profile by account: %w", err)
	}
	return &profile, nil
}
