package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sakayhub/mobile-api/internal/models"
	"github.com/sakayhub/mobile-api/internal/services"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationRepository is the postgres-backed verification ledger. The
// (phone, role) unique index plus upsert and increment-with-returning queries
// carry all the atomicity the protocol needs; no in-process locking.
type VerificationRepository struct {
	db          *gorm.DB
	ttl         time.Duration
	maxAttempts int
}

func NewVerificationRepository(db *gorm.DB, ttl time.Duration, maxAttempts int) *VerificationRepository {
	return &VerificationRepository{db: db, ttl: ttl, maxAttempts: maxAttempts}
}

func (r *VerificationRepository) IssueOrReplace(ctx context.Context, p services.IssueParams) (*models.PhoneVerification, error) {
	code, err := services.GenerateCode()
	if err != nil {
		return nil, err
	}

	v := models.PhoneVerification{
		Phone:          p.Phone,
		Role:           p.Role,
		Code:           code,
		HashedPassword: p.HashedPassword,
		Payload:        datatypes.JSON(p.Payload),
		Attempts:       0,
		ExpiresAt:      time.Now().Add(r.ttl),
	}

	// Concurrent signups for the same (phone, role) resolve to exactly one
	// row; last writer wins. created_at stays from the original insert.
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "phone"}, {Name: "role"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "hashed_password", "payload", "attempts", "expires_at",
		}),
	}).Create(&v).Error
	if err != nil {
		return nil, fmt.Errorf("upsert verification: %w", err)
	}
	return &v, nil
}

func (r *VerificationRepository) Lookup(ctx context.Context, phone, role string) (*models.PhoneVerification, error) {
	var v models.PhoneVerification
	err := r.db.WithContext(ctx).
		Where("phone = ? AND role = ?", phone, role).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNoPendingVerification
		}
		return nil, fmt.Errorf("lookup verification: %w", err)
	}
	return &v, nil
}

func (r *VerificationRepository) RecordFailedAttempt(ctx context.Context, v *models.PhoneVerification) (int, error) {
	// Single UPDATE ... RETURNING so two near-simultaneous wrong submissions
	// each see a distinct post-increment value.
	res := r.db.WithContext(ctx).Model(v).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts"}}}).
		Where("id = ?", v.ID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("record failed attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// A concurrent submission already exhausted and removed the entry.
		return 0, services.ErrTooManyAttempts
	}

	if v.Attempts >= r.maxAttempts {
		if err := r.Delete(ctx, v); err != nil {
			return 0, err
		}
		return 0, services.ErrTooManyAttempts
	}
	return r.maxAttempts - v.Attempts, nil
}

func (r *VerificationRepository) Delete(ctx context.Context, v *models.PhoneVerification) error {
	err := r.db.WithContext(ctx).
		Where("id = ?", v.ID).
		Delete(&models.PhoneVerification{}).Error
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	return nil
}

func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.PhoneVerification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired verifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
