package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/sakayhub/mobile-api/internal/models"
)

// IssueParams carries everything the ledger needs to stage a signup. The
// payload is the serialized account document materialized on success.
type IssueParams struct {
	Phone          string
	Role           string
	HashedPassword string
	Payload        []byte
}

// VerificationLedger is the temporary store of pending phone verifications,
// keyed by (phone, role). Implementations must make IssueOrReplace an atomic
// upsert and RecordFailedAttempt a single atomic increment-and-check, so
// concurrent submissions cannot observe stale attempt counts.
type VerificationLedger interface {
	// IssueOrReplace stages a fresh verification for (phone, role), fully
	// replacing any prior entry: new code, attempts back to zero, new expiry,
	// new payload. The latest signup request always wins.
	IssueOrReplace(ctx context.Context, p IssueParams) (*models.PhoneVerification, error)

	// Lookup returns the live entry for (phone, role) or
	// ErrNoPendingVerification. Pure read, no side effects.
	Lookup(ctx context.Context, phone, role string) (*models.PhoneVerification, error)

	// RecordFailedAttempt atomically increments the attempt counter. When the
	// limit is reached the entry is removed and ErrTooManyAttempts returned;
	// otherwise the number of attempts remaining is reported.
	RecordFailedAttempt(ctx context.Context, v *models.PhoneVerification) (remaining int, err error)

	// Delete removes the entry. Idempotent; deleting an absent entry is not
	// an error.
	Delete(ctx context.Context, v *models.PhoneVerification) error

	// DeleteExpired reaps every entry whose expiry has passed and reports how
	// many rows went away. Lazy deletion on lookup keeps the protocol correct
	// without this; the sweeper just keeps the table small.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

const codeDigits = 6

var codeMax = big.NewInt(1_000_000)

// GenerateCode draws a uniformly random zero-padded 6-digit code. "000000" is
// as valid as any other value.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeMax)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

// StartVerificationSweeper periodically reaps expired ledger entries until
// done is closed.
func StartVerificationSweeper(ledger VerificationLedger, interval time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				reaped, err := ledger.DeleteExpired(context.Background(), time.Now())
				if err != nil {
					slog.Error("verification sweep failed", "error", err)
				} else if reaped > 0 {
					slog.Info("verification sweep completed", "reaped", reaped)
				}
			case <-done:
				return
			}
		}
	}()
}
