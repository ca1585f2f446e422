package services

import (
	"errors"
	"fmt"
)

var (
	ErrPhoneTaken            = errors.New("phone number already registered")
	ErrEmailTaken            = errors.New("email already in use")
	ErrNoPendingVerification = errors.New("no pending verification for this phone number")
	ErrCodeExpired           = errors.New("verification code expired")
	ErrIncorrectCode         = errors.New("incorrect verification code")
	ErrTooManyAttempts       = errors.New("too many incorrect attempts")
	ErrAccountExists         = errors.New("account already exists")
	ErrAccountCreation       = errors.New("unable to create account with provided details")
	ErrAccountNotFound       = errors.New("account not found")
	ErrProfileMissing        = errors.New("mobile profile missing")
	ErrInvalidCredentials    = errors.New("invalid phone number or password")
	ErrWrongRole             = errors.New("wrong role for this endpoint")
	ErrInvalidToken          = errors.New("invalid or revoked token")
	ErrLoginThrottled        = errors.New("too many login attempts")
)

// IncorrectCodeError reports a code mismatch together with how many attempts
// the caller has left before the pending verification is discarded.
type IncorrectCodeError struct {
	Remaining int
}

func (e *IncorrectCodeError) Error() string {
	return fmt.Sprintf("incorrect verification code, %d attempts remaining", e.Remaining)
}

// Is makes errors.Is(err, ErrIncorrectCode) match without losing Remaining.
func (e *IncorrectCodeError) Is(target error) bool {
	return target == ErrIncorrectCode
}
