package dto

import "time"

type SignupRequest struct {
	Name              string   `json:"name" validate:"required,max=255"`
	Email             string   `json:"email" validate:"required,email,max=255"`
	Phone             string   `json:"phone" validate:"required,max=20"`
	Password          string   `json:"password" validate:"required,min=8"`
	DateOfBirth       *string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	FavoriteLocations []string `json:"favorite_locations" validate:"omitempty,dive,required,max=255"`
}

type VerifyRequest struct {
	Phone string `json:"phone" validate:"required,max=20"`
	Code  string `json:"code" validate:"required,max=6"`
}

type LoginRequest struct {
	Phone    string `json:"phone" validate:"required,max=20"`
	Password string `json:"password" validate:"required"`
}

// AccountPayload is the serialized document staged in the verification ledger
// and materialized into an account once the phone is proven.
type AccountPayload struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	DateOfBirth       *string  `json:"date_of_birth"`
	FavoriteLocations []string `json:"favorite_locations"`
}

type SignupResponse struct {
	Detail string `json:"detail"`
	// VerificationCode is only present when dev code echo is enabled; in
	// production the code travels over SMS and never appears here.
	VerificationCode string `json:"verification_code,omitempty"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

type ProfileResponse struct {
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	IsPhoneVerified bool      `json:"is_phone_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

type UserLoginResponse struct {
	Token string          `json:"token"`
	User  ProfileResponse `json:"user"`
}

type DriverLoginResponse struct {
	Token  string          `json:"token"`
	Driver ProfileResponse `json:"driver"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

type ErrorResponse struct {
	Detail            string       `json:"detail"`
	AttemptsRemaining *int         `json:"attempts_remaining,omitempty"`
	Errors            []FieldError `json:"errors,omitempty"`
}
