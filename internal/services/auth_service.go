package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakayhub/mobile-api/internal/config"
	"github.com/sakayhub/mobile-api/internal/dto"
	"github.com/sakayhub/mobile-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// AuthService drives the signup/verify protocol and the login paths. All
// verification state lives in the ledger; the service itself is stateless so
// any number of instances can run against the same store.
type AuthService struct {
	cfg      *config.Config
	ledger   VerificationLedger
	accounts AccountStore
	tokens   TokenIssuer
	delivery CodeDelivery
	counters CounterStore
	now      func() time.Time
}

func NewAuthService(
	cfg *config.Config,
	ledger VerificationLedger,
	accounts AccountStore,
	tokens TokenIssuer,
	delivery CodeDelivery,
	counters CounterStore,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		ledger:   ledger,
		accounts: accounts,
		tokens:   tokens,
		delivery: delivery,
		counters: counters,
		now:      time.Now,
	}
}

// SignupResult is what RequestSignup hands back to the transport layer. The
// code is only populated when dev code echo is enabled.
type SignupResult struct {
	VerificationCode string
	ExpiresInMinutes int
}

// LoginResult bundles the bearer token and the public profile of the account
// that logged in.
type LoginResult struct {
	Token   string
	Profile dto.ProfileResponse
}

// RequestSignup stages a rider signup: duplicate checks, password hashing and
// a fresh ledger entry. Re-requesting for the same phone replaces any pending
// entry, so the previous code stops working. Driver signup has no equivalent
// path; drivers are provisioned out-of-band and only log in.
func (s *AuthService) RequestSignup(ctx context.Context, req dto.SignupRequest) (*SignupResult, error) {
	taken, err := s.accounts.PhoneRegistered(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("check phone: %w", err)
	}
	if taken {
		return nil, ErrPhoneTaken
	}

	inUse, err := s.accounts.EmailRegistered(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if inUse {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	locations := req.FavoriteLocations
	if locations == nil {
		locations = []string{}
	}
	payload, err := json.Marshal(dto.AccountPayload{
		Name:              req.Name,
		Email:             req.Email,
		DateOfBirth:       req.DateOfBirth,
		FavoriteLocations: locations,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	v, err := s.ledger.IssueOrReplace(ctx, IssueParams{
		Phone:          req.Phone,
		Role:           models.RoleUser,
		HashedPassword: string(hash),
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("issue verification: %w", err)
	}

	// Fire-and-forget dispatch; the request never blocks on the SMS gateway.
	go func(phone, code string) {
		if err := s.delivery.Deliver(context.WithoutCancel(ctx), phone, code); err != nil {
			slog.Error("verification code delivery failed", "phone", MaskPhone(phone), "error", err)
		}
	}(v.Phone, v.Code)

	result := &SignupResult{ExpiresInMinutes: int(s.cfg.VerificationTTL.Minutes())}
	if s.cfg.ExposeVerificationCode {
		result.VerificationCode = v.Code
	}
	return result, nil
}

// SubmitVerification checks a submitted code against the pending rider entry
// and materializes the account on a match. Expiry wins over code correctness:
// an expired entry always reports ErrCodeExpired even for the right code.
func (s *AuthService) SubmitVerification(ctx context.Context, phone, code string) (*dto.ProfileResponse, error) {
	v, err := s.ledger.Lookup(ctx, phone, models.RoleUser)
	if err != nil {
		return nil, err
	}

	if v.Expired(s.now()) {
		if err := s.ledger.Delete(ctx, v); err != nil {
			slog.Error("failed to reap expired verification", "phone", MaskPhone(phone), "error", err)
		}
		return nil, ErrCodeExpired
	}

	if v.Code != code {
		remaining, err := s.ledger.RecordFailedAttempt(ctx, v)
		if err != nil {
			return nil, err
		}
		return nil, &IncorrectCodeError{Remaining: remaining}
	}

	var payload dto.AccountPayload
	if err := json.Unmarshal(v.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode verification payload: %w", err)
	}

	account, profile, err := s.accounts.CreateAccountWithCredential(ctx, NewAccount{
		Phone:        phone,
		Email:        payload.Email,
		Name:         payload.Name,
		PasswordHash: v.HashedPassword,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			// Lost the race with a concurrent signup; the entry is useless now.
			_ = s.ledger.Delete(ctx, v)
			return nil, ErrAccountExists
		}
		// Transaction already rolled back; leave the entry so the client can
		// resubmit the same code.
		return nil, fmt.Errorf("%w: %v", ErrAccountCreation, err)
	}

	if err := s.ledger.Delete(ctx, v); err != nil {
		slog.Error("failed to delete verified entry", "phone", MaskPhone(phone), "error", err)
	}

	resp := profileResponse(account, profile)
	return &resp, nil
}

// Login authenticates a phone/password pair for the given role and issues a
// bearer token. The per-phone counter throttles brute force independently of
// the transport-level IP limiter.
func (s *AuthService) Login(ctx context.Context, phone, password, role string) (*LoginResult, error) {
	count, err := s.counters.Incr("login:"+phone, s.cfg.LoginWindow)
	if err != nil {
		slog.Error("login counter unavailable", "error", err)
	} else if count > s.cfg.LoginMaxAttempts {
		return nil, ErrLoginThrottled
	}

	account, err := s.accounts.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.accounts.ProfileByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if profile.Role != role {
		return nil, ErrWrongRole
	}

	token, err := s.tokens.IssueOrReuse(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: token, Profile: profileResponse(account, profile)}, nil
}

// Logout revokes the presented token. Revoking an already-absent token is a
// no-op.
func (s *AuthService) Logout(ctx context.Context, tokenKey string) error {
	return s.tokens.Revoke(ctx, tokenKey)
}

func profileResponse(account *models.Account, profile *models.MobileProfile) dto.ProfileResponse {
	return dto.ProfileResponse{
		Name:            profile.Name,
		Phone:           profile.Phone,
		Email:           account.Email,
		Role:            profile.Role,
		IsPhoneVerified: profile.IsPhoneVerified,
		CreatedAt:       profile.CreatedAt,
	}
}

// PublicProfile shapes the middleware-resolved account/profile pair for the
// me endpoints.
func PublicProfile(account *models.Account, profile *models.MobileProfile) dto.ProfileResponse {
	return profileResponse(account, profile)
}
