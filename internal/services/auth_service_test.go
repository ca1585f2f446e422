package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sakayhub/mobile-api/internal/config"
	"github.com/sakayhub/mobile-api/internal/dto"
	"github.com/sakayhub/mobile-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

func testConfig() *config.Config {
	return &config.Config{
		VerificationTTL:        10 * time.Minute,
		MaxAttempts:            5,
		ExposeVerificationCode: true,
		LoginMaxAttempts:       10,
		LoginWindow:            15 * time.Minute,
	}
}

func newTestAuth(t *testing.T) (*AuthService, *fakeLedger, *fakeAccounts, *fakeTokens) {
	t.Helper()
	ledger := newFakeLedger()
	accounts := newFakeAccounts()
	tokens := newFakeTokens(accounts)
	svc := NewAuthService(testConfig(), ledger, accounts, tokens, nopDelivery{}, NewMemoryCounterStore())
	return svc, ledger, accounts, tokens
}

func signupRequest(phone string) dto.SignupRequest {
	return dto.SignupRequest{
		Name:              "Jane Rider",
		Email:             "jane.rider@example.com",
		Phone:             phone,
		Password:          "longenough1",
		FavoriteLocations: []string{"Home", "Office"},
	}
}

func TestSignupVerifyRoundTrip(t *testing.T) {
	svc, ledger, accounts, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0100"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: unexpected error: %v", err)
	}
	if result.VerificationCode == "" {
		t.Fatal("signup: expected dev code echo to return the code")
	}
	if result.ExpiresInMinutes != 10 {
		t.Fatalf("signup: expected 10 minute TTL, got %d", result.ExpiresInMinutes)
	}

	profile, err := svc.SubmitVerification(ctx, phone, result.VerificationCode)
	if err != nil {
		t.Fatalf("verify: unexpected error: %v", err)
	}
	if !profile.IsPhoneVerified {
		t.Fatal("verify: expected is_phone_verified=true")
	}
	if profile.Role != models.RoleUser {
		t.Fatalf("verify: expected role %q got %q", models.RoleUser, profile.Role)
	}
	if profile.Name != "Jane Rider" || profile.Phone != phone {
		t.Fatalf("verify: unexpected profile %+v", profile)
	}

	if _, err := ledger.Lookup(ctx, phone, models.RoleUser); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected ledger entry removed after success, got %v", err)
	}

	account, err := accounts.FindByPhone(ctx, phone)
	if err != nil {
		t.Fatalf("expected materialized account: %v", err)
	}
	if account.PasswordHash == "" || account.PasswordHash == "longenough1" {
		t.Fatal("expected hashed password on account")
	}
}

func TestSignupDuplicatePhoneAndEmail(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0101"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := svc.RequestSignup(ctx, signupRequest(phone)); !errors.Is(err, ErrPhoneTaken) {
		t.Fatalf("expected ErrPhoneTaken, got %v", err)
	}

	req := signupRequest("+1 555 0199")
	if _, err := svc.RequestSignup(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestReissueInvalidatesOldCode(t *testing.T) {
	svc, ledger, _, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0102"

	codes := []string{"111111", "222222"}
	ledger.nextCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("first signup: %v", err)
	}

	// poison the counter so a reset would be visible
	entry, err := ledger.Lookup(ctx, phone, models.RoleUser)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := ledger.RecordFailedAttempt(ctx, entry); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	second, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("second signup: %v", err)
	}
	if second.VerificationCode == first.VerificationCode {
		t.Fatal("expected re-issue to generate a fresh code")
	}

	entry, err = ledger.Lookup(ctx, phone, models.RoleUser)
	if err != nil {
		t.Fatalf("lookup after reissue: %v", err)
	}
	if entry.Attempts != 0 {
		t.Fatalf("expected attempts reset by replacement, got %d", entry.Attempts)
	}

	_, err = svc.SubmitVerification(ctx, phone, first.VerificationCode)
	if !errors.Is(err, ErrIncorrectCode) {
		t.Fatalf("expected old code rejected with ErrIncorrectCode, got %v", err)
	}

	if _, err := svc.SubmitVerification(ctx, phone, second.VerificationCode); err != nil {
		t.Fatalf("expected new code to verify: %v", err)
	}
}

func TestExpiryBeatsCorrectCode(t *testing.T) {
	svc, ledger, _, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0103"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	expired := time.Now().Add(11 * time.Minute)
	svc.now = func() time.Time { return expired }

	_, err = svc.SubmitVerification(ctx, phone, result.VerificationCode)
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired for correct code on expired entry, got %v", err)
	}

	if _, err := ledger.Lookup(ctx, phone, models.RoleUser); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected expired entry reaped, got %v", err)
	}
}

func TestAttemptExhaustion(t *testing.T) {
	svc, ledger, _, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0104"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	wrong := wrongCode(result.VerificationCode)

	for i, want := range []int{4, 3, 2, 1} {
		_, err := svc.SubmitVerification(ctx, phone, wrong)
		var incorrect *IncorrectCodeError
		if !errors.As(err, &incorrect) {
			t.Fatalf("attempt %d: expected IncorrectCodeError, got %v", i+1, err)
		}
		if incorrect.Remaining != want {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i+1, want, incorrect.Remaining)
		}
	}

	if _, err := svc.SubmitVerification(ctx, phone, wrong); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("5th wrong attempt: expected ErrTooManyAttempts, got %v", err)
	}

	if _, err := ledger.Lookup(ctx, phone, models.RoleUser); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected exhausted entry removed, got %v", err)
	}

	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected no pending after exhaustion, got %v", err)
	}
}

func TestWrongThenRightSucceeds(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0105"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	wrong := wrongCode(result.VerificationCode)

	for i := 0; i < 4; i++ {
		if _, err := svc.SubmitVerification(ctx, phone, wrong); !errors.Is(err, ErrIncorrectCode) {
			t.Fatalf("attempt %d: expected ErrIncorrectCode, got %v", i+1, err)
		}
	}

	// the correct submission does not count as a failed attempt
	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); err != nil {
		t.Fatalf("expected correct code on 5th submission to succeed: %v", err)
	}
}

func TestRoleIsolation(t *testing.T) {
	svc, ledger, _, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0106"

	if _, err := ledger.IssueOrReplace(ctx, IssueParams{
		Phone:          phone,
		Role:           models.RoleDriver,
		HashedPassword: "x",
		Payload:        []byte(`{}`),
	}); err != nil {
		t.Fatalf("issue driver entry: %v", err)
	}

	// rider-role verification must not see the driver entry
	if _, err := svc.SubmitVerification(ctx, phone, "000000"); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected ErrNoPendingVerification, got %v", err)
	}

	if _, err := ledger.Lookup(ctx, phone, models.RoleDriver); err != nil {
		t.Fatalf("driver entry should be untouched: %v", err)
	}
}

func TestMaterializationRaceDeletesEntry(t *testing.T) {
	svc, ledger, accounts, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0107"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	accounts.createErr = ErrAccountExists
	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	if _, err := ledger.Lookup(ctx, phone, models.RoleUser); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected entry deleted after duplicate race, got %v", err)
	}
	if len(accounts.profiles) != 0 {
		t.Fatal("expected no partial profile records")
	}
}

func TestMaterializationFaultKeepsEntry(t *testing.T) {
	svc, ledger, accounts, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0108"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	accounts.createErr = errors.New("connection reset")
	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); !errors.Is(err, ErrAccountCreation) {
		t.Fatalf("expected ErrAccountCreation, got %v", err)
	}
	if len(accounts.accounts) != 0 || len(accounts.profiles) != 0 {
		t.Fatal("expected neither credential nor profile after rollback")
	}

	// entry survives so the client can resubmit once the store recovers
	accounts.createErr = nil
	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); err != nil {
		t.Fatalf("expected retry with same code to succeed: %v", err)
	}
	if _, err := ledger.Lookup(ctx, phone, models.RoleUser); !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("expected entry removed after successful retry, got %v", err)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	svc, _, _, tokens := newTestAuth(t)
	ctx := context.Background()
	phone := "+1 555 0109"

	result, err := svc.RequestSignup(ctx, signupRequest(phone))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.SubmitVerification(ctx, phone, result.VerificationCode); err != nil {
		t.Fatalf("verify: %v", err)
	}

	login, err := svc.Login(ctx, phone, "longenough1", models.RoleUser)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("login: expected token")
	}
	if login.Profile.Phone != phone {
		t.Fatalf("login: expected profile phone %q got %q", phone, login.Profile.Phone)
	}

	again, err := svc.Login(ctx, phone, "longenough1", models.RoleUser)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.Token != login.Token {
		t.Fatal("expected issue-or-reuse to return the same token")
	}

	if _, err := svc.Login(ctx, phone, "wrongpassword", models.RoleUser); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, phone, "longenough1", models.RoleDriver); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("expected ErrWrongRole for driver endpoint, got %v", err)
	}

	if err := svc.Logout(ctx, login.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := tokens.Resolve(ctx, login.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token rejected, got %v", err)
	}
	// revoking again is a no-op
	if err := svc.Logout(ctx, login.Token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestDriverLogin(t *testing.T) {
	svc, _, accounts, _ := newTestAuth(t)
	ctx := context.Background()
	phone := "+63 917 000 0003"

	// drivers are provisioned out-of-band; seed one directly
	hash, err := bcrypt.GenerateFromPassword([]byte("driverpass789"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, _, err := accounts.CreateAccountWithCredential(ctx, NewAccount{
		Phone:        phone,
		Email:        "driver.dan@example.com",
		Name:         "Driver Dan",
		PasswordHash: string(hash),
		Role:         models.RoleDriver,
	}); err != nil {
		t.Fatalf("provision driver: %v", err)
	}

	login, err := svc.Login(ctx, phone, "driverpass789", models.RoleDriver)
	if err != nil {
		t.Fatalf("driver login: %v", err)
	}
	if login.Profile.Role != models.RoleDriver {
		t.Fatalf("expected driver role, got %q", login.Profile.Role)
	}

	// and the rider endpoint turns the driver away
	if _, err := svc.Login(ctx, phone, "driverpass789", models.RoleUser); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("expected ErrWrongRole on rider endpoint, got %v", err)
	}
}

func TestLoginThrottled(t *testing.T) {
	ledger := newFakeLedger()
	accounts := newFakeAccounts()
	tokens := newFakeTokens(accounts)
	cfg := testConfig()
	cfg.LoginMaxAttempts = 3
	svc := NewAuthService(cfg, ledger, accounts, tokens, nopDelivery{}, NewMemoryCounterStore())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, "+1 555 0110", "nope", models.RoleUser); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := svc.Login(ctx, "+1 555 0110", "nope", models.RoleUser); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled, got %v", err)
	}
	// other phones are unaffected
	if _, err := svc.Login(ctx, "+1 555 0111", "nope", models.RoleUser); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected separate counter per phone, got %v", err)
	}
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

// --- fakes ---

type nopDelivery struct{}

func (nopDelivery) Deliver(context.Context, string, string) error { return nil }

type fakeLedger struct {
	mu          sync.Mutex
	entries     map[string]*models.PhoneVerification
	ttl         time.Duration
	maxAttempts int
	nextCode    func() (string, error)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		entries:     make(map[string]*models.PhoneVerification),
		ttl:         10 * time.Minute,
		maxAttempts: 5,
		nextCode:    GenerateCode,
	}
}

func ledgerKey(phone, role string) string { return phone + "|" + role }

func (l *fakeLedger) IssueOrReplace(_ context.Context, p IssueParams) (*models.PhoneVerification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	code, err := l.nextCode()
	if err != nil {
		return nil, err
	}
	entry := &models.PhoneVerification{
		ID:             uuid.New(),
		Phone:          p.Phone,
		Role:           p.Role,
		Code:           code,
		HashedPassword: p.HashedPassword,
		Payload:        datatypes.JSON(p.Payload),
		Attempts:       0,
		ExpiresAt:      time.Now().Add(l.ttl),
		CreatedAt:      time.Now(),
	}
	l.entries[ledgerKey(p.Phone, p.Role)] = entry
	copied := *entry
	return &copied, nil
}

func (l *fakeLedger) Lookup(_ context.Context, phone, role string) (*models.PhoneVerification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ledgerKey(phone, role)]
	if !ok {
		return nil, ErrNoPendingVerification
	}
	copied := *entry
	return &copied, nil
}

func (l *fakeLedger) RecordFailedAttempt(_ context.Context, v *models.PhoneVerification) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ledgerKey(v.Phone, v.Role)]
	if !ok || entry.ID != v.ID {
		return 0, ErrTooManyAttempts
	}
	entry.Attempts++
	if entry.Attempts >= l.maxAttempts {
		delete(l.entries, ledgerKey(v.Phone, v.Role))
		return 0, ErrTooManyAttempts
	}
	return l.maxAttempts - entry.Attempts, nil
}

func (l *fakeLedger) Delete(_ context.Context, v *models.PhoneVerification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(v.Phone, v.Role)
	if entry, ok := l.entries[key]; ok && entry.ID == v.ID {
		delete(l.entries, key)
	}
	return nil
}

func (l *fakeLedger) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var reaped int64
	for key, entry := range l.entries {
		if entry.Expired(now) {
			delete(l.entries, key)
			reaped++
		}
	}
	return reaped, nil
}

type fakeAccounts struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account // by phone
	byID      map[uuid.UUID]*models.Account
	profiles  map[uuid.UUID]*models.MobileProfile // by account id
	createErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		accounts: make(map[string]*models.Account),
		byID:     make(map[uuid.UUID]*models.Account),
		profiles: make(map[uuid.UUID]*models.MobileProfile),
	}
}

func (f *fakeAccounts) FindByPhone(_ context.Context, phone string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[phone]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeAccounts) PhoneRegistered(_ context.Context, phone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, profile := range f.profiles {
		if profile.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccounts) EmailRegistered(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccounts) CreateAccountWithCredential(_ context.Context, p NewAccount) (*models.Account, *models.MobileProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	if _, exists := f.accounts[p.Phone]; exists {
		return nil, nil, ErrAccountExists
	}

	account := &models.Account{
		ID:           uuid.New(),
		Phone:        p.Phone,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		CreatedAt:    time.Now(),
	}
	profile := &models.MobileProfile{
		ID:              uuid.New(),
		AccountID:       account.ID,
		Role:            p.Role,
		Name:            p.Name,
		Phone:           p.Phone,
		IsPhoneVerified: true,
		CreatedAt:       time.Now(),
	}
	f.accounts[p.Phone] = account
	f.byID[account.ID] = account
	f.profiles[account.ID] = profile
	return account, profile, nil
}

func (f *fakeAccounts) ProfileByAccountID(_ context.Context, accountID uuid.UUID) (*models.MobileProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[accountID]
	if !ok {
		return nil, ErrProfileMissing
	}
	return profile, nil
}

type fakeTokens struct {
	mu        sync.Mutex
	byKey     map[string]uuid.UUID
	byAccount map[uuid.UUID]string
	accounts  *fakeAccounts
}

func newFakeTokens(accounts *fakeAccounts) *fakeTokens {
	return &fakeTokens{
		byKey:     make(map[string]uuid.UUID),
		byAccount: make(map[uuid.UUID]string),
		accounts:  accounts,
	}
}

func (f *fakeTokens) IssueOrReuse(_ context.Context, accountID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if key, ok := f.byAccount[accountID]; ok {
		return key, nil
	}
	key, err := GenerateTokenKey()
	if err != nil {
		return "", err
	}
	f.byKey[key] = accountID
	f.byAccount[accountID] = key
	return key, nil
}

func (f *fakeTokens) Revoke(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if accountID, ok := f.byKey[key]; ok {
		delete(f.byKey, key)
		delete(f.byAccount, accountID)
	}
	return nil
}

func (f *fakeTokens) Resolve(ctx context.Context, key string) (*models.Account, *models.MobileProfile, error) {
	f.mu.Lock()
	accountID, ok := f.byKey[key]
	f.mu.Unlock()
	if !ok {
		return nil, nil, ErrInvalidToken
	}

	f.accounts.mu.Lock()
	account, ok := f.accounts.byID[accountID]
	f.accounts.mu.Unlock()
	if !ok {
		return nil, nil, ErrInvalidToken
	}

	profile, err := f.accounts.ProfileByAccountID(ctx, accountID)
	if err != nil {
		return account, nil, nil
	}
	return account, profile, nil
}
