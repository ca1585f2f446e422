package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakayhub/mobile-api/internal/dto"
	"github.com/sakayhub/mobile-api/internal/middleware"
	"github.com/sakayhub/mobile-api/internal/models"
	"github.com/sakayhub/mobile-api/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if fieldErrs := dto.Validate(req); len(fieldErrs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: "Invalid signup request.",
			Errors: fieldErrs,
		})
	}

	result, err := h.auth.RequestSignup(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPhoneTaken):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Detail: "Invalid signup request.",
				Errors: []dto.FieldError{{Field: "phone", Message: "Phone number already registered."}},
			})
		case errors.Is(err, services.ErrEmailTaken):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Detail: "Invalid signup request.",
				Errors: []dto.FieldError{{Field: "email", Message: "Email already in use."}},
			})
		}
		return serverError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SignupResponse{
		Detail:           "Verification code sent.",
		VerificationCode: result.VerificationCode,
		ExpiresInMinutes: result.ExpiresInMinutes,
	})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if fieldErrs := dto.Validate(req); len(fieldErrs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Detail: "Invalid verification request.",
			Errors: fieldErrs,
		})
	}

	profile, err := h.auth.SubmitVerification(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoPendingVerification):
			return badRequest(c, "No pending verification for this phone number.")
		case errors.Is(err, services.ErrCodeExpired):
			return badRequest(c, "Verification code expired. Please request a new one.")
		case errors.Is(err, services.ErrTooManyAttempts):
			return badRequest(c, "Too many incorrect attempts. Start over.")
		case errors.Is(err, services.ErrIncorrectCode):
			var incorrect *services.IncorrectCodeError
			resp := dto.ErrorResponse{Detail: "Incorrect verification code."}
			if errors.As(err, &incorrect) {
				resp.AttemptsRemaining = &incorrect.Remaining
			}
			return c.Status(fiber.StatusBadRequest).JSON(resp)
		case errors.Is(err, services.ErrAccountExists):
			return badRequest(c, "Account already exists.")
		case errors.Is(err, services.ErrAccountCreation):
			return badRequest(c, "Unable to create account with provided details.")
		}
		return serverError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (h *AuthHandler) UserLogin(c *fiber.Ctx) error {
	result, err := h.login(c, models.RoleUser)
	if err != nil {
		return h.loginError(c, err, models.RoleUser)
	}
	return c.JSON(dto.UserLoginResponse{Token: result.Token, User: result.Profile})
}

func (h *AuthHandler) DriverLogin(c *fiber.Ctx) error {
	result, err := h.login(c, models.RoleDriver)
	if err != nil {
		return h.loginError(c, err, models.RoleDriver)
	}
	return c.JSON(dto.DriverLoginResponse{Token: result.Token, Driver: result.Profile})
}

func (h *AuthHandler) login(c *fiber.Ctx, role string) (*services.LoginResult, error) {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errBadBody
	}
	if fieldErrs := dto.Validate(req); len(fieldErrs) > 0 {
		return nil, errBadBody
	}
	return h.auth.Login(c.UserContext(), req.Phone, req.Password, role)
}

var errBadBody = errors.New("bad request body")

func (h *AuthHandler) loginError(c *fiber.Ctx, err error, role string) error {
	switch {
	case errors.Is(err, errBadBody):
		return badRequest(c, "Phone and password are required.")
	case errors.Is(err, services.ErrLoginThrottled):
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Detail: "Too many login attempts. Try again later.",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		return badRequest(c, "Invalid phone number or password.")
	case errors.Is(err, services.ErrProfileMissing):
		if role == models.RoleDriver {
			return badRequest(c, "Driver account not found.")
		}
		return badRequest(c, "Mobile account not found.")
	case errors.Is(err, services.ErrWrongRole):
		if role == models.RoleDriver {
			return forbidden(c, "Please use the rider app to sign in.")
		}
		return forbidden(c, "Please use the driver app to sign in.")
	}
	return serverError(c, err)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	key, _ := c.Locals(middleware.LocalTokenKey).(string)
	if err := h.auth.Logout(c.UserContext(), key); err != nil {
		return serverError(c, err)
	}
	return c.JSON(dto.DetailResponse{Detail: "Logged out."})
}

func (h *AuthHandler) UserMe(c *fiber.Ctx) error {
	return h.me(c, models.RoleUser, "Driver token cannot access rider info.")
}

func (h *AuthHandler) DriverMe(c *fiber.Ctx) error {
	return h.me(c, models.RoleDriver, "Rider token cannot access driver info.")
}

func (h *AuthHandler) me(c *fiber.Ctx, role, wrongRoleDetail string) error {
	account, _ := c.Locals(middleware.LocalAccount).(*models.Account)
	profile, _ := c.Locals(middleware.LocalProfile).(*models.MobileProfile)
	if profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Detail: "Mobile profile missing.",
		})
	}
	if profile.Role != role {
		return forbidden(c, wrongRoleDetail)
	}
	return c.JSON(services.PublicProfile(account, profile))
}

func badRequest(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Detail: detail})
}

func forbidden(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Detail: detail})
}

func serverError(c *fiber.Ctx, err error) error {
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
