package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sakayhub/mobile-api/internal/dto"
	"github.com/sakayhub/mobile-api/internal/services"
)

// Context keys set by TokenRequired for downstream handlers.
const (
	LocalAccount  = "account"
	LocalProfile  = "profile"
	LocalTokenKey = "tokenKey"
)

// ParseTokenKey extracts the opaque key from an Authorization header. Both
// "Bearer <key>" and "Token <key>" are accepted; mobile clients built against
// the original API send the latter.
func ParseTokenKey(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 {
		return ""
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "bearer" && scheme != "token" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// TokenRequired resolves the bearer token against the token store and stashes
// the account, its profile (possibly nil) and the raw key in request locals.
func TokenRequired(tokens services.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := ParseTokenKey(c.Get(fiber.HeaderAuthorization))
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Detail: "Authentication credentials were not provided.",
			})
		}

		account, profile, err := tokens.Resolve(c.UserContext(), key)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Detail: "Invalid token.",
			})
		}

		c.Locals(LocalAccount, account)
		c.Locals(LocalProfile, profile)
		c.Locals(LocalTokenKey, key)
		return c.Next()
	}
}
