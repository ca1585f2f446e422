package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sakayhub/mobile-api/internal/handlers"
	"github.com/sakayhub/mobile-api/internal/middleware"
	"github.com/sakayhub/mobile-api/internal/services"
)

func Setup(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	tokens services.TokenIssuer,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Signup and login are throttled harder at the transport level; the login
	// service adds its own per-phone counter on top.
	authLimiter := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})

	users := api.Group("/users")
	users.Post("/signup", authLimiter, authHandler.Signup)
	users.Post("/verify", authLimiter, authHandler.Verify)
	users.Post("/login", authLimiter, authHandler.UserLogin)
	users.Post("/logout", middleware.TokenRequired(tokens), authHandler.Logout)
	users.Get("/me", middleware.TokenRequired(tokens), authHandler.UserMe)

	drivers := api.Group("/drivers")
	drivers.Post("/login", authLimiter, authHandler.DriverLogin)
	drivers.Get("/me", middleware.TokenRequired(tokens), authHandler.DriverMe)
}
