package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// OTP verification
	VerificationTTL time.Duration
	MaxAttempts     int

	// ExposeVerificationCode returns the OTP in the signup response instead of
	// relying on SMS delivery. Development stand-in only; forced off when
	// APP_ENV=production.
	ExposeVerificationCode bool

	// Login rate limiting (per-phone counter with TTL)
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Logging
	LogRetentionDays int

	// Server
	AppEnv      string
	Port        string
	CORSOrigins string
}

func Load() *Config {
	// Best-effort .env loading for local development.
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "sakayhub_mobile"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		VerificationTTL:        parseDuration(getEnv("VERIFICATION_TTL", "10m"), 10*time.Minute),
		MaxAttempts:            parseInt(getEnv("VERIFICATION_MAX_ATTEMPTS", "5"), 5),
		ExposeVerificationCode: parseBool(getEnv("EXPOSE_VERIFICATION_CODE", "true")),

		LoginMaxAttempts: parseInt(getEnv("LOGIN_MAX_ATTEMPTS", "10"), 10),
		LoginWindow:      parseDuration(getEnv("LOGIN_WINDOW", "15m"), 15*time.Minute),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),

		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}

	if cfg.AppEnv == "production" {
		cfg.ExposeVerificationCode = false
	}

	return cfg
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
