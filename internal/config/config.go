package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate sources accepted in RATE_SOURCE.
const (
	RateSourceYahoo  = "yahoo"
	RateSourceStatic = "static"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Auth
	APIKey           string
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Currency
	BaseCurrency        string
	RateStaleness       time.Duration
	RateRefreshInterval time.Duration
	RateSource          string
	RateSourceURL       string
	RequestTimeout      time.Duration

	// Location used to bucket transactions into calendar days.
	Location *time.Location
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		APIKey:    os.Getenv("API_KEY"),
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		BaseCurrency:  strings.ToUpper(getEnv("BASE_CURRENCY", "USD")),
		RateSource:    strings.ToLower(getEnv("RATE_SOURCE", RateSourceYahoo)),
		RateSourceURL: os.Getenv("RATE_SOURCE_URL"),
	}

	var err error
	if cfg.JWTExpirationDur, err = parseDuration("JWT_EXPIRES_IN", "24h"); err != nil {
		return nil, err
	}
	if cfg.RateStaleness, err = parseDuration("RATE_STALENESS", "1h"); err != nil {
		return nil, err
	}
	if cfg.RateRefreshInterval, err = parseDuration("RATE_REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	tz := getEnv("TIMEZONE", "Local")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	switch cfg.RateSource {
	case RateSourceYahoo, RateSourceStatic:
	default:
		return nil, fmt.Errorf("unsupported RATE_SOURCE %q (use yahoo or static)", cfg.RateSource)
	}

	if len(cfg.BaseCurrency) < 3 {
		return nil, fmt.Errorf("invalid BASE_CURRENCY %q", cfg.BaseCurrency)
	}

	return cfg, nil
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	s := getEnv(key, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
