package contactguard

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// LoadConfigFromEnv builds a [Config] and Redis options from the process
// environment, loading a .env file first when one exists.
//
// Recognized variables:
//
//	SECRET_KEY_ACCESS, SECRET_KEY_REFRESH, SECRET_KEY_EMAIL  (required)
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//	ACCESS_TTL, REFRESH_TTL, EMAIL_TTL            (Go durations)
//	RATE_LIMIT_CEILING, RATE_LIMIT_WINDOW
//	RATE_LIMIT_POLICY, REVOCATION_POLICY          ("open" or "closed")
//	CACHE_TTL, CACHE_WINDOW_DAYS
//	STORE_TIMEOUT
//
// Unset variables keep their [DefaultConfig] values. Secret values are
// returned inside Config and must never be logged.
func LoadConfigFromEnv() (Config, *redis.Options, error) {
	// Missing .env is fine; system environment wins either way.
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()

	cfg.Token.AccessSecret = []byte(os.Getenv("SECRET_KEY_ACCESS"))
	cfg.Token.RefreshSecret = []byte(os.Getenv("SECRET_KEY_REFRESH"))
	cfg.Token.EmailSecret = []byte(os.Getenv("SECRET_KEY_EMAIL"))

	var err error
	if cfg.Token.AccessTTL, err = envDuration("ACCESS_TTL", cfg.Token.AccessTTL); err != nil {
		return Config{}, nil, err
	}
	if cfg.Token.RefreshTTL, err = envDuration("REFRESH_TTL", cfg.Token.RefreshTTL); err != nil {
		return Config{}, nil, err
	}
	if cfg.Token.EmailTTL, err = envDuration("EMAIL_TTL", cfg.Token.EmailTTL); err != nil {
		return Config{}, nil, err
	}
	if cfg.RateLimit.Ceiling, err = envInt("RATE_LIMIT_CEILING", cfg.RateLimit.Ceiling); err != nil {
		return Config{}, nil, err
	}
	if cfg.RateLimit.Window, err = envDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window); err != nil {
		return Config{}, nil, err
	}
	if cfg.RateLimit.Policy, err = envPolicy("RATE_LIMIT_POLICY", cfg.RateLimit.Policy); err != nil {
		return Config{}, nil, err
	}
	if cfg.Revocation.Policy, err = envPolicy("REVOCATION_POLICY", cfg.Revocation.Policy); err != nil {
		return Config{}, nil, err
	}
	if cfg.Cache.TTL, err = envDuration("CACHE_TTL", cfg.Cache.TTL); err != nil {
		return Config{}, nil, err
	}
	if cfg.Cache.WindowDays, err = envInt("CACHE_WINDOW_DAYS", cfg.Cache.WindowDays); err != nil {
		return Config{}, nil, err
	}
	if cfg.StoreTimeout, err = envDuration("STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return Config{}, nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, nil, err
	}

	opts := &redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.DB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, nil, err
	}

	return cfg, opts, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return d, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return n, nil
}

func envPolicy(name string, fallback FailurePolicy) (FailurePolicy, error) {
	switch os.Getenv(name) {
	case "":
		return fallback, nil
	case "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	default:
		return 0, fmt.Errorf("invalid %s: want \"open\" or \"closed\"", name)
	}
}
