package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"civichero-be/lifecycle"
)

// Config holds process configuration read once at startup.
type Config struct {
	Env    string
	Port   string
	Domain string

	MongoURI      string
	MongoDatabase string

	RedisAddress     string
	RedisPassword    string
	IssueLimitPrefix string
	IssueDailyLimit  int

	JWTSecret  string
	SessionTTL time.Duration

	XPResolveAward  int
	LoginRatePerMin int

	ChangeFeed string
	NATSURL    string

	CORSOrigins   []string
	PublicBaseURL string
}

// Production reports whether GO_ENV is production.
func (c *Config) Production() bool { return c.Env == "production" }

// Load reads a .env file when present and then the environment.
// Missing required variables are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("GO_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		Domain:           os.Getenv("DOMAIN"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "mydb"),
		RedisAddress:     getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		IssueLimitPrefix: getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		ChangeFeed:       strings.ToLower(getEnv("CHANGE_FEED", "redis")),
		NATSURL:          getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		PublicBaseURL:    strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
	}

	var missing []string
	if cfg.MongoURI == "" {
		missing = append(missing, "MONGODB_URI")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.XPResolveAward, err = getInt("XP_RESOLVE_AWARD", lifecycle.DefaultResolveAward); err != nil {
		return nil, err
	}
	if cfg.XPResolveAward < 0 {
		return nil, fmt.Errorf("XP_RESOLVE_AWARD must not be negative")
	}
	if cfg.IssueDailyLimit, err = getInt("ISSUE_DAILY_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.LoginRatePerMin, err = getInt("LOGIN_RATE_PER_MIN", 10); err != nil {
		return nil, err
	}

	switch cfg.ChangeFeed {
	case "redis", "nats":
	default:
		return nil, fmt.Errorf("CHANGE_FEED must be redis or nats, got %q", cfg.ChangeFeed)
	}

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
