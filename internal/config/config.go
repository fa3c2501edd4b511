package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the typed view of the process environment
type Config struct {
	Environment string
	Port        string
	LogLevel    string
	LogFile     string
	LogJSON     bool

	// Public base URL of the API, used for OAuth callbacks and email links
	BaseURL string
	// Web client origin(s) allowed by CORS, comma separated in env
	AllowedOrigins []string
	// Where social login redirects after success
	WebAppURL string

	Database DatabaseConfig
	Session  SessionConfig
	OAuth    OAuthConfig
	AWS      AWSConfig
	Stream   StreamConfig
	Redis    RedisConfig
	Search   SearchConfig
	AI       AIConfig
	Tracing  TracingConfig

	// Requests per minute per client for the global limiter
	RateLimitPerMinute int
}

// DatabaseConfig selects the gorm dialect and DSN
type DatabaseConfig struct {
	Driver string // postgres or sqlite
	URL    string
}

// SessionConfig controls the session cookie and token
type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
	Domain     string
}

// AWSConfig holds object storage and email settings
type AWSConfig struct {
	Region      string
	Bucket      string
	CDNBaseURL  string
	SESFrom     string
	SESFromName string
}

// StreamConfig holds GetStream credentials
type StreamConfig struct {
	APIKey    string
	APISecret string
}

// RedisConfig holds the Redis address
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// SearchConfig holds the Elasticsearch endpoint
type SearchConfig struct {
	URL string
}

// AIConfig holds the caption generation endpoint settings
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
}

// Load reads .env (if present) and the environment. Only SESSION_SECRET is
// mandatory; everything else has a development default or disables the
// integration it configures.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnvOrDefault("ENVIRONMENT", "development")
	cfg := &Config{
		Environment:        env,
		Port:               getEnvOrDefault("PORT", "8787"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
		LogJSON:            isTruthy(os.Getenv("LOG_JSON")),
		BaseURL:            strings.TrimSuffix(getEnvOrDefault("BASE_URL", "http://localhost:8787"), "/"),
		AllowedOrigins:     splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		WebAppURL:          strings.TrimSuffix(getEnvOrDefault("WEB_APP_URL", "http://localhost:3000"), "/"),
		RateLimitPerMinute: getIntOrDefault("RATE_LIMIT_PER_MINUTE", 300),
		Database: DatabaseConfig{
			Driver: getEnvOrDefault("DATABASE_DRIVER", "postgres"),
			URL:    databaseURL(),
		},
		Session: SessionConfig{
			Secret:     os.Getenv("SESSION_SECRET"),
			CookieName: getEnvOrDefault("SESSION_COOKIE_NAME", "tt_session"),
			TTL:        getDurationOrDefault("SESSION_TTL", 24*time.Hour),
			Secure:     env == "production",
			Domain:     os.Getenv("SESSION_COOKIE_DOMAIN"),
		},
		AWS: AWSConfig{
			Region:      getEnvOrDefault("AWS_REGION", "us-east-1"),
			Bucket:      os.Getenv("AWS_BUCKET"),
			CDNBaseURL:  os.Getenv("CDN_BASE_URL"),
			SESFrom:     os.Getenv("SES_FROM_EMAIL"),
			SESFromName: getEnvOrDefault("SES_FROM_NAME", "Travel Tweets"),
		},
		Stream: StreamConfig{
			APIKey:    os.Getenv("STREAM_API_KEY"),
			APISecret: os.Getenv("STREAM_API_SECRET"),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Search: SearchConfig{
			URL: os.Getenv("ELASTICSEARCH_URL"),
		},
		AI: AIConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: getEnvOrDefault("AI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnvOrDefault("AI_MODEL", "gpt-4o-mini"),
			Timeout: getDurationOrDefault("AI_TIMEOUT", 30*time.Second),
		},
		Tracing: TracingConfig{
			Enabled:      isTruthy(os.Getenv("OTEL_ENABLED")),
			Endpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SamplingRate: getFloatOrDefault("OTEL_SAMPLING_RATE", 1.0),
		},
	}
	cfg.OAuth = LoadOAuthConfig(cfg.BaseURL)

	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable not set")
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("DATABASE_DRIVER") == "sqlite" {
		return getEnvOrDefault("SQLITE_PATH", "traveltweets.db")
	}

	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "")
	dbname := getEnvOrDefault("DB_NAME", "traveltweets")
	sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
