package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerAddr  string `envconfig:"SERVER_ADDR" default:":3000"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:""`
	RateLimit   int    `envconfig:"RATE_LIMIT" default:"60"` // requests per minute per client on /api
	RedisURL    string `envconfig:"REDIS_URL" default:""`   // shared rate-limit storage; in-memory when empty

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	// Google OAuth client used to refresh Search Console tokens
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`

	// Audit workers
	AuditWorkers     int           `envconfig:"AUDIT_WORKERS" default:"2"`
	AuditQueueSize   int           `envconfig:"AUDIT_QUEUE_SIZE" default:"64"`
	AuditTimeout     time.Duration `envconfig:"AUDIT_TIMEOUT" default:"10m"`
	ScheduleEnabled  bool          `envconfig:"SCHEDULE_ENABLED" default:"false"`
	ScheduleInterval time.Duration `envconfig:"SCHEDULE_INTERVAL" default:"24h"`

	TuningFile string `envconfig:"TUNING_FILE" default:"tuning.yaml"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from path (".env" when empty) without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges that envconfig cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.AuditWorkers < 1 {
		return fmt.Errorf("AUDIT_WORKERS must be >= 1")
	}
	if c.AuditQueueSize < 1 {
		return fmt.Errorf("AUDIT_QUEUE_SIZE must be >= 1")
	}
	if c.AuditTimeout <= 0 {
		return fmt.Errorf("AUDIT_TIMEOUT must be positive")
	}
	if c.ScheduleEnabled && c.ScheduleInterval < time.Minute {
		return fmt.Errorf("SCHEDULE_INTERVAL must be at least 1m")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must be >= 0")
	}
	return nil
}

// IsDev returns true if the environment is local or development.
func (c *Config) IsDev() bool {
	switch strings.ToLower(c.Environment) {
	case "local", "development", "dev":
		return true
	}
	return false
}

// CORSOriginsList splits CORS_ORIGINS into trimmed, de-duplicated origins.
func (c *Config) CORSOriginsList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
