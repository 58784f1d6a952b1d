// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Documents DocumentConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port      int    `envconfig:"PORT" default:"8080"`
	BaseURL   string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

type DBConfig struct {
	Path string `envconfig:"DB_PATH" default:"data/videohub.db"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// CookieHashKey signs the edit token and pending verification cookies.
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY" required:"true"`
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"`
	SecureCookies  bool   `envconfig:"SECURE_COOKIES" default:"false"`
	// AdminEmails is comma separated; matching accounts become admins.
	AdminEmails        []string `envconfig:"ADMIN_EMAILS"`
	GitHubClientID     string   `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string   `envconfig:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string   `envconfig:"GITHUB_CALLBACK_URL"`
}

// GitHubEnabled reports whether both OAuth credentials are set.
func (c AuthConfig) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// IsAdminEmail compares case-insensitively.
func (c AuthConfig) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

type SchedulerConfig struct {
	Workers   int `envconfig:"SCHEDULER_WORKERS" default:"4"`
	QueueSize int `envconfig:"SCHEDULER_QUEUE_SIZE" default:"64"`
}

type DocumentConfig struct {
	UploadDir        string        `envconfig:"UPLOAD_DIR" default:"data/pdfs"`
	MaxUploadBytes   int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	Extractor        string        `envconfig:"EXTRACTOR" default:"native"`
	ExtractorImage   string        `envconfig:"EXTRACTOR_IMAGE" default:"minidocks/poppler:latest"`
	ExtractorTimeout time.Duration `envconfig:"EXTRACTOR_TIMEOUT" default:"60s"`
	ExtractorPool    int           `envconfig:"EXTRACTOR_POOL_SIZE" default:"2"`
	WebhookURL       string        `envconfig:"DOCUMENT_WEBHOOK_URL"`
	WebhookToken     string        `envconfig:"DOCUMENT_WEBHOOK_TOKEN"`
}

type MailConfig struct {
	From string `envconfig:"MAIL_FROM" default:"no-reply@videohub.local"`
}

type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	sections := []struct {
		name string
		dst  any
	}{
		{"server", &cfg.Server},
		{"db", &cfg.DB},
		{"auth", &cfg.Auth},
		{"scheduler", &cfg.Scheduler},
		{"documents", &cfg.Documents},
		{"mail", &cfg.Mail},
		{"rate limit", &cfg.RateLimit},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.dst); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
	}

	if cfg.Auth.GitHubCallbackURL == "" {
		cfg.Auth.GitHubCallbackURL = strings.TrimRight(cfg.Server.BaseURL, "/") + "/auth/github/callback"
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if _, err := c.Server.Level(); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if len(c.Auth.CookieHashKey) < 32 {
		return fmt.Errorf("COOKIE_HASH_KEY must be at least 32 characters")
	}
	switch len(c.Auth.CookieBlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("COOKIE_BLOCK_KEY must be 16, 24 or 32 characters")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("SCHEDULER_WORKERS must be positive")
	}
	if c.Scheduler.QueueSize <= 0 {
		return fmt.Errorf("SCHEDULER_QUEUE_SIZE must be positive")
	}
	if c.Documents.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	switch c.Documents.Extractor {
	case "native", "docker":
	default:
		return fmt.Errorf("EXTRACTOR must be native or docker, got %q", c.Documents.Extractor)
	}
	if c.Documents.Extractor == "docker" && c.Documents.ExtractorPool <= 0 {
		return fmt.Errorf("EXTRACTOR_POOL_SIZE must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// Level parses LOG_LEVEL.
func (c ServerConfig) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
