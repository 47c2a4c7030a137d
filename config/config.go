package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// ClientConfig drives the session layer: sessionctl and the portal.
type ClientConfig struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	AuthBaseURL     string `env:"AUTH_BASE_URL"     envDefault:"http://localhost:8080" validate:"required,url"`
	CredentialsPath string `env:"CREDENTIALS_PATH"`
	HTTPTimeoutSec  int    `env:"HTTP_TIMEOUT_SEC"  envDefault:"10" validate:"min=1,max=120"`
	RefreshSkewSec  int    `env:"REFRESH_SKEW_SEC"  envDefault:"30" validate:"min=0,max=3600"`
	RefreshCheckSec int    `env:"REFRESH_CHECK_SEC" envDefault:"15" validate:"min=1,max=3600"`

	PortalPort  string `env:"PORTAL_PORT"  envDefault:"3000" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9091"`

	HomePath         string `env:"HOME_PATH"         envDefault:"/"             validate:"startswith=/"`
	LoginPath        string `env:"LOGIN_PATH"        envDefault:"/login"        validate:"startswith=/"`
	UnauthorizedPath string `env:"UNAUTHORIZED_PATH" envDefault:"/unauthorized" validate:"startswith=/,nefield=LoginPath"`
	DashboardPath    string `env:"DASHBOARD_PATH"    envDefault:"/dashboard"    validate:"startswith=/"`
}

// ServerConfig drives the development auth service.
type ServerConfig struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret     string `env:"JWT_SECRET,required"   validate:"required,min=32"`
	ResendAPIKey  string `env:"RESEND_API_KEY"         validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom    string `env:"RESEND_FROM"            validate:"required_if=Env production,required_if=Env staging"`
	MagicLinkBase string `env:"MAGIC_LINK_BASE_URL"    envDefault:"http://localhost:3000"`

	MagicLinkTTLMin int    `env:"MAGIC_LINK_TTL_MIN" envDefault:"15"         validate:"min=1,max=1440"`
	AccessTTLMin    int    `env:"ACCESS_TTL_MIN"     envDefault:"15"         validate:"min=1,max=1440"`
	RefreshTTLHours int    `env:"REFRESH_TTL_HOURS"  envDefault:"720"        validate:"min=1"`
	TokenPurgeCron  string `env:"TOKEN_PURGE_CRON"   envDefault:"*/10 * * * *" validate:"required"`
}

func LoadClient() (*ClientConfig, error) {
	return load(&ClientConfig{})
}

func LoadServer() (*ServerConfig, error) {
	return load(&ServerConfig{})
}

func load[T any](cfg *T) (*T, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *ClientConfig) SlogLevel() slog.Level { return parseLevel(c.LogLevel) }

func (c *ServerConfig) SlogLevel() slog.Level { return parseLevel(c.LogLevel) }

func (c *ClientConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *ClientConfig) RefreshSkew() time.Duration {
	return time.Duration(c.RefreshSkewSec) * time.Second
}

func (c *ClientConfig) RefreshCheckInterval() time.Duration {
	return time.Duration(c.RefreshCheckSec) * time.Second
}

// CredentialsFile falls back to <user config dir>/safejob/credentials.json.
func (c *ClientConfig) CredentialsFile() (string, error) {
	if c.CredentialsPath != "" {
		return c.CredentialsPath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "safejob", "credentials.json"), nil
}

func (c *ServerConfig) MagicLinkTTL() time.Duration {
	return time.Duration(c.MagicLinkTTLMin) * time.Minute
}

func (c *ServerConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

func (c *ServerConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLHours) * time.Hour
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
