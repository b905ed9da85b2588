package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

var ErrUnknownTransport = errors.New("unknown contact transport")

const (
	TransportSMTP         = "smtp"
	TransportMailto       = "mailto"
	TransportSMTPFallback = "smtp+mailto"
)

// Config is read from the environment, with a .env file loaded first when
// one is present.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	GinMode      string `env:"GIN_MODE" envDefault:"release"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"portfolio.db"`
	CatalogPath  string `env:"CATALOG_PATH"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	SMTPHost         string        `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort         string        `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string        `env:"SMTP_USER"`
	SMTPPass         string        `env:"SMTP_PASS"`
	ContactTo        string        `env:"TO_EMAIL"`
	ContactTransport string        `env:"CONTACT_TRANSPORT" envDefault:"mailto"`
	ContactTimeout   time.Duration `env:"CONTACT_TIMEOUT" envDefault:"10s"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	AnalyticsRetention time.Duration `env:"ANALYTICS_RETENTION" envDefault:"8760h"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.ContactTransport {
	case TransportSMTP, TransportSMTPFallback:
		if c.SMTPUser == "" || c.SMTPPass == "" {
			return fmt.Errorf("contact transport %q: %w", c.ContactTransport, ErrSMTPNotConfigured)
		}
	case TransportMailto:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.ContactTransport)
	}
	if c.ContactTimeout <= 0 {
		return fmt.Errorf("CONTACT_TIMEOUT must be positive, got %s", c.ContactTimeout)
	}
	if c.AnalyticsRetention < 0 {
		return fmt.Errorf("ANALYTICS_RETENTION must not be negative, got %s", c.AnalyticsRetention)
	}
	return nil
}

// AdminEnabled reports whether admin credentials were configured. There is
// no built-in default password.
func (c Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

func (c Config) Addr() string { return ":" + c.Port }

func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
