// Package config содержит логику чтения конфигурации сервиса WashWise.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/subosito/gotenv"
)

// Config содержит параметры конфигурации сервиса WashWise.
type Config struct {
	RunAddress  string        `env:"RUN_ADDRESS"`
	DatabaseURI string        `env:"DATABASE_URI"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"30m"`
	FrontendURL string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailgunDomain string `env:"MAILGUN_DOMAIN"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	QRDir          string `env:"QR_DIR" envDefault:"qr_codes"`
	CatalogFile    string `env:"CATALOG_FILE"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile        string `env:"LOG_FILE"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	NotifyWorkers  int    `env:"NOTIFY_WORKERS" envDefault:"4"`
}

// Parse считывает конфигурацию из файла .env, переменных окружения и флагов
// командной строки. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret for signing bearer tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// MailgunConfigured сообщает, заданы ли параметры Mailgun.
func (c *Config) MailgunConfigured() bool {
	return c.MailgunAPIKey != "" && c.MailgunDomain != ""
}

// SMTPConfigured сообщает, задан ли SMTP-сервер.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}
