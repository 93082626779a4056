// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DBPath         string        `env:"INTAKE_DB" envDefault:"intake.db"`
	Addr           string        `env:"INTAKE_ADDR" envDefault:":8080"`
	SubmitLatency  time.Duration `env:"INTAKE_SUBMIT_LATENCY" envDefault:"1500ms"`
	CatalogPath    string        `env:"INTAKE_CATALOG"`
	AllowedOrigins []string      `env:"INTAKE_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,https://trigonal.dev"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	Enrich  EnrichConfig
	Email   EmailConfig
	Drafter DrafterConfig
}

// EnrichConfig controls organization lookups
type EnrichConfig struct {
	Enabled bool          `env:"ENRICH_ENABLED" envDefault:"false"`
	Timeout time.Duration `env:"ENRICH_TIMEOUT" envDefault:"5s"`
}

// EmailConfig holds Mailgun settings and the architects notified of new briefs
type EmailConfig struct {
	MailgunDomain string   `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string   `env:"MAILGUN_API_KEY"`
	FromEmail     string   `env:"EMAIL_FROM_ADDRESS" envDefault:"intake@trigonal.dev"`
	FromName      string   `env:"EMAIL_FROM_NAME" envDefault:"Trigonal Intake"`
	Architects    []string `env:"ARCHITECT_EMAILS" envSeparator:","`
}

// IsConfigured reports whether notifications can be sent
func (e EmailConfig) IsConfigured() bool {
	return e.MailgunDomain != "" && e.MailgunAPIKey != "" && len(e.Architects) > 0
}

// DrafterConfig holds the Anthropic settings for drafted recommendations
type DrafterConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY"`
	Model  string `env:"ANTHROPIC_MODEL"`
}

// Load reads a .env file if one exists, then parses the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.SubmitLatency < 0 {
		return nil, fmt.Errorf("parse config: INTAKE_SUBMIT_LATENCY must not be negative")
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return cfg, nil
}
