// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the enrolment service.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"enrolments"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"2"`

	// JWTSecret signs and verifies actor bearer tokens.
	JWTSecret string `env:"JWT_SECRET,required"`
	// ReferenceSecret signs enrolment reference ids. Kept separate from
	// JWTSecret so ticket references cannot be replayed as bearer tokens.
	ReferenceSecret string `env:"REFERENCE_SECRET,required"`

	// DefaultLanguage is the language whose translation must exist before an
	// event can be published.
	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"fi"`

	// NotifyWebhookURL receives enrolment lifecycle notifications. Empty
	// disables outbound notifications.
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
