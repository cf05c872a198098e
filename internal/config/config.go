// Package config loads service configuration from the environment and an optional .env file
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Config holds application configuration.
type Config struct {
	Port     string
	LogLevel string

	StoreDriver       string
	BadgerPath        string
	DatabaseURL       string
	MigrationsEnabled bool

	NBPArchiveURL   string
	NBPTableBaseURL string
	NBPHTTPTimeout  time.Duration
	NBPMaxRetries   int
	NBPRetryBackoff time.Duration
	NBPIndexTTL     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and a .env file if present.
// Real environment variables take precedence over the file.
func Load() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("STORE_DRIVER", DriverBadger)
	v.SetDefault("BADGER_PATH", "./data")
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("MIGRATIONS_ENABLED", true)
	v.SetDefault("NBP_ARCHIVE_URL", "https://www.nbp.pl/transfer.aspx?c=/ascx/ListABCH.ascx&Typ=a&p=rok;mies&navid=archa")
	v.SetDefault("NBP_TABLE_BASE_URL", "https://www.nbp.pl/kursy/xml")
	v.SetDefault("NBP_HTTP_TIMEOUT", "10s")
	v.SetDefault("NBP_MAX_RETRIES", 3)
	v.SetDefault("NBP_RETRY_BACKOFF", "1s")
	v.SetDefault("NBP_INDEX_TTL", "1h")
	v.SetDefault("SHUTDOWN_TIMEOUT", "5s")
	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetString("PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		StoreDriver:       strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		BadgerPath:        v.GetString("BADGER_PATH"),
		DatabaseURL:       v.GetString("PGSQL_URL"),
		MigrationsEnabled: v.GetBool("MIGRATIONS_ENABLED"),
		NBPArchiveURL:     v.GetString("NBP_ARCHIVE_URL"),
		NBPTableBaseURL:   v.GetString("NBP_TABLE_BASE_URL"),
		NBPHTTPTimeout:    v.GetDuration("NBP_HTTP_TIMEOUT"),
		NBPMaxRetries:     v.GetInt("NBP_MAX_RETRIES"),
		NBPRetryBackoff:   v.GetDuration("NBP_RETRY_BACKOFF"),
		NBPIndexTTL:       v.GetDuration("NBP_INDEX_TTL"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverBadger:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("PGSQL_URL is required when STORE_DRIVER is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverBadger, DriverPostgres, c.StoreDriver))
	}

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.NBPMaxRetries <= 0 {
		errs = append(errs, errors.New("NBP_MAX_RETRIES must be positive"))
	}
	if c.NBPHTTPTimeout <= 0 {
		errs = append(errs, errors.New("NBP_HTTP_TIMEOUT must be a positive duration"))
	}
	if c.NBPRetryBackoff < 0 {
		errs = append(errs, errors.New("NBP_RETRY_BACKOFF must not be negative"))
	}
	if c.NBPIndexTTL <= 0 {
		errs = append(errs, errors.New("NBP_INDEX_TTL must be a positive duration"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be a positive duration"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
