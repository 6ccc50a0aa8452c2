package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for schema-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
// Secrets (the store password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3460"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Persisted schema store (PostgreSQL)
	Store StoreConfig `yaml:"store"`

	// Schema cache and mutation coordination
	Schema SchemaConfig `yaml:"schema"`
}

// StoreConfig holds PostgreSQL connection settings for the persisted
// schema store.
type StoreConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ontoforge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"schema_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// SchemaConfig holds cache and lock settings.
type SchemaConfig struct {
	// LockTimeoutSeconds bounds how long a mutating request waits for
	// the schema lock before failing with a lock timeout.
	LockTimeoutSeconds int `yaml:"lock_timeout_seconds" env:"SCHEMA_LOCK_TIMEOUT_SECONDS" env-default:"10"`

	// SeedPath optionally points to a YAML ontology definition loaded
	// into an empty store at startup.
	SeedPath string `yaml:"seed_path" env:"SCHEMA_SEED_PATH" env-default:""`
}

// Load reads configuration from config.yaml (if present) with
// environment variable overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Schema.LockTimeoutSeconds <= 0 {
		return fmt.Errorf("schema.lock_timeout_seconds must be positive, got %d", c.Schema.LockTimeoutSeconds)
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		return fmt.Errorf("store.port out of range: %d", c.Store.Port)
	}
	return nil
}

// LockTimeout returns the configured lock acquisition bound.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Schema.LockTimeoutSeconds) * time.Second
}

// ConnectionString returns a PostgreSQL connection string for the store.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
