// Package config loads kerneld's process-level configuration from an
// optional YAML file plus environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the debug/health listener.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls the storage backend (C9).
type DatabaseConfig struct {
	Driver         string `json:"driver" env:"DATABASE_DRIVER"`
	DSN            string `json:"dsn" env:"DATABASE_DSN"`
	MigrateOnStart bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls structured logging and the daemon log rotator (C18).
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
	RotatePath string `json:"rotate_path" env:"LOG_ROTATE_PATH"`
	MaxSizeMB  int    `json:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxFiles   int    `json:"max_files" env:"LOG_MAX_FILES"`
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`
}

// DebugConfig controls the debug state cache (C17).
type DebugConfig struct {
	MaxCachedVariables int `json:"max_cached_variables" env:"DEBUG_MAX_CACHED_VARIABLES"`
}

// SessionConfig controls session metrics retention (C13).
type SessionConfig struct {
	MetricsRetentionHours int  `json:"metrics_retention_hours" env:"SESSION_METRICS_RETENTION_HOURS"`
	PrivacyMode           bool `json:"privacy_mode" env:"SESSION_PRIVACY_MODE"`
}

// Config is kerneld's top-level configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Debug    DebugConfig    `json:"debug"`
	Session  SessionConfig  `json:"session"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9090,
		},
		Database: DatabaseConfig{
			Driver:         "sqlite3",
			DSN:            "kerneld.db",
			MigrateOnStart: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			FilePrefix: "kerneld",
			RotatePath: "/var/log/kerneld.log",
			MaxSizeMB:  10,
			MaxFiles:   5,
		},
		Debug: DebugConfig{
			MaxCachedVariables: 1000,
		},
		Session: SessionConfig{
			MetricsRetentionHours: 24,
		},
	}
}

// Load loads configuration from an optional file (CONFIG_FILE, or
// ./configs/kerneld.yaml) and then applies environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile(filepath.Join("configs", "kerneld.yaml"), cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Driver = "postgres"
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
