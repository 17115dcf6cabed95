// Package config loads wardwatch settings. Values come from defaults, then
// an optional YAML file, then the environment (a .env file in the working
// directory is loaded first). Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreFS        = "fs"
	StoreSQLite    = "sqlite"
	StoreDatastore = "datastore"
)

// Config holds the CLI and dev server settings.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
	Dev     DevConfig     `yaml:"dev"`
}

type ServerConfig struct {
	BaseURL       string        `yaml:"base_url" env:"WARDWATCH_BASE_URL" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" env:"WARDWATCH_TIMEOUT" validate:"gt=0"`
	SharedRefresh bool          `yaml:"shared_refresh" env:"WARDWATCH_SHARED_REFRESH"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" env:"WARDWATCH_STORE" validate:"oneof=fs sqlite datastore"`
	// Path is the session file (fs) or database file (sqlite). Empty means
	// the per-user config directory.
	Path    string `yaml:"path" env:"WARDWATCH_STORE_PATH"`

	ProjectID       string `yaml:"project_id" env:"WARDWATCH_DATASTORE_PROJECT" validate:"required_if=Backend datastore"`
	Namespace       string `yaml:"namespace" env:"WARDWATCH_DATASTORE_NAMESPACE"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type DisplayConfig struct {
	TempUnit string `yaml:"temp_unit" env:"WARDWATCH_TEMP_UNIT" validate:"oneof=C F c f"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"WARDWATCH_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"WARDWATCH_LOG_FORMAT" validate:"oneof=text json"`
}

type DevConfig struct {
	Addr                string        `yaml:"addr" env:"WARDWATCH_DEV_ADDR" validate:"required"`
	PathPrefix          string        `yaml:"path_prefix" env:"WARDWATCH_DEV_PREFIX"`
	JWTSecret           string        `yaml:"jwt_secret" env:"WARDWATCH_DEV_JWT_SECRET"`
	TokenShape          string        `yaml:"token_shape" env:"WARDWATCH_DEV_TOKEN_SHAPE" validate:"oneof=camel snake nested"`
	PatientEnvelope     string        `yaml:"patient_envelope" env:"WARDWATCH_DEV_PATIENT_ENVELOPE" validate:"omitempty,oneof=patients data results"`
	RotateRefreshTokens bool          `yaml:"rotate_refresh_tokens" env:"WARDWATCH_DEV_ROTATE_REFRESH"`
	AccessTokenTTL      time.Duration `yaml:"access_token_ttl" env:"WARDWATCH_DEV_ACCESS_TTL" validate:"gte=0"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Store:   StoreConfig{Backend: StoreFS},
		Display: DisplayConfig{TempUnit: "C"},
		Log:     LogConfig{Level: "warn", Format: "text"},
		Dev: DevConfig{
			Addr:       ":8080",
			TokenShape: "camel",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads settings from the YAML file at path and the environment. A
// missing file is skipped unless mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config yaml: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !mustExist:
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config env: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// DefaultPath is the config file consulted when none is given
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wardwatch", "config.yaml")
}
