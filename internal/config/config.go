// Package config provides configuration resolution and validation for the CLI.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment selects which upstream deployment the CLI talks to.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultDevBaseURL  = "http://localhost:8288"
	DefaultProdBaseURL = "https://api.runforge.dev"

	// DefaultStatusLookbackHours is the lookback window used when a status
	// filter is given without an explicit time range. Roughly six months:
	// failed or cancelled runs that matter to an operator may be old.
	DefaultStatusLookbackHours = 24 * 182
)

// Error represents a fatal configuration problem detected at startup,
// before any discovery logic runs.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config holds the resolved CLI configuration.
type Config struct {
	// SigningKey authenticates requests against the prod API. The dev
	// server accepts unauthenticated requests, so it is only required
	// when Env is prod.
	SigningKey string `validate:"omitempty,min=8"`

	// BaseURL is the root URL of the upstream API.
	BaseURL string `validate:"required,url"`

	// Env selects the deployment: dev or prod.
	Env string `validate:"required,oneof=dev prod"`

	// StatusLookbackHours bounds how far back status-filtered discovery
	// searches by default.
	StatusLookbackHours int `validate:"min=1"`
}

// Load resolves configuration from the environment. godotenv has already
// populated the environment from .env by the time this runs.
func Load() (*Config, error) {
	cfg := &Config{
		SigningKey:          os.Getenv("RUNCTL_SIGNING_KEY"),
		BaseURL:             os.Getenv("RUNCTL_BASE_URL"),
		Env:                 os.Getenv("RUNCTL_ENV"),
		StatusLookbackHours: DefaultStatusLookbackHours,
	}

	if cfg.Env == "" {
		cfg.Env = EnvDev
	}
	if cfg.BaseURL == "" {
		switch cfg.Env {
		case EnvProd:
			cfg.BaseURL = DefaultProdBaseURL
		default:
			cfg.BaseURL = DefaultDevBaseURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if raw := os.Getenv("RUNCTL_STATUS_LOOKBACK_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &Error{Message: "RUNCTL_STATUS_LOOKBACK_HOURS must be an integer", Cause: err}
		}
		cfg.StatusLookbackHours = hours
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration using the validator.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return &Error{Message: "invalid configuration", Cause: err}
	}
	if c.Env == EnvProd && c.SigningKey == "" {
		return &Error{Message: "RUNCTL_SIGNING_KEY is required when RUNCTL_ENV=prod"}
	}
	return nil
}

// BearerToken derives the API bearer token from the signing key. The raw
// key never leaves the process; only its SHA-256 digest is sent upstream.
// Returns an empty token for dev, where the server skips authentication.
func (c *Config) BearerToken() string {
	if c.SigningKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c.SigningKey))
	return hex.EncodeToString(sum[:])
}
