// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port       string `env:"PORT" envDefault:"8000"`
	NASAAPIKey string `env:"NASA_API_KEY" envDefault:"DEMO_KEY"`
	RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	// CacheDir holds the disk-persisted snapshots (weather, astronaut
	// roster). Defaults to ~/.spacedash.
	CacheDir string `env:"CACHE_DIR"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	NASABaseURL      string `env:"NASA_BASE_URL" envDefault:"https://api.nasa.gov"`
	SpaceDevsBaseURL string `env:"SPACEDEVS_BASE_URL" envDefault:"https://lldev.thespacedevs.com/2.2.0"`

	APODLookbackDays int `env:"APOD_LOOKBACK_DAYS" envDefault:"30"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve cache dir: %w", err)
		}
		cfg.CacheDir = filepath.Join(home, ".spacedash")
	}

	if cfg.APODLookbackDays < 0 {
		return cfg, fmt.Errorf("APOD_LOOKBACK_DAYS must not be negative, got %d", cfg.APODLookbackDays)
	}

	return cfg, nil
}
