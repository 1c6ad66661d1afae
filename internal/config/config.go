package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay process.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"ADDR" envDefault:":8080"`
	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// DBDriver selects the user store: "memory" or "surreal".
	DBDriver string `env:"DB_DRIVER" envDefault:"memory"`
	DBUrl    string `env:"SURREAL_URL"`
	DBUser   string `env:"SURREAL_USER"`
	DBPass   string `env:"SURREAL_PASS"`
	DBNs     string `env:"SURREAL_NS"`
	DBDb     string `env:"SURREAL_DB"`
}

// New loads configuration from environment variables, reading a .env file
// first if one is present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch cfg.DBDriver {
	case "memory":
	case "surreal":
		if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
			return nil, errors.New("SURREAL_URL, SURREAL_NS and SURREAL_DB are required when DB_DRIVER=surreal")
		}
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}
