// Package config loads the exchange layer's runtime configuration from the
// environment and its genesis state from a YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

// Config is the process-wide configuration.
type Config struct {
	Server struct {
		Port            int           `env:"SERVER_PORT,default=8080"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	}
	Database struct {
		URL string `env:"DATABASE_URL"`
	}
	Auth struct {
		AdminTokens string `env:"ADMIN_TOKENS"`
	}
	Exchange struct {
		UnitAsset         string        `env:"UNIT_ASSET,default=unit"`
		Admin             string        `env:"EXCHANGE_ADMIN,default=admin"`
		GenesisPath       string        `env:"GENESIS_PATH"`
		ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,default=30s"`
	}
	RateLimit struct {
		RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=50"`
		Burst             int `env:"RATE_LIMIT_BURST,default=100"`
	}
	Logging logger.LoggingConfig
}

// Load reads .env if present and decodes the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.Exchange.UnitAsset == "" || cfg.Exchange.Admin == "" {
		return nil, fmt.Errorf("unit asset and exchange admin are required")
	}
	return &cfg, nil
}

// AdminTokens returns the configured admin bearer tokens.
func (c *Config) AdminTokens() []string {
	raw := strings.Split(c.Auth.AdminTokens, ",")
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
