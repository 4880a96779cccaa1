// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration. OTel settings are handled
// separately by the otel adapter's ConfigFromEnv.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"onboardiq.db"`

	// BillingAPIURL points at the billing gateway. Empty disables the
	// gateway; paid plans then receive a placeholder billing reference.
	BillingAPIURL string `env:"BILLING_API_URL"`

	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
