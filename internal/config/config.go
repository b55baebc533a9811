package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// Key for signing stateless access tokens (HS256).
	AccessTokenSecret string `env:"ACCESS_TOKEN_SECRET,required"`
	AccessTokenIssuer string `env:"ACCESS_TOKEN_ISSUER" envDefault:"argus-pairing"`

	// Shared secret for the internal revocation hook. When empty, the hook
	// endpoint refuses all requests.
	RevocationHookSecret string `env:"REVOCATION_HOOK_SECRET"`

	PairingCodeTTLSeconds    int `env:"PAIRING_CODE_TTL_SECONDS" envDefault:"300"`
	PairingRateLimit         int `env:"PAIRING_RATE_LIMIT" envDefault:"5"`
	PairingRateWindowSeconds int `env:"PAIRING_RATE_WINDOW_SECONDS" envDefault:"60"`

	AccessTokenTTLMinutes int `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"15"`
	RefreshTokenTTLDays   int `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`
	RefreshGraceSeconds   int `env:"REFRESH_GRACE_SECONDS" envDefault:"5"`
	RefreshRetentionDays  int `env:"REFRESH_RETENTION_DAYS" envDefault:"90"`

	SessionTTLHours int `env:"SESSION_TTL_HOURS" envDefault:"24"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

func (c *Config) PairingRateWindow() time.Duration {
	return time.Duration(c.PairingRateWindowSeconds) * time.Second
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

func (c *Config) RefreshGrace() time.Duration {
	return time.Duration(c.RefreshGraceSeconds) * time.Second
}

func (c *Config) RefreshRetention() time.Duration {
	return time.Duration(c.RefreshRetentionDays) * 24 * time.Hour
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.PairingCodeTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_CODE_TTL_SECONDS must be positive")
	}
	if c.RefreshGraceSeconds < 0 {
		return fmt.Errorf("REFRESH_GRACE_SECONDS must not be negative")
	}

	if isProduction {
		if err := validateSecret("ACCESS_TOKEN_SECRET", c.AccessTokenSecret); err != nil {
			return err
		}
		if c.RevocationHookSecret == "" {
			log.Warn().Msg("REVOCATION_HOOK_SECRET is empty in production: revocation cascade hook is disabled")
		} else if err := validateSecret("REVOCATION_HOOK_SECRET", c.RevocationHookSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
