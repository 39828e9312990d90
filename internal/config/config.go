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

	// TokenSigningSecret signs bearer credentials and browser session tokens.
	TokenSigningSecret string `env:"TOKEN_SIGNING_SECRET,required"`

	// BrowserBaseURL is where the pairing page lives; startPairing returns
	// BrowserBaseURL + "/pair?token=...".
	BrowserBaseURL string `env:"BROWSER_BASE_URL" envDefault:"http://localhost:3000"`

	PairingTTLSeconds        int  `env:"PAIRING_TTL_SECONDS" envDefault:"600"`
	PairingRequireOTP        bool `env:"PAIRING_REQUIRE_OTP" envDefault:"true"`
	PairingRetentionHours    int  `env:"PAIRING_RETENTION_HOURS" envDefault:"24"`
	OTPTTLSeconds            int  `env:"OTP_TTL_SECONDS" envDefault:"600"`
	OTPResendCooldownSeconds int  `env:"OTP_RESEND_COOLDOWN_SECONDS" envDefault:"60"`
	OTPMaxAttempts           int  `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	BearerTTLHours           int  `env:"BEARER_TTL_HOURS" envDefault:"720"`
	SessionTTLHours          int  `env:"SESSION_TTL_HOURS" envDefault:"24"`

	CompletionCost     int64  `env:"COMPLETION_COST" envDefault:"1"`
	UsageRetentionDays int    `env:"USAGE_RETENTION_DAYS" envDefault:"90"`
	UpstreamURL        string `env:"UPSTREAM_URL"`
	UpstreamAPIKey     string `env:"UPSTREAM_API_KEY"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) PairingRetention() time.Duration {
	return time.Duration(c.PairingRetentionHours) * time.Hour
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLSeconds) * time.Second
}

func (c *Config) OTPResendCooldown() time.Duration {
	return time.Duration(c.OTPResendCooldownSeconds) * time.Second
}

func (c *Config) BearerTTL() time.Duration {
	return time.Duration(c.BearerTTLHours) * time.Hour
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) UsageRetention() time.Duration {
	return time.Duration(c.UsageRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.PairingTTLSeconds < 300 || c.PairingTTLSeconds > 600 {
		return fmt.Errorf("PAIRING_TTL_SECONDS must be between 300 and 600")
	}
	if c.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.CompletionCost <= 0 {
		return fmt.Errorf("COMPLETION_COST must be positive")
	}

	if isProduction {
		if err := validateSecret("TOKEN_SIGNING_SECRET", c.TokenSigningSecret); err != nil {
			return err
		}
		if c.SMTPHost == "" {
			log.Warn().Msg("SMTP_HOST is empty in production: one-time codes will only be logged, not emailed")
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
