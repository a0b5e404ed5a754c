package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	GatewaySecret string `env:"GATEWAY_SECRET,required" validate:"required,min=16"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=16"`

	IntentTTL   time.Duration `env:"INTENT_TTL" envDefault:"30m" validate:"required"`
	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"10m" validate:"required"`
	OTPAttempts int           `env:"OTP_ATTEMPTS" envDefault:"3" validate:"min=1"`

	LedgerBaseURL string        `env:"LEDGER_BASE_URL"`
	LedgerAPIKey  string        `env:"LEDGER_API_KEY"`
	LedgerTimeout time.Duration `env:"LEDGER_TIMEOUT" envDefault:"5s"`

	SMSProvider string        `env:"SMS_PROVIDER" envDefault:"log" validate:"omitempty,oneof=log http"`
	SMSBaseURL  string        `env:"SMS_BASE_URL" validate:"required_if=SMSProvider http,omitempty,url"`
	SMSAPIKey   string        `env:"SMS_API_KEY"`
	SMSTimeout  time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"" validate:"omitempty,oneof=resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"required_if=EmailProvider resend,omitempty,email"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	PricingRulesPath string `env:"PRICING_RULES_PATH" envDefault:""`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.IntentTTL <= 0 {
		return fmt.Errorf("INTENT_TTL must be positive")
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.OTPTTL > c.IntentTTL {
		return fmt.Errorf("OTP_TTL must not exceed INTENT_TTL")
	}

	hasEmailProvider := strings.TrimSpace(c.EmailProvider) != ""
	hasEmailKey := strings.TrimSpace(c.EmailAPIKey) != ""
	if hasEmailProvider && !hasEmailKey {
		return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER is set")
	}

	if ledger := strings.TrimSpace(c.LedgerBaseURL); ledger != "" {
		parsed, err := url.Parse(ledger)
		if err != nil || parsed.Hostname() == "" {
			return fmt.Errorf("LEDGER_BASE_URL must be a valid absolute URL")
		}
	}

	return nil
}
