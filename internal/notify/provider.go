// Package notify dispatches one-time passwords to the customer's mobile.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Provider interface {
	SendOTP(ctx context.Context, mobileNumber, code string) error
}

type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

func NewProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "log", "":
		return NewLogProvider(logger), nil
	case "http":
		return NewHTTPProvider(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("SMS_PROVIDER must be either 'log' or 'http'")
	}
}
