// Package email sends transactional mail for checkout events.
package email

import (
	"context"
	"fmt"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Config struct {
	Provider string
	APIKey   string
	From     string
}

// NewProvider builds the configured provider. An empty provider name disables
// outbound mail.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "":
		return noopProvider{}, nil
	case "resend":
		return NewResendProvider(cfg.APIKey, cfg.From), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be 'resend' or empty")
	}
}

type noopProvider struct{}

func (noopProvider) SendEmail(context.Context, *Email) error { return nil }
