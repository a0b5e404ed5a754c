// Package cache provides short-lived state shared across checkout requests:
// gateway callback deduplication and OTP request throttling.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// CallbackKey identifies a gateway callback delivery for replay suppression.
func CallbackKey(provider, deliveryID string) string {
	return fmt.Sprintf("callback:%s:%s", provider, deliveryID)
}

// OTPThrottleKey limits how often a fresh OTP may be requested per intent.
func OTPThrottleKey(intentID string) string {
	return "otp-throttle:" + intentID
}
