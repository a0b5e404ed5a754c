// Package pricing computes checkout totals: subtotal, tax, shipping and
// coupon discounts.
package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules are the operator-tunable rate settings, loaded from a YAML file.
type Rules struct {
	TaxRateBps            int64 `yaml:"tax_rate_bps"`
	ShippingFlatCents     int64 `yaml:"shipping_flat_cents"`
	FreeShippingOverCents int64 `yaml:"free_shipping_over_cents"`
}

// DefaultRules charges no tax and no shipping.
func DefaultRules() Rules {
	return Rules{}
}

func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read pricing rules: %w", err)
	}
	return ParseRules(content)
}

func ParseRules(content []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, fmt.Errorf("failed to parse pricing rules: %w", err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r Rules) validate() error {
	if r.TaxRateBps < 0 || r.TaxRateBps > 10_000 {
		return fmt.Errorf("tax_rate_bps must be between 0 and 10000, got %d", r.TaxRateBps)
	}
	if r.ShippingFlatCents < 0 {
		return fmt.Errorf("shipping_flat_cents must not be negative, got %d", r.ShippingFlatCents)
	}
	if r.FreeShippingOverCents < 0 {
		return fmt.Errorf("free_shipping_over_cents must not be negative, got %d", r.FreeShippingOverCents)
	}
	return nil
}
